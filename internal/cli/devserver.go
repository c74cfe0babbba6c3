package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/kriswu/inkstone/internal/stubserver"
)

var (
	devserverAddr  string
	devserverDelay time.Duration
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a stub comic backend for development",
	Long: `Run a local stand-in for the comic backend: it accepts any
login, recognizes chapters with a naive sentence split, and streams
placeholder image URLs. Point the client at it with
INKSTONE_BACKEND_WS_URL=ws://localhost:8081/ws.

Examples:
  inkstone devserver
  inkstone devserver --addr :9000 --progress-delay 500ms`,
	RunE: runDevserver,
}

func init() {
	devserverCmd.Flags().StringVarP(&devserverAddr, "addr", "a", ":8081", "listen address")
	devserverCmd.Flags().DurationVar(&devserverDelay, "progress-delay", 300*time.Millisecond, "delay between progress ticks")
}

func runDevserver(cmd *cobra.Command, args []string) error {
	srv := stubserver.New(logger, stubserver.Options{ProgressDelay: devserverDelay})

	fmt.Printf("Stub backend listening on %s (websocket at /ws)\n", devserverAddr)
	if err := http.ListenAndServe(devserverAddr, srv.Handler()); err != nil {
		return fmt.Errorf("devserver: %w", err)
	}
	return nil
}

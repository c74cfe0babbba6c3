package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kriswu/inkstone/internal/auth"
)

var loginUsername string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the comic backend",
	Long: `Log in and store the session token locally.

The password is read from the terminal without echo. An existing token
is verified first; login is skipped when it is still valid.

Examples:
  inkstone login
  inkstone login --username kris`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "account username")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := auth.New(cfg.AuthURL)

	if token, err := auth.LoadToken(); err == nil && token != "" {
		ok, user, err := client.Verify(ctx, token)
		if err == nil && ok {
			fmt.Printf("Already logged in as %s.\n", user.Username)
			return nil
		}
		// Stale token: clear it and fall through to a fresh login.
		auth.ClearToken()
	}

	username := loginUsername
	if username == "" {
		fmt.Print("Username: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return fmt.Errorf("username must not be empty")
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	token, user, err := client.Login(ctx, username, string(password))
	if err != nil {
		return err
	}
	if err := auth.SaveToken(token); err != nil {
		return err
	}

	name := username
	if user != nil && user.Username != "" {
		name = user.Username
	}
	fmt.Printf("Logged in as %s.\n", name)
	return nil
}

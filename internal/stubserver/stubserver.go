// Package stubserver implements a minimal in-process comic backend
// speaking the wire contract. It exists for development (`inkstone
// devserver`) and for integration tests; it recognizes storyboards
// with the same naive splitter the client falls back to and serves
// placeholder image URLs instead of generated art.
package stubserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kriswu/inkstone/internal/storyboard"
	"github.com/kriswu/inkstone/internal/wire"
)

// InvalidToken is rejected by the stub authenticator; every other
// non-empty token is accepted.
const InvalidToken = "invalid"

// Options tune stub behavior for tests.
type Options struct {
	// ProgressDelay is the pause between generation progress ticks.
	ProgressDelay time.Duration
	// ImageURL templates the per-scene result URL; %d is the 1-based
	// scene index. Defaults to a placeholder host.
	ImageURL string
}

// Server is the stub backend. Zero value is not usable; call New.
type Server struct {
	opts   Options
	logger *slog.Logger
}

// New creates a stub server.
func New(logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ImageURL == "" {
		opts.ImageURL = "https://img.invalid/scene-%d.png"
	}
	return &Server{opts: opts, logger: logger}
}

// Handler serves the websocket endpoint at /ws and the HTTP auth
// endpoints the desktop login flow expects.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/api/login", s.serveLogin)
	mux.HandleFunc("/api/profile", s.serveProfile)
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	return mux
}

func (s *Server) serveLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"success": false, "error": "POST only"})
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "missing credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"session_token": "stub-" + uuid.New().String(),
		"user":          map[string]any{"id": "stub-user", "username": req.Username},
	})
}

func (s *Server) serveProfile(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !strings.HasPrefix(token, "stub-") {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid session"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": "stub-user", "username": "stub"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// conn is one client connection's state.
type conn struct {
	ws     *websocket.Conn
	writeM sync.Mutex

	mu            sync.Mutex
	authenticated bool
	processes     map[string][]string     // processID -> scenes detail
	cancelled     map[string]chan struct{} // processID -> cancel signal
}

func (c *conn) send(event string, payload any) error {
	frame, err := wire.NewFrame(event, payload)
	if err != nil {
		return err
	}
	c.writeM.Lock()
	defer c.writeM.Unlock()
	return c.ws.WriteJSON(frame)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin:     func(*http.Request) bool { return true },
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	c := &conn{
		ws:        ws,
		processes: make(map[string][]string),
		cancelled: make(map[string]chan struct{}),
	}
	_ = c.send(wire.EventConnectionStatus, wire.StatusPayload{Status: "connected", Message: "connected to stub backend"})

	for {
		var frame wire.Frame
		if err := ws.ReadJSON(&frame); err != nil {
			return
		}
		s.dispatch(c, frame)
	}
}

func (s *Server) dispatch(c *conn, frame wire.Frame) {
	switch frame.Event {
	case wire.EventAuthenticate:
		s.handleAuthenticate(c, frame.Payload)
	case wire.EventProcessNovel:
		s.handleProcessNovel(c, frame.Payload)
	case wire.EventStartGeneration:
		s.handleStartGeneration(c, frame.Payload)
	case wire.EventCancelGeneration:
		s.handleCancel(c, frame.Payload)
	default:
		s.logger.Debug("ignoring event", "event", frame.Event)
	}
}

func (s *Server) handleAuthenticate(c *conn, payload json.RawMessage) {
	var req wire.AuthRequest
	_ = json.Unmarshal(payload, &req)
	if req.SessionToken == "" || req.SessionToken == InvalidToken {
		_ = c.send(wire.EventAuthResult, wire.AuthResult{Success: false, Error: "invalid session token"})
		return
	}
	c.mu.Lock()
	c.authenticated = true
	c.mu.Unlock()
	_ = c.send(wire.EventAuthResult, wire.AuthResult{Success: true})
}

func (s *Server) handleProcessNovel(c *conn, payload json.RawMessage) {
	var req wire.ProcessNovelRequest
	_ = json.Unmarshal(payload, &req)

	c.mu.Lock()
	authed := c.authenticated
	c.mu.Unlock()
	if !authed {
		_ = c.send(wire.EventProcessError, wire.ErrorPayload{Error: "not authenticated"})
		return
	}
	if strings.TrimSpace(req.NovelText) == "" {
		_ = c.send(wire.EventProcessError, wire.ErrorPayload{Error: "novel text must not be empty"})
		return
	}

	_ = c.send(wire.EventProcessStatus, wire.StatusPayload{Status: "processing", Message: "processing novel text", Step: 1})

	sections := storyboard.SplitShots(req.NovelText)
	scenes := make([]string, len(sections))
	for i, sec := range sections {
		scenes[i] = sec.Detail
	}

	processID := time.Now().Format("20060102_150405") + "_" + uuid.New().String()[:8]
	c.mu.Lock()
	c.processes[processID] = scenes
	c.mu.Unlock()

	_ = c.send(wire.EventTextComplete, wire.TextProcessingResult{
		ProcessID:              processID,
		ChapterID:              req.ChapterID,
		ScenesCount:            len(scenes),
		ScenesDetail:           scenes,
		CharacterConsistency:   map[string]string{"主角": "placeholder description"},
		EnvironmentConsistency: map[string]string{"场景": "placeholder setting"},
		Message:                "novel text processed",
	})
}

func (s *Server) handleStartGeneration(c *conn, payload json.RawMessage) {
	var req wire.StartGenerationRequest
	_ = json.Unmarshal(payload, &req)

	c.mu.Lock()
	scenes, ok := c.processes[req.ProcessID]
	if ok && len(req.ScenesDetail) > 0 {
		scenes = req.ScenesDetail // client may have edited the storyboard
	}
	var cancel chan struct{}
	if ok {
		cancel = make(chan struct{})
		c.cancelled[req.ProcessID] = cancel
	}
	c.mu.Unlock()

	if !ok {
		_ = c.send(wire.EventGenerationError, wire.ErrorPayload{Error: "no processing state for process id", ProcessID: req.ProcessID})
		return
	}

	go s.generate(c, req.ProcessID, scenes, cancel)
}

func (s *Server) generate(c *conn, processID string, scenes []string, cancel chan struct{}) {
	total := len(scenes)
	for i := 1; i <= total; i++ {
		select {
		case <-cancel:
			s.logger.Debug("generation cancelled", "process_id", processID)
			return
		default:
		}
		if s.opts.ProgressDelay > 0 {
			time.Sleep(s.opts.ProgressDelay)
		}
		_ = c.send(wire.EventGenerationProgress, wire.ProgressPayload{
			Step:      i,
			Total:     total,
			Message:   fmt.Sprintf("generating image %d/%d", i, total),
			ProcessID: processID,
		})
	}

	results := make([]wire.ComicResult, total)
	for i := range results {
		results[i] = wire.ComicResult{
			ImageURL:   fmt.Sprintf(s.opts.ImageURL, i+1),
			SceneIndex: i + 1,
		}
	}
	_ = c.send(wire.EventGenerationComplete, wire.GenerationComplete{
		ProcessID:    processID,
		ComicResults: results,
		TotalScenes:  total,
		Message:      "comic generation complete",
	})
}

func (s *Server) handleCancel(c *conn, payload json.RawMessage) {
	var req wire.CancelGenerationRequest
	_ = json.Unmarshal(payload, &req)
	c.mu.Lock()
	cancel, ok := c.cancelled[req.ProcessID]
	if ok {
		delete(c.cancelled, req.ProcessID)
	}
	c.mu.Unlock()
	if ok {
		close(cancel)
	}
}

// Package session implements the generation session protocol: it
// authenticates the channel, issues storyboard recognition and comic
// generation requests, and reconciles the backend's unordered event
// stream against the active job registry so a stale job's late events
// can never overwrite a newer job's state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kriswu/inkstone/internal/channel"
	"github.com/kriswu/inkstone/internal/storyboard"
	"github.com/kriswu/inkstone/internal/wire"
)

// Sentinel errors for fast-fail preconditions.
var (
	ErrNotAuthenticated = errors.New("session: not authenticated")
	ErrRecognitionBusy  = errors.New("session: recognition already running for chapter")
	ErrGenerationBusy   = errors.New("session: generation already running")
	ErrNoJob            = errors.New("session: job has no process id")
	ErrEmptyText        = errors.New("session: chapter text is empty")
	ErrCancelled        = errors.New("session: cancelled")
)

// AuthError reports a rejected credential token.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("session: authentication rejected: %s", e.Reason)
}

// ReconnectPolicy controls recovery after connection loss. MaxRetries
// of zero disables automatic reconnection. Backoff grows linearly:
// attempt n waits n*Backoff.
type ReconnectPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// Config holds session settings.
type Config struct {
	// AuthTimeout bounds the wait for authentication_result. Defaults to 10s.
	AuthTimeout time.Duration
	// GenerationTimeout forces an unresolved generation to error.
	// Defaults to 30 minutes.
	GenerationTimeout time.Duration
	// Reconnect is applied by the session after connection loss.
	Reconnect ReconnectPolicy
}

func (c *Config) applyDefaults() {
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = 10 * time.Second
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = 30 * time.Minute
	}
}

// recognition tracks one in-flight or settled recognition per chapter.
type recognition struct {
	chapterID string
	text      string
	state     RecognitionState
	done      chan RecognitionOutcome
}

// generation tracks one job accepting generation events.
type generation struct {
	job      *storyboard.Job
	state    GenerationState
	progress storyboard.Progress
	timer    *time.Timer
}

// Session drives the protocol over one channel. Methods are safe for
// concurrent use; all mutable state sits behind one mutex and every
// event handler's first action is the identifier check.
type Session struct {
	ch     *channel.Channel
	cfg    Config
	logger *slog.Logger

	notes chan Notification

	mu            sync.Mutex
	authenticated bool
	reconnecting  bool
	token         string
	authWait      chan wire.AuthResult
	recognitions  map[string]*recognition // by chapter id
	generations   map[string]*generation  // by process id: the active job registry
	activeChapter map[string]string       // chapter id -> active process id
	lastImages    []storyboard.ComicImage
	lastImagesJob string

	runCancel context.CancelFunc
	runDone   chan struct{}
}

// New creates a session over ch. The channel should be disconnected;
// Start owns the connect.
func New(ch *channel.Channel, cfg Config, logger *slog.Logger) *Session {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		ch:            ch,
		cfg:           cfg,
		logger:        logger,
		notes:         make(chan Notification, 64),
		recognitions:  make(map[string]*recognition),
		generations:   make(map[string]*generation),
		activeChapter: make(map[string]string),
	}
}

// Notifications is the stream of session events for UI consumption.
// Slow consumers lose notifications rather than stalling the protocol.
func (s *Session) Notifications() <-chan Notification { return s.notes }

// Start connects the channel and begins consuming events. It returns
// the initial connect error, if any; later connection loss is handled
// by the reconnect policy and surfaced as notifications.
func (s *Session) Start(ctx context.Context) error {
	if err := s.ch.Connect(ctx); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.runCancel = cancel
	s.runDone = make(chan struct{})
	s.mu.Unlock()
	go s.run(runCtx)
	return nil
}

// Close stops the event loop and tears the channel down.
func (s *Session) Close() error {
	s.mu.Lock()
	cancel := s.runCancel
	done := s.runDone
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	err := s.ch.Close()
	if done != nil {
		<-done
	}
	return err
}

func (s *Session) run(ctx context.Context) {
	defer close(s.runDone)
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-s.ch.Frames():
			s.handleFrame(frame)
		case err := <-s.ch.Errors():
			s.handleConnectivity(ctx, err)
		}
	}
}

// Authenticate exchanges the credential token for channel-level
// authorization. It must complete before any job may be issued.
func (s *Session) Authenticate(ctx context.Context, token string) error {
	wait := make(chan wire.AuthResult, 1)
	s.mu.Lock()
	s.authenticated = false
	s.authWait = wait
	s.mu.Unlock()

	if err := s.ch.Send(wire.EventAuthenticate, wire.AuthRequest{SessionToken: token}); err != nil {
		return err
	}

	timer := time.NewTimer(s.cfg.AuthTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return &AuthError{Reason: "timed out waiting for authentication result"}
	case res := <-wait:
		if !res.Success {
			reason := res.Error
			if reason == "" {
				reason = "unknown reason"
			}
			return &AuthError{Reason: reason}
		}
	}

	s.mu.Lock()
	s.authenticated = true
	s.token = token
	s.mu.Unlock()
	s.logger.Info("session authenticated")
	return nil
}

// Authenticated reports whether job issuance is currently allowed.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// handleFrame normalizes and dispatches one incoming frame.
func (s *Session) handleFrame(frame wire.Frame) {
	ev, err := wire.Normalize(frame)
	if err != nil {
		s.logger.Debug("ignoring unknown event", "event", frame.Event)
		return
	}

	switch ev.Stage {
	case wire.StageAuth:
		s.handleAuthResult(ev)
	case wire.StageChannel:
		var status wire.StatusPayload
		_ = wire.DecodePayload(ev, &status)
		s.logger.Debug("channel status", "status", status.Status, "message", status.Message)
	case wire.StageRecognition:
		s.handleRecognitionEvent(ev)
	case wire.StageGeneration:
		s.handleGenerationEvent(ev)
	}
}

func (s *Session) handleAuthResult(ev wire.Event) {
	var res wire.AuthResult
	if err := wire.DecodePayload(ev, &res); err != nil {
		s.logger.Warn("malformed authentication result", "error", err)
		return
	}
	s.mu.Lock()
	wait := s.authWait
	s.authWait = nil
	s.mu.Unlock()
	if wait == nil {
		s.logger.Debug("unsolicited authentication result ignored")
		return
	}
	wait <- res
}

// handleConnectivity fails in-flight work, then applies the reconnect
// policy. The retry loop runs on its own goroutine: Authenticate waits
// for a frame, and frames are consumed by the run loop this handler is
// called from.
func (s *Session) handleConnectivity(ctx context.Context, err error) {
	s.logger.Warn("connection lost", "error", err)

	s.mu.Lock()
	s.authenticated = false
	token := s.token
	policy := s.cfg.Reconnect
	s.failInflightLocked("connection lost")
	already := s.reconnecting
	if policy.MaxRetries > 0 {
		s.reconnecting = true
	}
	s.mu.Unlock()

	s.notify(ConnectionLost{Err: err})

	if already || policy.MaxRetries == 0 {
		return
	}
	go s.reconnect(ctx, token, policy)
}

// reconnect retries the connection with linear backoff,
// re-authenticating with the stored token.
func (s *Session) reconnect(ctx context.Context, token string, policy ReconnectPolicy) {
	defer func() {
		s.mu.Lock()
		s.reconnecting = false
		s.mu.Unlock()
	}()

	for attempt := 1; attempt <= policy.MaxRetries; attempt++ {
		wait := time.Duration(attempt) * policy.Backoff
		s.logger.Info("reconnecting", "attempt", attempt, "backoff", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if err := s.ch.Connect(ctx); err != nil {
			continue
		}
		if token != "" {
			if err := s.Authenticate(ctx, token); err != nil {
				s.logger.Warn("re-authentication failed", "error", err)
				continue
			}
		}
		s.notify(Reconnected{Attempt: attempt})
		return
	}
	s.logger.Error("reconnect attempts exhausted", "retries", policy.MaxRetries)
}

// failInflightLocked settles every running recognition and generation
// with a failure reason. Progress snapshots are preserved for
// diagnosis. Callers hold s.mu.
func (s *Session) failInflightLocked(reason string) {
	for chapterID, rec := range s.recognitions {
		if rec.state != RecognitionRunning {
			continue
		}
		rec.state, _ = rec.state.transition(RecognitionFailed)
		outcome := RecognitionOutcome{ChapterID: chapterID, Reason: reason, Failed: true}
		select {
		case rec.done <- outcome:
		default:
		}
		s.notify(RecognitionFault{ChapterID: chapterID, Reason: reason})
	}
	for pid, gen := range s.generations {
		if gen.state != GenerationConnecting && gen.state != GenerationRunning {
			continue
		}
		gen.state, _ = gen.state.transition(GenerationError)
		stopTimerLocked(gen)
		delete(s.activeChapter, gen.job.ChapterID)
		s.notify(GenerationFailed{ProcessID: pid, Reason: reason})
	}
}

func stopTimerLocked(gen *generation) {
	if gen.timer != nil {
		gen.timer.Stop()
		gen.timer = nil
	}
}

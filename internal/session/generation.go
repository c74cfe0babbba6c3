package session

import (
	"time"

	"github.com/kriswu/inkstone/internal/assembler"
	"github.com/kriswu/inkstone/internal/storyboard"
	"github.com/kriswu/inkstone/internal/wire"
)

// Generate issues a comic generation request for a recognized job.
// At most one generation may be active per job and per chapter;
// progress, completion and errors arrive as notifications filtered by
// the job's process id.
func (s *Session) Generate(job *storyboard.Job) error {
	if job == nil || job.ProcessID == "" {
		return ErrNoJob
	}

	s.mu.Lock()
	if !s.authenticated {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	if gen, ok := s.generations[job.ProcessID]; ok &&
		(gen.state == GenerationConnecting || gen.state == GenerationRunning) {
		s.mu.Unlock()
		return ErrGenerationBusy
	}
	if pid, ok := s.activeChapter[job.ChapterID]; ok && pid != job.ProcessID {
		s.mu.Unlock()
		return ErrGenerationBusy
	}
	gen := &generation{job: job, state: GenerationConnecting}
	// Armed before Send: events for this job may arrive on the run
	// goroutine the moment the frame is written, and a handler that
	// advances the state must find the timer already registered.
	gen.timer = time.AfterFunc(s.cfg.GenerationTimeout, func() {
		s.timeoutGeneration(job.ProcessID)
	})
	s.generations[job.ProcessID] = gen
	s.activeChapter[job.ChapterID] = job.ProcessID
	s.mu.Unlock()

	err := s.ch.Send(wire.EventStartGeneration, wire.StartGenerationRequest{
		ProcessID:              job.ProcessID,
		CharacterConsistency:   job.CharacterConsistency,
		EnvironmentConsistency: job.EnvironmentConsistency,
		ScenesDetail:           job.ScenesDetail,
	})
	if err != nil {
		s.mu.Lock()
		stopTimerLocked(gen)
		gen.state, _ = gen.state.transition(GenerationIdle)
		delete(s.generations, job.ProcessID)
		delete(s.activeChapter, job.ChapterID)
		s.mu.Unlock()
		return err
	}

	s.logger.Info("generation requested", "process_id", job.ProcessID,
		"chapter", job.ChapterID, "scenes", len(job.ScenesDetail))
	return nil
}

// CancelGeneration aborts an in-flight generation. The cancel request
// upstream is best-effort; the client returns to idle immediately and
// ignores any later events for the cancelled process id.
func (s *Session) CancelGeneration(processID string) {
	s.mu.Lock()
	gen, ok := s.generations[processID]
	if !ok {
		s.mu.Unlock()
		return
	}
	stopTimerLocked(gen)
	delete(s.generations, processID)
	delete(s.activeChapter, gen.job.ChapterID)
	s.mu.Unlock()

	// Ignore send failures: cancellation is client-authoritative.
	if err := s.ch.Send(wire.EventCancelGeneration, wire.CancelGenerationRequest{ProcessID: processID}); err != nil {
		s.logger.Debug("cancel request not delivered", "process_id", processID, "error", err)
	}

	s.notify(GenerationCancelled{ProcessID: processID})
	s.logger.Info("generation cancelled", "process_id", processID)
}

// GenerationStateFor reports the tracked state for a process id.
func (s *Session) GenerationStateFor(processID string) GenerationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen, ok := s.generations[processID]; ok {
		return gen.state
	}
	return GenerationIdle
}

// ProgressFor returns the last progress snapshot for a process id.
func (s *Session) ProgressFor(processID string) storyboard.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen, ok := s.generations[processID]; ok {
		return gen.progress
	}
	return storyboard.Progress{}
}

// Images returns the most recent completed gallery and the process id
// it belongs to. A later job's error never clears an earlier job's
// completed gallery.
func (s *Session) Images() (string, []storyboard.ComicImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastImagesJob, s.lastImages
}

func (s *Session) timeoutGeneration(processID string) {
	s.mu.Lock()
	gen, ok := s.generations[processID]
	if !ok || (gen.state != GenerationConnecting && gen.state != GenerationRunning) {
		s.mu.Unlock()
		return
	}
	gen.state, _ = gen.state.transition(GenerationError)
	gen.timer = nil
	delete(s.activeChapter, gen.job.ChapterID)
	s.mu.Unlock()

	s.notify(GenerationFailed{ProcessID: processID, Reason: "generation timed out", Timeout: true})
	s.logger.Warn("generation timed out", "process_id", processID)
}

// claimGeneration resolves which active generation an event belongs
// to. Events lacking a process id are attributed to the sole active
// generation when exactly one exists, otherwise dropped. Events for
// untracked process ids are stale and must be ignored, not merged.
func (s *Session) claimGeneration(processID string) (*generation, string) {
	if processID != "" {
		gen, ok := s.generations[processID]
		if !ok {
			return nil, ""
		}
		return gen, processID
	}
	var sole *generation
	var soleID string
	for pid, gen := range s.generations {
		if gen.state != GenerationConnecting && gen.state != GenerationRunning {
			continue
		}
		if sole != nil {
			return nil, ""
		}
		sole, soleID = gen, pid
	}
	return sole, soleID
}

func (s *Session) handleGenerationEvent(ev wire.Event) {
	switch ev.Kind {
	case wire.KindStatus:
		var status wire.StatusPayload
		_ = wire.DecodePayload(ev, &status)
		s.markRunning(status.ProcessID)
		if status.Message != "" {
			s.notify(StatusMessage{Stage: string(wire.StageGeneration), Message: status.Message})
		}
	case wire.KindProgress:
		s.handleGenerationProgress(ev)
	case wire.KindComplete:
		s.handleGenerationComplete(ev)
	case wire.KindError:
		s.handleGenerationError(ev)
	}
}

// markRunning moves a connecting generation to generating on the first
// event that proves the backend picked the job up.
func (s *Session) markRunning(processID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen, _ := s.claimGeneration(processID)
	if gen != nil && gen.state == GenerationConnecting {
		gen.state, _ = gen.state.transition(GenerationRunning)
	}
}

func (s *Session) handleGenerationProgress(ev wire.Event) {
	var p wire.ProgressPayload
	if err := wire.DecodePayload(ev, &p); err != nil {
		s.logger.Warn("malformed progress payload", "error", err)
		return
	}

	s.mu.Lock()
	gen, pid := s.claimGeneration(p.ProcessID)
	if gen == nil {
		s.mu.Unlock()
		s.logger.Debug("stale progress ignored", "process_id", p.ProcessID, "step", p.Step)
		return
	}
	if gen.state == GenerationConnecting {
		gen.state, _ = gen.state.transition(GenerationRunning)
	}
	if gen.state != GenerationRunning {
		s.mu.Unlock()
		s.logger.Debug("progress after terminal state ignored", "process_id", pid)
		return
	}
	// Replace, never max: the display always shows the most recently
	// received snapshot.
	gen.progress = storyboard.Progress{Current: p.Step, Total: p.Total, Message: p.Message}
	snapshot := gen.progress
	s.mu.Unlock()

	s.notify(GenerationProgressed{ProcessID: pid, Progress: snapshot})
}

func (s *Session) handleGenerationComplete(ev wire.Event) {
	var res wire.GenerationComplete
	if err := wire.DecodePayload(ev, &res); err != nil {
		s.logger.Warn("malformed completion payload", "error", err)
		return
	}

	s.mu.Lock()
	gen, pid := s.claimGeneration(res.ProcessID)
	if gen == nil || gen.state == GenerationError {
		s.mu.Unlock()
		s.logger.Debug("stale completion ignored", "process_id", res.ProcessID)
		return
	}

	images := assembler.Assemble(res.ComicResults, gen.job.ScenesDetail)
	duplicate := gen.state == GenerationCompleted

	if !duplicate {
		gen.state, _ = gen.state.transition(GenerationCompleted)
	}
	stopTimerLocked(gen)
	delete(s.activeChapter, gen.job.ChapterID)
	// Completion is idempotent: a duplicate replaces the list without
	// side effects or repeat notifications.
	s.lastImages = images
	s.lastImagesJob = pid
	s.mu.Unlock()

	if duplicate {
		s.logger.Debug("duplicate completion replaced image list", "process_id", pid)
		return
	}
	s.notify(GalleryReady{ProcessID: pid, Images: images})
	s.logger.Info("generation completed", "process_id", pid, "images", len(images))
}

func (s *Session) handleGenerationError(ev wire.Event) {
	var perr wire.ErrorPayload
	_ = wire.DecodePayload(ev, &perr)

	s.mu.Lock()
	gen, pid := s.claimGeneration(perr.ProcessID)
	if gen == nil || (gen.state != GenerationConnecting && gen.state != GenerationRunning) {
		s.mu.Unlock()
		s.logger.Debug("stale generation error ignored", "process_id", perr.ProcessID)
		return
	}
	gen.state, _ = gen.state.transition(GenerationError)
	stopTimerLocked(gen)
	delete(s.activeChapter, gen.job.ChapterID)
	// gen.progress is intentionally preserved for diagnosis.
	s.mu.Unlock()

	s.notify(GenerationFailed{ProcessID: pid, Reason: perr.Error})
	s.logger.Warn("generation failed", "process_id", pid, "reason", perr.Error)
}

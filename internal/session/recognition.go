package session

import (
	"context"
	"strings"

	"github.com/kriswu/inkstone/internal/storyboard"
	"github.com/kriswu/inkstone/internal/wire"
)

// RecognitionOutcome is the settled result of one recognition request.
type RecognitionOutcome struct {
	ChapterID string
	Job       *storyboard.Job
	Sections  []storyboard.Section
	Fallback  bool
	Reason    string
	Failed    bool
	Cancelled bool
}

// Recognize issues a storyboard recognition request for one chapter.
// At most one recognition may run per chapter; requests for different
// chapters are tracked independently. The returned channel receives
// exactly one outcome.
func (s *Session) Recognize(chapterID, text string) (<-chan RecognitionOutcome, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	s.mu.Lock()
	if !s.authenticated {
		s.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	if rec, ok := s.recognitions[chapterID]; ok && rec.state == RecognitionRunning {
		s.mu.Unlock()
		return nil, ErrRecognitionBusy
	}
	rec := &recognition{
		chapterID: chapterID,
		text:      text,
		state:     RecognitionRunning,
		done:      make(chan RecognitionOutcome, 1),
	}
	s.recognitions[chapterID] = rec
	s.mu.Unlock()

	err := s.ch.Send(wire.EventProcessNovel, wire.ProcessNovelRequest{
		NovelText: text,
		ChapterID: chapterID,
	})
	if err != nil {
		s.mu.Lock()
		rec.state, _ = rec.state.transition(RecognitionFailed)
		delete(s.recognitions, chapterID)
		s.mu.Unlock()
		return nil, err
	}

	s.logger.Info("recognition requested", "chapter", chapterID, "text_len", len(text))
	return rec.done, nil
}

// RecognizeWait is the blocking form of Recognize.
func (s *Session) RecognizeWait(ctx context.Context, chapterID, text string) (RecognitionOutcome, error) {
	done, err := s.Recognize(chapterID, text)
	if err != nil {
		return RecognitionOutcome{}, err
	}
	select {
	case <-ctx.Done():
		s.CancelRecognition(chapterID)
		return RecognitionOutcome{}, ctx.Err()
	case outcome := <-done:
		if outcome.Cancelled {
			return outcome, ErrCancelled
		}
		return outcome, nil
	}
}

// CancelRecognition abandons an in-flight recognition. The per-chapter
// lock is released and any late completion for the abandoned request
// is discarded by the identifier check.
func (s *Session) CancelRecognition(chapterID string) {
	s.mu.Lock()
	rec, ok := s.recognitions[chapterID]
	if !ok || rec.state != RecognitionRunning {
		s.mu.Unlock()
		return
	}
	rec.state, _ = rec.state.transition(RecognitionCancelled)
	delete(s.recognitions, chapterID)
	s.mu.Unlock()

	select {
	case rec.done <- RecognitionOutcome{ChapterID: chapterID, Cancelled: true}:
	default:
	}
	s.logger.Info("recognition cancelled", "chapter", chapterID)
}

// RecognitionStateFor reports the tracked state for a chapter.
func (s *Session) RecognitionStateFor(chapterID string) RecognitionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.recognitions[chapterID]; ok {
		return rec.state
	}
	return RecognitionIdle
}

func (s *Session) handleRecognitionEvent(ev wire.Event) {
	switch ev.Kind {
	case wire.KindStatus:
		var status wire.StatusPayload
		_ = wire.DecodePayload(ev, &status)
		if status.Message != "" {
			s.notify(StatusMessage{Stage: string(wire.StageRecognition), Message: status.Message})
		}
	case wire.KindComplete:
		s.handleRecognitionComplete(ev)
	case wire.KindError:
		s.handleRecognitionError(ev)
	}
}

// claimRecognition resolves which in-flight recognition an event
// belongs to. Events lacking a chapter id are attributed to the sole
// running recognition when exactly one exists, otherwise dropped.
func (s *Session) claimRecognition(chapterID string) *recognition {
	if chapterID != "" {
		rec, ok := s.recognitions[chapterID]
		if !ok || rec.state != RecognitionRunning {
			return nil
		}
		return rec
	}
	var sole *recognition
	for _, rec := range s.recognitions {
		if rec.state != RecognitionRunning {
			continue
		}
		if sole != nil {
			return nil // ambiguous, cannot attribute
		}
		sole = rec
	}
	return sole
}

func (s *Session) handleRecognitionComplete(ev wire.Event) {
	var res wire.TextProcessingResult
	if err := wire.DecodePayload(ev, &res); err != nil {
		s.logger.Warn("malformed recognition result", "error", err)
		return
	}

	s.mu.Lock()
	rec := s.claimRecognition(res.ChapterID)
	if rec == nil {
		s.mu.Unlock()
		s.logger.Debug("stale recognition completion ignored",
			"chapter", res.ChapterID, "process_id", res.ProcessID)
		return
	}
	rec.state, _ = rec.state.transition(RecognitionRecognized)

	outcome := RecognitionOutcome{ChapterID: rec.chapterID}
	if len(res.ScenesDetail) > 0 {
		outcome.Sections = storyboard.SectionsFromScenes(res.ScenesDetail)
		outcome.Job = &storyboard.Job{
			ProcessID:              res.ProcessID,
			ChapterID:              rec.chapterID,
			SceneCount:             len(res.ScenesDetail),
			CharacterConsistency:   res.CharacterConsistency,
			EnvironmentConsistency: res.EnvironmentConsistency,
			ScenesDetail:           res.ScenesDetail,
		}
	} else {
		// Absent or malformed scene payload: degrade to the local
		// heuristic rather than surfacing a failure.
		outcome.Fallback = true
		outcome.Reason = "backend returned no scene data"
		outcome.Sections = storyboard.SplitShots(rec.text)
		outcome.Job = fallbackJob(rec, outcome.Sections)
	}
	s.mu.Unlock()

	rec.done <- outcome
	s.notify(RecognitionResult{
		ChapterID: outcome.ChapterID,
		Job:       outcome.Job,
		Sections:  outcome.Sections,
		Fallback:  outcome.Fallback,
		Reason:    outcome.Reason,
	})
	s.logger.Info("recognition settled", "chapter", outcome.ChapterID,
		"scenes", len(outcome.Sections), "fallback", outcome.Fallback)
}

// handleRecognitionError degrades to the local splitter: a best-effort
// storyboard beats surfacing an error the user cannot act on. The
// synthesized job has no process id, so generation stays unavailable
// until a successful re-run.
func (s *Session) handleRecognitionError(ev wire.Event) {
	var perr wire.ErrorPayload
	_ = wire.DecodePayload(ev, &perr)

	s.mu.Lock()
	rec := s.claimRecognition("")
	if rec == nil {
		s.mu.Unlock()
		s.logger.Debug("stale recognition error ignored", "error", perr.Error)
		return
	}
	rec.state, _ = rec.state.transition(RecognitionRecognized)
	sections := storyboard.SplitShots(rec.text)
	outcome := RecognitionOutcome{
		ChapterID: rec.chapterID,
		Sections:  sections,
		Job:       fallbackJob(rec, sections),
		Fallback:  true,
		Reason:    perr.Error,
	}
	s.mu.Unlock()

	rec.done <- outcome
	s.notify(RecognitionResult{
		ChapterID: outcome.ChapterID,
		Job:       outcome.Job,
		Sections:  outcome.Sections,
		Fallback:  true,
		Reason:    perr.Error,
	})
	s.logger.Warn("recognition degraded to local splitter",
		"chapter", outcome.ChapterID, "reason", perr.Error)
}

func fallbackJob(rec *recognition, sections []storyboard.Section) *storyboard.Job {
	scenes := make([]string, len(sections))
	for i, sec := range sections {
		scenes[i] = sec.Detail
	}
	return &storyboard.Job{
		ChapterID:    rec.chapterID,
		SceneCount:   len(sections),
		ScenesDetail: scenes,
	}
}

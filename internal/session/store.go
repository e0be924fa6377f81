package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dkoval/careermate/internal/careerapi"
	"github.com/dkoval/careermate/internal/logger"
	"go.uber.org/zap"
)

// API is the slice of the transport client the store needs.
type API interface {
	StartSession(ctx context.Context, language string) (*careerapi.SessionState, error)
	GetSession(ctx context.Context) (*careerapi.SessionState, error)
	SendTurn(ctx context.Context, utterance string) (*careerapi.TurnResult, error)
}

// Store owns the in-memory state of one interview session. All mutation goes
// through Start, Load, Submit and Reset; profile fields change only on
// successful server responses, never optimistically. The single exception is
// the user's own turn, which is echoed into the transcript before the server
// acknowledges it.
type Store struct {
	mu       sync.Mutex
	api      API
	logger   *zap.Logger
	profile  *Profile
	awaiting bool
	starting bool
	now      func() time.Time
}

// Outcome is the result of one successful submission.
type Outcome struct {
	Profile *Profile
	// Recommendations is the inline ranked set the server attached to the
	// completing turn, if any. It is handed to the fan-out controller by the
	// caller; the store does not hold it.
	Recommendations []*careerapi.Recommendation
}

func NewStore(api API, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		api:    api,
		logger: log,
		now:    time.Now,
	}
}

// Start opens a new session. On failure the store stays uninitialized and the
// call may be retried. On success the transcript holds exactly the assistant's
// opening turn.
func (s *Store) Start(ctx context.Context, language string) (*Profile, error) {
	s.mu.Lock()
	if s.profile != nil {
		s.mu.Unlock()
		return nil, &PreconditionError{Op: "start", Reason: "session already started, reset first"}
	}
	if s.starting {
		s.mu.Unlock()
		return nil, &PreconditionError{Op: "start", Reason: "a start is already in flight"}
	}
	// The guard spans the round-trip so a concurrent Start never opens a
	// second server session.
	s.starting = true
	s.mu.Unlock()

	state, err := s.api.StartSession(ctx, language)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false

	if err != nil {
		return nil, err
	}

	s.profile = &Profile{
		Stage:           Stage(state.Stage),
		ProgressPercent: state.ProgressPercent,
		RawProfile:      state.Profile,
		Transcript: []Turn{{
			Speaker:    SpeakerAssistant,
			Text:       state.OpeningMessage,
			OccurredAt: s.now(),
		}},
	}

	s.logger.Info("session started",
		zap.String(logger.FieldStage, state.Stage),
		zap.Int("progress_percent", state.ProgressPercent),
	)

	return s.profile.clone(), nil
}

// Load reconstructs a previously started session from the server's stored
// rounds, in order: user turn then assistant turn per round. Returns
// (nil, nil) when the server has no session.
func (s *Store) Load(ctx context.Context) (*Profile, error) {
	state, err := s.api.GetSession(ctx)
	if err != nil {
		if errors.Is(err, careerapi.ErrNoSession) {
			return nil, nil
		}
		return nil, err
	}

	transcript := make([]Turn, 0, len(state.Rounds)*2)
	for _, round := range state.Rounds {
		if round == nil {
			continue
		}
		if round.UserMessage != "" {
			transcript = append(transcript, Turn{
				Speaker:    SpeakerUser,
				Text:       round.UserMessage,
				OccurredAt: s.now(),
			})
		}
		if round.AssistantMessage != "" {
			transcript = append(transcript, Turn{
				Speaker:    SpeakerAssistant,
				Text:       round.AssistantMessage,
				OccurredAt: s.now(),
			})
		}
	}

	profile := &Profile{
		Stage:           Stage(state.Stage),
		ProgressPercent: state.ProgressPercent,
		RawProfile:      state.Profile,
		Transcript:      transcript,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = profile
	s.awaiting = false

	s.logger.Info("session loaded",
		zap.String(logger.FieldStage, state.Stage),
		zap.Int("progress_percent", state.ProgressPercent),
		zap.Int("transcript_turns", len(transcript)),
	)

	return profile.clone(), nil
}

// Reset clears the in-memory session without notifying the server. Used only
// when the caller abandons the flow.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = nil
	s.awaiting = false
}

// Profile returns a copy of the current session state, or nil when no session
// has been started.
func (s *Store) Profile() *Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.clone()
}

// Awaiting reports whether a submission is in flight.
func (s *Store) Awaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting
}

// Submit advances the session by exactly one user utterance. At most one
// submission may be in flight at a time; a second one is refused before any
// network call. The user turn is echoed into the transcript immediately and
// survives a failed request, since it was genuinely sent. Cancellation of ctx
// resolves the request and releases the in-flight state, so a stalled request
// cannot wedge the session.
func (s *Store) Submit(ctx context.Context, text string) (*Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &PreconditionError{Op: "submit", Reason: "utterance is empty"}
	}

	s.mu.Lock()
	if s.profile == nil {
		s.mu.Unlock()
		return nil, &PreconditionError{Op: "submit", Reason: "session is not started"}
	}
	if s.profile.Stage == StageComplete {
		s.mu.Unlock()
		return nil, &PreconditionError{Op: "submit", Reason: "session is already complete"}
	}
	if s.awaiting {
		s.mu.Unlock()
		return nil, &PreconditionError{Op: "submit", Reason: "a submission is already in flight"}
	}

	s.awaiting = true
	s.profile.Transcript = append(s.profile.Transcript, Turn{
		Speaker:    SpeakerUser,
		Text:       text,
		OccurredAt: s.now(),
	})
	s.mu.Unlock()

	result, err := s.api.SendTurn(ctx, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.awaiting = false

	if err != nil {
		s.logger.Warn("turn submission failed",
			zap.Error(err),
			zap.String("utterance_preview", logger.TruncateForLog(text, 80)),
		)
		return nil, err
	}

	if s.profile == nil {
		// Reset raced the reply; the session it belonged to is gone.
		s.logger.Warn("discarding reply for a reset session")
		return nil, &PreconditionError{Op: "submit", Reason: "session was reset while the reply was in flight"}
	}

	previousProgress := s.profile.ProgressPercent

	s.profile.Transcript = append(s.profile.Transcript, Turn{
		Speaker:    SpeakerAssistant,
		Text:       result.AssistantMessage,
		OccurredAt: s.now(),
	})
	s.profile.Stage = Stage(result.Stage)
	s.profile.ProgressPercent = result.ProgressPercent
	if result.IsComplete {
		s.profile.Stage = StageComplete
	}
	if len(result.Profile) > 0 {
		s.profile.RawProfile = result.Profile
	}

	s.logger.Info("turn accepted",
		zap.String(logger.FieldStage, string(s.profile.Stage)),
		zap.Int("progress_percent", result.ProgressPercent),
		zap.Bool("complete", result.IsComplete),
	)

	outcome := &Outcome{
		Profile:         s.profile.clone(),
		Recommendations: result.Recommendations,
	}

	if result.ProgressPercent < previousProgress {
		return outcome, &ProgressRegressionError{From: previousProgress, To: result.ProgressPercent}
	}

	return outcome, nil
}

package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/dkoval/careermate/internal/careerapi"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeAPI satisfies both API and FanoutAPI with programmable responses and
// call counters.
type fakeAPI struct {
	mu sync.Mutex

	startFn func(language string) (*careerapi.SessionState, error)
	getFn   func() (*careerapi.SessionState, error)
	sendFn  func(utterance string) (*careerapi.TurnResult, error)

	recsFn      func(profile json.RawMessage, maxResults int) (*careerapi.Recommendations, error)
	compatFn    func(jobID string) (*careerapi.AnalysisResult, error)
	letterFn    func(jobID string, style careerapi.LetterStyle) (*careerapi.CoverLetter, error)
	translateFn func(jobID string, lang careerapi.TargetLanguage) (*careerapi.TranslatedJob, error)

	startCalls     int
	getCalls       int
	sendCalls      int
	recsCalls      int
	compatCalls    int
	letterCalls    int
	translateCalls int
}

func (f *fakeAPI) StartSession(_ context.Context, language string) (*careerapi.SessionState, error) {
	f.mu.Lock()
	f.startCalls++
	fn := f.startFn
	f.mu.Unlock()
	return fn(language)
}

func (f *fakeAPI) GetSession(_ context.Context) (*careerapi.SessionState, error) {
	f.mu.Lock()
	f.getCalls++
	fn := f.getFn
	f.mu.Unlock()
	return fn()
}

func (f *fakeAPI) SendTurn(_ context.Context, utterance string) (*careerapi.TurnResult, error) {
	f.mu.Lock()
	f.sendCalls++
	fn := f.sendFn
	f.mu.Unlock()
	return fn(utterance)
}

func (f *fakeAPI) Recommendations(_ context.Context, profile json.RawMessage, maxResults int) (*careerapi.Recommendations, error) {
	f.mu.Lock()
	f.recsCalls++
	fn := f.recsFn
	f.mu.Unlock()
	return fn(profile, maxResults)
}

func (f *fakeAPI) Compatibility(_ context.Context, jobID string) (*careerapi.AnalysisResult, error) {
	f.mu.Lock()
	f.compatCalls++
	fn := f.compatFn
	f.mu.Unlock()
	return fn(jobID)
}

func (f *fakeAPI) CoverLetter(_ context.Context, jobID string, style careerapi.LetterStyle) (*careerapi.CoverLetter, error) {
	f.mu.Lock()
	f.letterCalls++
	fn := f.letterFn
	f.mu.Unlock()
	return fn(jobID, style)
}

func (f *fakeAPI) Translate(_ context.Context, jobID string, lang careerapi.TargetLanguage) (*careerapi.TranslatedJob, error) {
	f.mu.Lock()
	f.translateCalls++
	fn := f.translateFn
	f.mu.Unlock()
	return fn(jobID, lang)
}

func (f *fakeAPI) calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch name {
	case "start":
		return f.startCalls
	case "get":
		return f.getCalls
	case "send":
		return f.sendCalls
	case "recs":
		return f.recsCalls
	case "compat":
		return f.compatCalls
	case "letter":
		return f.letterCalls
	case "translate":
		return f.translateCalls
	default:
		return -1
	}
}

func greetingState() *careerapi.SessionState {
	return &careerapi.SessionState{
		Stage:           "greeting",
		ProgressPercent: 0,
		OpeningMessage:  "Hello! Tell me about yourself.",
		Profile:         json.RawMessage(`{"token":"opaque"}`),
	}
}

func recommendation(jobID, name string, score int) *careerapi.Recommendation {
	rec := &careerapi.Recommendation{
		Job:                &careerapi.JobPosting{ID: jobID, Name: name},
		CompatibilityScore: score,
	}
	rec.Job.Employer.Name = "Acme"
	return rec
}

// startedStore returns a store with a freshly started greeting-stage session.
func startedStore(t *testing.T, api *fakeAPI) *Store {
	t.Helper()

	if api.startFn == nil {
		api.startFn = func(string) (*careerapi.SessionState, error) {
			return greetingState(), nil
		}
	}

	store := NewStore(api, zap.NewNop())
	_, err := store.Start(context.Background(), "en")
	require.NoError(t, err)

	return store
}

// completeStore returns a store whose session has reached the complete stage.
func completeStore(t *testing.T, api *fakeAPI) *Store {
	t.Helper()

	api.sendFn = func(string) (*careerapi.TurnResult, error) {
		return &careerapi.TurnResult{
			AssistantMessage: "All done.",
			Stage:            "complete",
			ProgressPercent:  100,
			IsComplete:       true,
		}, nil
	}

	store := startedStore(t, api)
	_, err := store.Submit(context.Background(), "here is everything about me")
	require.NoError(t, err)
	require.True(t, store.Profile().Complete())

	return store
}

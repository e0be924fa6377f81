package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/dkoval/careermate/internal/careerapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStartPopulatesOpeningTurn(t *testing.T) {
	api := &fakeAPI{}
	store := startedStore(t, api)

	profile := store.Profile()
	require.NotNil(t, profile)
	assert.Equal(t, StageGreeting, profile.Stage)
	assert.Equal(t, 0, profile.ProgressPercent)
	require.Len(t, profile.Transcript, 1)
	assert.Equal(t, SpeakerAssistant, profile.Transcript[0].Speaker)
	assert.Equal(t, "Hello! Tell me about yourself.", profile.Transcript[0].Text)
	assert.JSONEq(t, `{"token":"opaque"}`, string(profile.RawProfile))
}

func TestStartFailureLeavesStoreUninitializedAndRetryable(t *testing.T) {
	failing := true
	api := &fakeAPI{
		startFn: func(string) (*careerapi.SessionState, error) {
			if failing {
				return nil, &careerapi.APIError{Kind: careerapi.KindTransport, Message: "boom"}
			}
			return greetingState(), nil
		},
	}
	store := NewStore(api, zap.NewNop())

	_, err := store.Start(context.Background(), "en")
	require.Error(t, err)
	assert.Nil(t, store.Profile())

	failing = false
	profile, err := store.Start(context.Background(), "en")
	require.NoError(t, err)
	assert.Equal(t, StageGreeting, profile.Stage)
}

func TestStartTwiceRejected(t *testing.T) {
	store := startedStore(t, &fakeAPI{})

	_, err := store.Start(context.Background(), "en")
	assert.True(t, IsPrecondition(err))
}

func TestLoadRebuildsTranscriptFromRounds(t *testing.T) {
	api := &fakeAPI{
		getFn: func() (*careerapi.SessionState, error) {
			return &careerapi.SessionState{
				Stage:           "skills",
				ProgressPercent: 40,
				Profile:         json.RawMessage(`{"token":"opaque"}`),
				Rounds: []*careerapi.Round{
					{AssistantMessage: "Hello! Tell me about yourself."},
					{UserMessage: "I am a nurse.", AssistantMessage: "What are your skills?"},
				},
			}, nil
		},
	}
	store := NewStore(api, zap.NewNop())

	profile, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, profile)

	require.Len(t, profile.Transcript, 3)
	assert.Equal(t, SpeakerAssistant, profile.Transcript[0].Speaker)
	assert.Equal(t, SpeakerUser, profile.Transcript[1].Speaker)
	assert.Equal(t, "I am a nurse.", profile.Transcript[1].Text)
	assert.Equal(t, SpeakerAssistant, profile.Transcript[2].Speaker)
	assert.Equal(t, StageSkills, profile.Stage)
}

func TestLoadAbsentSessionIsNotAnError(t *testing.T) {
	api := &fakeAPI{
		getFn: func() (*careerapi.SessionState, error) {
			return nil, careerapi.ErrNoSession
		},
	}
	store := NewStore(api, zap.NewNop())

	profile, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestSubmitRejectsEmptyAndUnstarted(t *testing.T) {
	api := &fakeAPI{}
	store := NewStore(api, zap.NewNop())

	_, err := store.Submit(context.Background(), "hello")
	assert.True(t, IsPrecondition(err), "unstarted store must reject")

	store = startedStore(t, api)
	_, err = store.Submit(context.Background(), "   ")
	assert.True(t, IsPrecondition(err), "whitespace-only utterance must be rejected")

	assert.Equal(t, 0, api.calls("send"), "no network call may happen on rejection")
}

func TestSubmitOptimisticEchoSurvivesFailure(t *testing.T) {
	api := &fakeAPI{
		sendFn: func(string) (*careerapi.TurnResult, error) {
			return nil, &careerapi.APIError{Kind: careerapi.KindTransport, Message: "connection reset"}
		},
	}
	store := startedStore(t, api)

	_, err := store.Submit(context.Background(), "Hello")
	require.Error(t, err)

	profile := store.Profile()
	require.Len(t, profile.Transcript, 2)
	assert.Equal(t, SpeakerUser, profile.Transcript[1].Speaker)
	assert.Equal(t, "Hello", profile.Transcript[1].Text)
	assert.Equal(t, StageGreeting, profile.Stage, "failed turn must not touch profile fields")

	// The awaiting-reply state is cleared, so a retry is accepted.
	assert.False(t, store.Awaiting())
	api.sendFn = func(string) (*careerapi.TurnResult, error) {
		return &careerapi.TurnResult{AssistantMessage: "Got it.", Stage: "skills", ProgressPercent: 20}, nil
	}
	outcome, err := store.Submit(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Len(t, outcome.Profile.Transcript, 4)
}

func TestSubmitSerializedWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	api := &fakeAPI{
		sendFn: func(string) (*careerapi.TurnResult, error) {
			close(entered)
			<-release
			return &careerapi.TurnResult{AssistantMessage: "ok", Stage: "skills", ProgressPercent: 10}, nil
		},
	}
	store := startedStore(t, api)

	done := make(chan error, 1)
	go func() {
		_, err := store.Submit(context.Background(), "first")
		done <- err
	}()

	<-entered
	_, err := store.Submit(context.Background(), "second")
	assert.True(t, IsPrecondition(err), "second submission must be refused while first is in flight")

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, 1, api.calls("send"), "the refused submission must not reach the network")
}

func TestProgressMonotonicAndTranscriptGrowth(t *testing.T) {
	progressSteps := []int{20, 40, 40, 70, 100}
	call := 0
	api := &fakeAPI{
		sendFn: func(string) (*careerapi.TurnResult, error) {
			progress := progressSteps[call]
			call++
			stage := "skills"
			complete := progress == 100
			if complete {
				stage = "complete"
			}
			return &careerapi.TurnResult{
				AssistantMessage: fmt.Sprintf("reply %d", call),
				Stage:            stage,
				ProgressPercent:  progress,
				IsComplete:       complete,
			}, nil
		},
	}
	store := startedStore(t, api)
	initialTurns := len(store.Profile().Transcript)

	previous := 0
	for i := range progressSteps {
		outcome, err := store.Submit(context.Background(), fmt.Sprintf("answer %d", i))
		require.NoError(t, err)

		profile := outcome.Profile
		assert.GreaterOrEqual(t, profile.ProgressPercent, previous)
		previous = profile.ProgressPercent

		assert.Len(t, profile.Transcript, initialTurns+2*(i+1))
	}

	// Append order: user turn then the assistant reply that answered it.
	transcript := store.Profile().Transcript
	for i := initialTurns; i < len(transcript); i += 2 {
		assert.Equal(t, SpeakerUser, transcript[i].Speaker)
		assert.Equal(t, SpeakerAssistant, transcript[i+1].Speaker)
	}
}

func TestProgressRegressionSurfaced(t *testing.T) {
	first := true
	api := &fakeAPI{
		sendFn: func(string) (*careerapi.TurnResult, error) {
			if first {
				first = false
				return &careerapi.TurnResult{AssistantMessage: "ok", Stage: "skills", ProgressPercent: 40}, nil
			}
			return &careerapi.TurnResult{AssistantMessage: "hm", Stage: "skills", ProgressPercent: 10}, nil
		},
	}
	store := startedStore(t, api)

	_, err := store.Submit(context.Background(), "one")
	require.NoError(t, err)

	outcome, err := store.Submit(context.Background(), "two")
	var regression *ProgressRegressionError
	require.True(t, errors.As(err, &regression), "regression must be surfaced, got %v", err)
	assert.Equal(t, 40, regression.From)
	assert.Equal(t, 10, regression.To)

	// The server log stays the source of truth: the turn itself is applied.
	require.NotNil(t, outcome)
	assert.Equal(t, 10, outcome.Profile.ProgressPercent)
}

func TestSubmitAfterCompleteRejected(t *testing.T) {
	api := &fakeAPI{}
	store := completeStore(t, api)
	sent := api.calls("send")

	_, err := store.Submit(context.Background(), "one more thing")
	assert.True(t, IsPrecondition(err))
	assert.Equal(t, sent, api.calls("send"))
}

func TestResetDuringInFlightSubmitDropsReply(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	api := &fakeAPI{
		sendFn: func(string) (*careerapi.TurnResult, error) {
			close(entered)
			<-release
			return &careerapi.TurnResult{AssistantMessage: "too late", Stage: "skills", ProgressPercent: 20}, nil
		},
	}
	store := startedStore(t, api)

	type result struct {
		outcome *Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := store.Submit(context.Background(), "hello")
		done <- result{outcome, err}
	}()

	<-entered
	store.Reset()
	close(release)

	res := <-done
	assert.True(t, IsPrecondition(res.err), "the late reply must be dropped, got %v", res.err)
	assert.Nil(t, res.outcome)

	// The store stays cleanly reset, ready for a fresh start.
	assert.Nil(t, store.Profile())
	assert.False(t, store.Awaiting())
	_, err := store.Start(context.Background(), "en")
	require.NoError(t, err)
}

func TestConcurrentStartOpensOneServerSession(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	api := &fakeAPI{
		startFn: func(string) (*careerapi.SessionState, error) {
			close(entered)
			<-release
			return greetingState(), nil
		},
	}
	store := NewStore(api, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := store.Start(context.Background(), "en")
		done <- err
	}()

	<-entered
	_, err := store.Start(context.Background(), "en")
	assert.True(t, IsPrecondition(err), "second start must be refused while the first is in flight")

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, 1, api.calls("start"), "only one server session may be opened")
	assert.Equal(t, StageGreeting, store.Profile().Stage)
}

func TestResetClearsSession(t *testing.T) {
	store := startedStore(t, &fakeAPI{})
	store.Reset()

	assert.Nil(t, store.Profile())
	assert.False(t, store.Awaiting())
}

func TestProfileReturnsCopy(t *testing.T) {
	store := startedStore(t, &fakeAPI{})

	profile := store.Profile()
	profile.Transcript[0].Text = "tampered"
	profile.Stage = StageComplete

	fresh := store.Profile()
	assert.Equal(t, "Hello! Tell me about yourself.", fresh.Transcript[0].Text)
	assert.Equal(t, StageGreeting, fresh.Stage)
}

// Full interview walkthrough: greeting to completion with an inline
// recommendation, then a fetch that replaces the inline set entirely.
func TestInterviewScenario(t *testing.T) {
	turn := 0
	api := &fakeAPI{
		sendFn: func(utterance string) (*careerapi.TurnResult, error) {
			turn++
			switch turn {
			case 1:
				require.Equal(t, "I am a nurse with 5 years experience", utterance)
				return &careerapi.TurnResult{AssistantMessage: "What are you looking for?", Stage: "skills", ProgressPercent: 40}, nil
			default:
				require.Equal(t, "I want remote work in Berlin", utterance)
				return &careerapi.TurnResult{
					AssistantMessage: "Your profile is complete.",
					Stage:            "complete",
					ProgressPercent:  100,
					IsComplete:       true,
					Recommendations:  []*careerapi.Recommendation{recommendation("job-a", "Nurse", 80)},
				}, nil
			}
		},
		recsFn: func(json.RawMessage, int) (*careerapi.Recommendations, error) {
			return &careerapi.Recommendations{Items: []*careerapi.Recommendation{
				recommendation("job-b", "Senior Nurse", 91),
				recommendation("job-c", "Care Lead", 77),
			}}, nil
		},
	}

	store := startedStore(t, api)
	fanout := NewFanout(store, api, zap.NewNop())

	outcome, err := store.Submit(context.Background(), "I am a nurse with 5 years experience")
	require.NoError(t, err)
	assert.Equal(t, StageSkills, outcome.Profile.Stage)
	assert.Equal(t, 40, outcome.Profile.ProgressPercent)

	outcome, err = store.Submit(context.Background(), "I want remote work in Berlin")
	require.NoError(t, err)
	assert.True(t, outcome.Profile.Complete())
	require.Len(t, outcome.Recommendations, 1)

	fanout.Seed(outcome.Recommendations)
	require.Equal(t, 1, fanout.Recommendations().Len())
	require.NotNil(t, fanout.Recommendations().FindByJobID("job-a"))

	recs, err := fanout.FetchRecommendations(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, recs.Len())
	assert.Nil(t, fanout.Recommendations().FindByJobID("job-a"), "stale inline set must be fully replaced")
	assert.NotNil(t, fanout.Recommendations().FindByJobID("job-b"))
}

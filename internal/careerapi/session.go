package careerapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mitchellh/mapstructure"
)

const (
	sessionPath      = "/session"
	sessionStartPath = "/session/start"
	sessionTurnPath  = "/session/turn"
)

// SessionState is the server's view of the interview session. Profile is an
// opaque payload the client only ever forwards back to the server.
type SessionState struct {
	Profile         json.RawMessage `json:"profile,omitempty"`
	OpeningMessage  string          `json:"opening_message,omitempty"`
	Stage           string          `json:"stage,omitempty"`
	ProgressPercent int             `json:"progress_percent,omitempty"`
	Rounds          []*Round        `json:"rounds,omitempty"`
}

// Round is one question/answer exchange in the stored conversation history.
// The opening round carries only the assistant's greeting.
type Round struct {
	UserMessage      string `json:"user_message,omitempty"`
	AssistantMessage string `json:"assistant_message,omitempty"`
}

// TurnResult is the server's reply to one submitted utterance.
type TurnResult struct {
	AssistantMessage string
	Stage            string
	ProgressPercent  int
	IsComplete       bool
	Profile          json.RawMessage
	// Recommendations is the inline ranked set the server may attach to the
	// completing turn. Nil when the server sent none.
	Recommendations []*Recommendation
}

type turnResponse struct {
	AssistantMessage string          `json:"assistant_message,omitempty"`
	Stage            string          `json:"stage,omitempty"`
	ProgressPercent  int             `json:"progress_percent,omitempty"`
	IsComplete       bool            `json:"is_complete,omitempty"`
	Profile          json.RawMessage `json:"profile,omitempty"`
	Recommendations  []any           `json:"recommendations,omitempty"`
}

// StartSession opens a new interview session in the given language and returns
// the opening state, including the assistant's greeting.
func (c *Client) StartSession(ctx context.Context, language string) (*SessionState, error) {
	payload := map[string]string{"language": language}

	var state *SessionState
	if err := c.postJSON(ctx, sessionStartPath, payload, &state); err != nil {
		return nil, err
	}

	if state == nil || state.OpeningMessage == "" || state.Stage == "" {
		return nil, &APIError{Kind: KindTransport, Message: "session start response is missing required fields"}
	}

	return state, nil
}

// GetSession fetches the stored session, including the full conversation
// history as rounds. Returns ErrNoSession when the server has none.
func (c *Client) GetSession(ctx context.Context) (*SessionState, error) {
	var state *SessionState
	err := c.getJSON(ctx, sessionPath, &state)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrNoSession
		}
		return nil, err
	}

	if state == nil || state.Stage == "" {
		return nil, ErrNoSession
	}

	return state, nil
}

// SendTurn submits one user utterance. The server holds the authoritative
// conversation continuity; only the raw text travels.
func (c *Client) SendTurn(ctx context.Context, utterance string) (*TurnResult, error) {
	payload := map[string]string{"utterance": utterance}

	var resp *turnResponse
	if err := c.postJSON(ctx, sessionTurnPath, payload, &resp); err != nil {
		return nil, err
	}

	if resp == nil || resp.AssistantMessage == "" || resp.Stage == "" {
		return nil, &APIError{Kind: KindTransport, Message: "turn response is missing required fields"}
	}

	result := &TurnResult{
		AssistantMessage: resp.AssistantMessage,
		Stage:            resp.Stage,
		ProgressPercent:  resp.ProgressPercent,
		IsComplete:       resp.IsComplete,
		Profile:          resp.Profile,
	}

	if len(resp.Recommendations) > 0 {
		recs, err := decodeRecommendations(resp.Recommendations)
		if err != nil {
			return nil, &APIError{Kind: KindTransport, Message: fmt.Sprintf("decode inline recommendations: %s", err)}
		}
		result.Recommendations = recs
	}

	return result, nil
}

// decodeRecommendations converts the loosely-typed inline items into typed
// recommendations, keyed by json tags.
func decodeRecommendations(items []any) ([]*Recommendation, error) {
	var recs []*Recommendation

	cfg := &mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   &recs,
		TagName:  "json",
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(items); err != nil {
		return nil, err
	}

	return recs, nil
}

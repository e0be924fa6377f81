// Package session holds the client-side state of one interview session: the
// authoritative transcript, the server-reported stage and progress, and the
// post-completion fan-out operations. The server owns conversation continuity;
// this package only mirrors it and enforces the client-side ordering rules.
package session

import (
	"encoding/json"
	"time"
)

// Speaker identifies the author of a transcript turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one message in the session transcript. Turns are immutable once
// appended; the transcript is append-only.
type Turn struct {
	Speaker    Speaker
	Text       string
	OccurredAt time.Time
}

// Stage is the coarse interview phase reported by the server.
type Stage string

const (
	StageGreeting Stage = "greeting"
	StageSkills   Stage = "skills"
	StageComplete Stage = "complete"
)

// Profile is the client-side mirror of one interview session. RawProfile is
// the server's profile payload, kept opaque and only forwarded back in
// dependent requests.
type Profile struct {
	Stage           Stage
	ProgressPercent int
	Transcript      []Turn
	RawProfile      json.RawMessage
}

// Complete reports whether the interview has reached its terminal stage.
func (p *Profile) Complete() bool {
	return p != nil && p.Stage == StageComplete
}

// clone returns a copy whose transcript cannot be mutated through the original.
func (p *Profile) clone() *Profile {
	if p == nil {
		return nil
	}

	transcript := make([]Turn, len(p.Transcript))
	copy(transcript, p.Transcript)

	return &Profile{
		Stage:           p.Stage,
		ProgressPercent: p.ProgressPercent,
		Transcript:      transcript,
		RawProfile:      p.RawProfile,
	}
}

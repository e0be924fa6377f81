package ai

import (
	"context"
	"encoding/json"

	"github.com/dkoval/careermate/internal/careerapi"
)

// Drafter generates a cover letter locally, without going through the
// CareerMate backend. The profile payload is the server's opaque profile,
// forwarded as-is for context.
type Drafter interface {
	DraftCoverLetter(ctx context.Context, job *careerapi.JobPosting, profile json.RawMessage, style careerapi.LetterStyle) (*careerapi.CoverLetter, error)
}

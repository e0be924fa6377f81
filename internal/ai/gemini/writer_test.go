package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dkoval/careermate/internal/careerapi"
	"go.uber.org/zap"
)

type fakeGenerator struct {
	prompt string
	output string
	err    error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.output, f.err
}

func nursePosting() *careerapi.JobPosting {
	job := &careerapi.JobPosting{ID: "job-a", Name: "Nurse"}
	job.Employer.Name = "Acme Health"
	return job
}

func TestDraftCoverLetterBuildsPrompt(t *testing.T) {
	gen := &fakeGenerator{output: "  Dear hiring manager,\n\nI am writing...  "}
	writer := NewWriter(gen, zap.NewNop(), 0)

	profile := json.RawMessage(`{"skills":["care planning"]}`)

	letter, err := writer.DraftCoverLetter(context.Background(), nursePosting(), profile, careerapi.StyleProfessional)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if letter.Text != "Dear hiring manager,\n\nI am writing..." {
		t.Fatalf("output must be trimmed, got %q", letter.Text)
	}
	if letter.Style != string(careerapi.StyleProfessional) {
		t.Fatalf("unexpected style %q", letter.Style)
	}

	for _, want := range []string{"Nurse", "Acme Health", "care planning", "professional"} {
		if !strings.Contains(gen.prompt, want) {
			t.Fatalf("prompt must contain %q:\n%s", want, gen.prompt)
		}
	}
	if strings.Contains(gen.prompt, "{{") {
		t.Fatalf("prompt has unreplaced placeholders:\n%s", gen.prompt)
	}
}

func TestDraftCoverLetterEmptyProfileDefaults(t *testing.T) {
	gen := &fakeGenerator{output: "letter"}
	writer := NewWriter(gen, zap.NewNop(), 0)

	if _, err := writer.DraftCoverLetter(context.Background(), nursePosting(), nil, careerapi.StyleCreative); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(gen.prompt, "{}") {
		t.Fatal("missing profile must be sent as an empty object")
	}
}

func TestDraftCoverLetterRequiresJob(t *testing.T) {
	writer := NewWriter(&fakeGenerator{output: "letter"}, zap.NewNop(), 0)

	if _, err := writer.DraftCoverLetter(context.Background(), nil, nil, careerapi.StyleProfessional); err == nil {
		t.Fatal("expected error for nil job")
	}
}

func TestDraftCoverLetterPropagatesGeneratorError(t *testing.T) {
	genErr := errors.New("quota exceeded")
	writer := NewWriter(&fakeGenerator{err: genErr}, zap.NewNop(), 0)

	_, err := writer.DraftCoverLetter(context.Background(), nursePosting(), nil, careerapi.StyleProfessional)
	if !errors.Is(err, genErr) {
		t.Fatalf("expected generator error, got %v", err)
	}
}

func TestDraftCoverLetterRejectsBlankOutput(t *testing.T) {
	writer := NewWriter(&fakeGenerator{output: "   \n  "}, zap.NewNop(), 0)

	if _, err := writer.DraftCoverLetter(context.Background(), nursePosting(), nil, careerapi.StyleProfessional); err == nil {
		t.Fatal("expected error for blank output")
	}
}

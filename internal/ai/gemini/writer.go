package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/dkoval/careermate/internal/careerapi"
	"github.com/dkoval/careermate/internal/logger"
	"go.uber.org/zap"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// Writer drafts cover letters through Gemini. It implements ai.Drafter.
type Writer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewWriter(generator contentGenerator, log *zap.Logger, maxLogLength int) *Writer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Writer{
		generator: generator,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// DraftCoverLetter builds the prompt from the job posting and the opaque
// profile payload and returns the generated letter.
func (w *Writer) DraftCoverLetter(ctx context.Context, job *careerapi.JobPosting, profile json.RawMessage, style careerapi.LetterStyle) (*careerapi.CoverLetter, error) {
	if job == nil {
		return nil, fmt.Errorf("job posting is required")
	}

	jobJSON, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}

	profileJSON := "{}"
	if len(profile) > 0 {
		profileJSON = string(profile)
	}

	prompt := buildPrompt(string(jobJSON), profileJSON, string(style))

	w.logger.Debug("gemini cover letter request",
		zap.String(logger.FieldJob, job.ID),
		zap.String("style", string(style)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, w.maxLogLen)),
	)

	raw, err := w.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, fmt.Errorf("gemini returned an empty cover letter")
	}

	w.logger.Debug("gemini cover letter response",
		zap.String(logger.FieldJob, job.ID),
		zap.Int("response_length", utf8.RuneCountInString(text)),
		zap.String("response_preview", logger.TruncateForLog(text, w.maxLogLen)),
	)

	return &careerapi.CoverLetter{
		Style: string(style),
		Text:  text,
	}, nil
}

func buildPrompt(jobJSON, profileJSON, style string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Profile:\n{{PROFILE_JSON}}\n\nJob:\n{{JOB_JSON}}\n\nStyle: {{STYLE}}\n\nCover letter:"
	}
	prompt := strings.ReplaceAll(template, "{{JOB_JSON}}", jobJSON)
	prompt = strings.ReplaceAll(prompt, "{{PROFILE_JSON}}", profileJSON)
	prompt = strings.ReplaceAll(prompt, "{{STYLE}}", style)
	return prompt
}

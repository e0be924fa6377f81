package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dkoval/careermate/internal/ai"
	"github.com/dkoval/careermate/internal/careerapi"
	"github.com/dkoval/careermate/internal/logger"
	"go.uber.org/zap"
)

// FanoutAPI is the slice of the transport client the fan-out controller needs.
type FanoutAPI interface {
	Recommendations(ctx context.Context, profile json.RawMessage, maxResults int) (*careerapi.Recommendations, error)
	Compatibility(ctx context.Context, jobID string) (*careerapi.AnalysisResult, error)
	CoverLetter(ctx context.Context, jobID string, style careerapi.LetterStyle) (*careerapi.CoverLetter, error)
	Translate(ctx context.Context, jobID string, lang careerapi.TargetLanguage) (*careerapi.TranslatedJob, error)
}

// Fanout executes the dependent operations available once the interview is
// complete. Each result lives in a single most-recent slot, replaced wholesale
// on success and untouched on failure. Requests are idempotent but never
// deduplicated: the backend generation is stochastic and a repeat call is a
// legitimate way to get an alternative output.
type Fanout struct {
	mu      sync.Mutex
	store   *Store
	api     FanoutAPI
	drafter ai.Drafter
	logger  *zap.Logger

	recommendations *careerapi.Recommendations
	analysis        *careerapi.AnalysisResult
	letter          *careerapi.CoverLetter
	translation     *careerapi.TranslatedJob

	// pending tracks one outstanding operation per job, keyed by job ID, to
	// avoid duplicate charges against the AI backend. Operations for different
	// jobs may run concurrently.
	pending map[string]string
}

func NewFanout(store *Store, api FanoutAPI, log *zap.Logger) *Fanout {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fanout{
		store:   store,
		api:     api,
		logger:  log,
		pending: make(map[string]string),
	}
}

// WithDrafter enables local cover-letter drafting through the provided drafter.
func (f *Fanout) WithDrafter(d ai.Drafter) *Fanout {
	f.drafter = d
	return f
}

// Recommendations returns the current recommendation set, or nil before the
// first fetch.
func (f *Fanout) Recommendations() *careerapi.Recommendations {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recommendations
}

// Analysis returns the most recent compatibility analysis, or nil.
func (f *Fanout) Analysis() *careerapi.AnalysisResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analysis
}

// Letter returns the most recent cover letter, or nil.
func (f *Fanout) Letter() *careerapi.CoverLetter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.letter
}

// Translation returns the most recent translated posting, or nil.
func (f *Fanout) Translation() *careerapi.TranslatedJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.translation
}

// Seed replaces the recommendation set with one the server delivered inline on
// the completing turn. Replacement is wholesale; stale recommendations never
// survive next to fresh ones.
func (f *Fanout) Seed(recs []*careerapi.Recommendation) {
	if len(recs) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recommendations = &careerapi.Recommendations{Items: recs}
}

// FetchRecommendations retrieves the ranked set from the server and replaces
// any prior set in its entirety. The client performs no re-ranking of its own.
func (f *Fanout) FetchRecommendations(ctx context.Context, maxResults int) (*careerapi.Recommendations, error) {
	profile, err := f.requireComplete("recommendations")
	if err != nil {
		return nil, err
	}

	recs, err := f.api.Recommendations(ctx, profile.RawProfile, maxResults)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.recommendations = recs

	f.logger.Info("recommendations replaced", zap.Int("count", recs.Len()))

	return recs, nil
}

// AnalyzeCompatibility requests a detailed analysis for one recommendation and
// overwrites the analysis slot on success.
func (f *Fanout) AnalyzeCompatibility(ctx context.Context, rec *careerapi.Recommendation) (*careerapi.AnalysisResult, error) {
	if _, err := f.requireComplete("compatibility analysis"); err != nil {
		return nil, err
	}
	jobID, err := f.begin("compatibility analysis", rec)
	if err != nil {
		return nil, err
	}
	defer f.end(jobID)

	analysis, err := f.api.Compatibility(ctx, jobID)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.analysis = analysis

	f.logger.Info("compatibility analyzed",
		zap.String(logger.FieldJob, jobID),
		zap.Int("score", analysis.Score),
	)

	return analysis, nil
}

// GenerateCoverLetter asks the backend for a letter in the given style and
// overwrites the letter slot on success. Unknown styles are rejected before
// any network call.
func (f *Fanout) GenerateCoverLetter(ctx context.Context, rec *careerapi.Recommendation, style careerapi.LetterStyle) (*careerapi.CoverLetter, error) {
	if _, err := f.requireComplete("cover letter"); err != nil {
		return nil, err
	}
	if !careerapi.ValidStyle(style) {
		return nil, &PreconditionError{Op: "cover letter", Reason: fmt.Sprintf("unsupported style %q", style)}
	}
	jobID, err := f.begin("cover letter", rec)
	if err != nil {
		return nil, err
	}
	defer f.end(jobID)

	letter, err := f.api.CoverLetter(ctx, jobID, style)
	if err != nil {
		return nil, err
	}

	f.setLetter(jobID, letter)

	return letter, nil
}

// DraftCoverLetterLocally generates the letter through the configured local
// drafter instead of the backend, with the same precondition, style, and slot
// semantics as the remote path.
func (f *Fanout) DraftCoverLetterLocally(ctx context.Context, rec *careerapi.Recommendation, style careerapi.LetterStyle) (*careerapi.CoverLetter, error) {
	profile, err := f.requireComplete("local cover letter")
	if err != nil {
		return nil, err
	}
	if f.drafter == nil {
		return nil, &PreconditionError{Op: "local cover letter", Reason: "no local drafter is configured"}
	}
	if !careerapi.ValidStyle(style) {
		return nil, &PreconditionError{Op: "local cover letter", Reason: fmt.Sprintf("unsupported style %q", style)}
	}
	jobID, err := f.begin("local cover letter", rec)
	if err != nil {
		return nil, err
	}
	defer f.end(jobID)

	letter, err := f.drafter.DraftCoverLetter(ctx, rec.Job, profile.RawProfile, style)
	if err != nil {
		return nil, err
	}

	f.setLetter(jobID, letter)

	return letter, nil
}

// TranslatePosting renders one recommendation's posting into the target
// language and overwrites the translation slot on success. Unsupported
// languages are rejected before any network call.
func (f *Fanout) TranslatePosting(ctx context.Context, rec *careerapi.Recommendation, lang careerapi.TargetLanguage) (*careerapi.TranslatedJob, error) {
	if _, err := f.requireComplete("translation"); err != nil {
		return nil, err
	}
	if !careerapi.ValidLanguage(lang) {
		return nil, &PreconditionError{Op: "translation", Reason: fmt.Sprintf("unsupported target language %q", lang)}
	}
	jobID, err := f.begin("translation", rec)
	if err != nil {
		return nil, err
	}
	defer f.end(jobID)

	translated, err := f.api.Translate(ctx, jobID, lang)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.translation = translated

	f.logger.Info("posting translated",
		zap.String(logger.FieldJob, jobID),
		zap.String("language", translated.Language),
	)

	return translated, nil
}

// requireComplete gates every fan-out operation on a completed interview.
func (f *Fanout) requireComplete(op string) (*Profile, error) {
	profile := f.store.Profile()
	if profile == nil {
		return nil, &PreconditionError{Op: op, Reason: "session is not started"}
	}
	if !profile.Complete() {
		return nil, &PreconditionError{Op: op, Reason: "session is not complete yet"}
	}
	return profile, nil
}

// begin marks one operation pending for the recommendation's job, refusing a
// second concurrent one for the same job.
func (f *Fanout) begin(op string, rec *careerapi.Recommendation) (string, error) {
	if rec == nil || rec.Job == nil || rec.Job.ID == "" {
		return "", &PreconditionError{Op: op, Reason: "recommendation has no job reference"}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	jobID := rec.Job.ID
	if running, ok := f.pending[jobID]; ok {
		return "", &PreconditionError{
			Op:     op,
			Reason: fmt.Sprintf("%s is already running for job %s", running, jobID),
		}
	}
	f.pending[jobID] = op

	return jobID, nil
}

func (f *Fanout) end(jobID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, jobID)
}

func (f *Fanout) setLetter(jobID string, letter *careerapi.CoverLetter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.letter = letter

	f.logger.Info("cover letter generated", logger.StringFields(
		logger.StringField{Key: logger.FieldJob, Value: jobID},
		logger.StringField{Key: "style", Value: letter.Style},
	)...)
}

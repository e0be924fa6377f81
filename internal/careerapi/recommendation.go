package careerapi

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	recommendationsPath = "/recommendations"
	compatibilityPath   = "/compatibility"
	coverLetterPath     = "/cover-letter"
	translatePath       = "/translate"

	// Max recommendations the server will return per request.
	maxResultsLimit = 50
)

// JobPosting is the job attached to a recommendation.
type JobPosting struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Employer struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
		URL  string `json:"url,omitempty"`
	} `json:"employer,omitempty"`
	Area struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"area,omitempty"`
	Salary struct {
		From     int    `json:"from,omitempty"`
		To       int    `json:"to,omitempty"`
		Currency string `json:"currency,omitempty"`
	} `json:"salary,omitempty"`
	Schedule     string `json:"schedule,omitempty"`
	AlternateURL string `json:"alternate_url,omitempty"`
	Description  string `json:"description,omitempty"`
	PublishedAt  string `json:"published_at,omitempty"`
}

// Recommendation pairs a job posting with the server's compatibility verdict.
type Recommendation struct {
	Job                *JobPosting `json:"job,omitempty"`
	CompatibilityScore int         `json:"compatibility_score,omitempty"`
	MatchReasons       []string    `json:"match_reasons,omitempty"`
}

type Recommendations struct {
	Items []*Recommendation
}

func (r *Recommendations) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Items)
}

func (r *Recommendations) FindByJobID(id string) *Recommendation {
	if r == nil {
		return nil
	}
	for _, rec := range r.Items {
		if rec.Job != nil && rec.Job.ID == id {
			return rec
		}
	}
	return nil
}

// AnalysisResult is the server's detailed compatibility breakdown for one job.
type AnalysisResult struct {
	Score     int      `json:"score,omitempty"`
	Verdict   string   `json:"verdict,omitempty"`
	Strengths []string `json:"strengths,omitempty"`
	Gaps      []string `json:"gaps,omitempty"`
}

// CoverLetter is a generated letter for one job.
type CoverLetter struct {
	Style string `json:"style,omitempty"`
	Text  string `json:"text,omitempty"`
}

// TranslatedJob is a job posting rendered into a target language.
type TranslatedJob struct {
	Language    string `json:"language,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// LetterStyle is the fixed set of tones the letter generator accepts.
type LetterStyle string

const (
	StyleProfessional LetterStyle = "professional"
	StyleCreative     LetterStyle = "creative"
	StyleTechnical    LetterStyle = "technical"
	StyleFriendly     LetterStyle = "friendly"
)

// Styles lists the supported letter styles in display order.
func Styles() []LetterStyle {
	return []LetterStyle{StyleProfessional, StyleCreative, StyleTechnical, StyleFriendly}
}

// ValidStyle reports whether the style belongs to the supported set.
func ValidStyle(style LetterStyle) bool {
	switch style {
	case StyleProfessional, StyleCreative, StyleTechnical, StyleFriendly:
		return true
	default:
		return false
	}
}

// TargetLanguage is the fixed set of locales the translator supports.
type TargetLanguage string

const (
	LanguageEnglish TargetLanguage = "en"
	LanguageRussian TargetLanguage = "ru"
	LanguageGerman  TargetLanguage = "de"
	LanguageFrench  TargetLanguage = "fr"
	LanguageSpanish TargetLanguage = "es"
)

// Languages lists the supported target languages in display order.
func Languages() []TargetLanguage {
	return []TargetLanguage{LanguageEnglish, LanguageRussian, LanguageGerman, LanguageFrench, LanguageSpanish}
}

// ValidLanguage reports whether the language belongs to the supported set.
func ValidLanguage(lang TargetLanguage) bool {
	switch lang {
	case LanguageEnglish, LanguageRussian, LanguageGerman, LanguageFrench, LanguageSpanish:
		return true
	default:
		return false
	}
}

// Recommendations fetches the ranked set for the given profile. The profile
// payload is forwarded verbatim; the server does the ranking.
func (c *Client) Recommendations(ctx context.Context, profile json.RawMessage, maxResults int) (*Recommendations, error) {
	if maxResults <= 0 || maxResults > maxResultsLimit {
		maxResults = maxResultsLimit
	}

	payload := map[string]any{
		"max_results": maxResults,
	}
	if len(profile) > 0 {
		payload["profile"] = profile
	}

	var resp struct {
		Recommendations []*Recommendation `json:"recommendations,omitempty"`
	}
	if err := c.postJSON(ctx, recommendationsPath, payload, &resp); err != nil {
		return nil, err
	}

	return &Recommendations{Items: resp.Recommendations}, nil
}

// Compatibility requests a detailed analysis of one job against the profile.
func (c *Client) Compatibility(ctx context.Context, jobID string) (*AnalysisResult, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job reference is required")
	}

	payload := map[string]string{"job_reference": jobID}

	var resp struct {
		Analysis *AnalysisResult `json:"analysis,omitempty"`
	}
	if err := c.postJSON(ctx, compatibilityPath, payload, &resp); err != nil {
		return nil, err
	}

	if resp.Analysis == nil {
		return nil, &APIError{Kind: KindTransport, Message: "compatibility response is missing analysis"}
	}

	return resp.Analysis, nil
}

// CoverLetter asks the server to generate a letter for one job in the given style.
func (c *Client) CoverLetter(ctx context.Context, jobID string, style LetterStyle) (*CoverLetter, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job reference is required")
	}

	payload := map[string]string{
		"job_reference": jobID,
		"style":         string(style),
	}

	var resp struct {
		Letter *CoverLetter `json:"letter,omitempty"`
	}
	if err := c.postJSON(ctx, coverLetterPath, payload, &resp); err != nil {
		return nil, err
	}

	if resp.Letter == nil || resp.Letter.Text == "" {
		return nil, &APIError{Kind: KindTransport, Message: "cover letter response is missing letter text"}
	}

	if resp.Letter.Style == "" {
		resp.Letter.Style = string(style)
	}

	return resp.Letter, nil
}

// Translate renders one job posting into the target language.
func (c *Client) Translate(ctx context.Context, jobID string, lang TargetLanguage) (*TranslatedJob, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job reference is required")
	}

	payload := map[string]string{
		"job_reference":   jobID,
		"target_language": string(lang),
	}

	var resp struct {
		TranslatedJob *TranslatedJob `json:"translated_job,omitempty"`
	}
	if err := c.postJSON(ctx, translatePath, payload, &resp); err != nil {
		return nil, err
	}

	if resp.TranslatedJob == nil {
		return nil, &APIError{Kind: KindTransport, Message: "translate response is missing translated job"}
	}

	if resp.TranslatedJob.Language == "" {
		resp.TranslatedJob.Language = string(lang)
	}

	return resp.TranslatedJob, nil
}

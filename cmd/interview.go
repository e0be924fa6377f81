package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dkoval/careermate/internal/ai"
	"github.com/dkoval/careermate/internal/ai/gemini"
	"github.com/dkoval/careermate/internal/careerapi"
	"github.com/dkoval/careermate/internal/logger"
	"github.com/dkoval/careermate/internal/secrets"
	"github.com/dkoval/careermate/internal/session"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptShowRecommendations    = "Show recommendations"
	PromptRefreshRecommendations = "Refresh recommendations"
	PromptAnalyze                = "Analyze compatibility"
	PromptLetter                 = "Generate a cover letter"
	PromptLocalLetter            = "Draft a cover letter locally"
	PromptTranslate              = "Translate a posting"
	PromptExit                   = "Exit"
	PromptBack                   = "back"

	defaultLanguage           = "en"
	defaultMaxRecommendations = 10
)

var errExit = errors.New("exit requested")

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Run the conversational profile-building interview",
	Run: func(cmd *cobra.Command, _ []string) {
		interview(cmd)
	},
}

func init() {
	rootCmd.AddCommand(interviewCmd)

	interviewCmd.Flags().BoolP("restart", "r", false, "abandon any stored session and start a new one")
	interviewCmd.Flags().IntP("max-recommendations", "n", defaultMaxRecommendations, "how many recommendations to request")

	viper.BindPFlag("interview.max-recommendations", interviewCmd.Flags().Lookup("max-recommendations"))
}

// interview is the main command for the cli.
func interview(cmd *cobra.Command) {
	ctx := context.Background()

	log2, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		log2.Fatal("getting a config", zap.Error(err))
	}

	log2.Info("starting careermate", zap.String("version", resolveVersion()))

	if config == nil {
		log2.Fatal("config is required")
	}

	token, err := resolveToken(config)
	if err != nil {
		log2.Fatal(
			"loading careermate token",
			zap.Error(err),
			zap.String("hint", "set CAREERMATE_TOKEN_FILE environment variable or the 'token-file' key in the configuration file"),
		)
	}

	client := careerapi.New(log2, token)
	if config.API != nil && config.API.BaseURL != "" {
		client.APIURL = strings.TrimSuffix(config.API.BaseURL, "/")
	}
	if config.UserAgent != "" {
		client.UserAgent = config.UserAgent
	}

	store := session.NewStore(client, log2)
	fanout := session.NewFanout(store, client, log2)

	drafter, err := newDrafter(ctx, config.AI, log2)
	if err != nil {
		log2.Warn("local drafting disabled", zap.Error(err))
	}
	if drafter != nil {
		fanout = fanout.WithDrafter(drafter)
	}

	profile := resumeOrStart(ctx, cmd, store, config, log2)

	scanner := bufio.NewScanner(os.Stdin)
	for !profile.Complete() {
		fmt.Print("you> ")
		if !scanner.Scan() {
			log2.Info("exiting", zap.String("reason", "input closed"))
			return
		}

		outcome, err := store.Submit(ctx, scanner.Text())
		if err != nil && outcome == nil {
			if !handleSubmitError(log2, err) {
				return
			}
			continue
		}

		var regression *session.ProgressRegressionError
		if errors.As(err, &regression) {
			log2.Warn("server reported a progress regression",
				zap.Int("from", regression.From),
				zap.Int("to", regression.To),
			)
		}

		profile = outcome.Profile
		fanout.Seed(outcome.Recommendations)

		printAssistantReply(profile)
		printView(profile)
	}

	fmt.Println("\nYour profile is complete.")

	if err := followUps(ctx, fanout, drafter != nil); err != nil && !errors.Is(err, errExit) {
		log2.Fatal("exiting", zap.Error(err))
	}
}

// resumeOrStart loads the stored session, or starts a fresh one when there is
// none or the user asked for a restart.
func resumeOrStart(ctx context.Context, cmd *cobra.Command, store *session.Store, config *Config, log2 *zap.Logger) *session.Profile {
	restart := cmd.Flag("restart").Value.String() == "true"

	var profile *session.Profile
	var err error

	if !restart {
		profile, err = store.Load(ctx)
		if err != nil {
			log2.Fatal("loading the stored session", zap.Error(err))
		}
	}

	if profile != nil {
		fmt.Println("Resuming your interview where you left off:")
		printTranscript(profile)
		printView(profile)
		return profile
	}

	language := defaultLanguage
	if config.Interview != nil && config.Interview.Language != "" {
		language = config.Interview.Language
	}

	profile, err = store.Start(ctx, language)
	if err != nil {
		log2.Fatal("starting the interview session", zap.Error(err))
	}

	printAssistantReply(profile)
	printView(profile)

	return profile
}

// handleSubmitError reports a failed submission. Returns false when the loop
// should stop.
func handleSubmitError(log2 *zap.Logger, err error) bool {
	switch {
	case careerapi.IsAuth(err):
		log2.Error("authentication failed, please log in again", zap.Error(err))
		return false
	case careerapi.IsValidation(err):
		// The server explains what it refused; show it verbatim.
		log2.Warn("the server rejected the message", zap.Error(err))
	case session.IsPrecondition(err):
		log2.Warn("message not sent", zap.Error(err))
	default:
		log2.Warn("sending failed, your message is kept; try again", zap.Error(err))
	}
	return true
}

func printTranscript(profile *session.Profile) {
	for _, turn := range profile.Transcript {
		prefix := "you"
		if turn.Speaker == session.SpeakerAssistant {
			prefix = "careermate"
		}
		fmt.Printf("%s> %s\n", prefix, turn.Text)
	}
}

func printAssistantReply(profile *session.Profile) {
	if len(profile.Transcript) == 0 {
		return
	}
	last := profile.Transcript[len(profile.Transcript)-1]
	if last.Speaker == session.SpeakerAssistant {
		fmt.Printf("careermate> %s\n", last.Text)
	}
}

func printView(profile *session.Profile) {
	view := session.Project(profile)
	fmt.Printf("[%s — %d%%]\n", view.Label, int(view.ProgressRatio*100))
}

// followUps drives the post-completion menu until the user exits.
func followUps(ctx context.Context, fanout *session.Fanout, localDrafting bool) error {
	items := []string{
		PromptShowRecommendations,
		PromptRefreshRecommendations,
		PromptAnalyze,
		PromptLetter,
	}
	if localDrafting {
		items = append(items, PromptLocalLetter)
	}
	items = append(items, PromptTranslate, PromptExit)

	prompt := promptui.Select{
		Label: "What next?",
		Items: items,
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			return err
		}

		if err := handleFollowUp(ctx, fanout, action); err != nil {
			if errors.Is(err, errExit) {
				return err
			}
			fmt.Printf("error: %s\n", err)
		}
	}
}

func handleFollowUp(ctx context.Context, fanout *session.Fanout, action string) error {
	switch action {
	case PromptShowRecommendations:
		recs, err := ensureRecommendations(ctx, fanout)
		if err != nil {
			return err
		}
		showRecommendations(recs)
		return nil
	case PromptRefreshRecommendations:
		recs, err := fanout.FetchRecommendations(ctx, viper.GetInt("interview.max-recommendations"))
		if err != nil {
			return err
		}
		showRecommendations(recs)
		return nil
	case PromptAnalyze:
		return analyze(ctx, fanout)
	case PromptLetter:
		return coverLetter(ctx, fanout, false)
	case PromptLocalLetter:
		return coverLetter(ctx, fanout, true)
	case PromptTranslate:
		return translate(ctx, fanout)
	case PromptExit:
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func ensureRecommendations(ctx context.Context, fanout *session.Fanout) (*careerapi.Recommendations, error) {
	if recs := fanout.Recommendations(); recs.Len() > 0 {
		return recs, nil
	}
	return fanout.FetchRecommendations(ctx, viper.GetInt("interview.max-recommendations"))
}

func showRecommendations(recs *careerapi.Recommendations) {
	if recs.Len() == 0 {
		fmt.Println("No recommendations yet.")
		return
	}
	for i, rec := range recs.Items {
		job := rec.Job
		if job == nil {
			continue
		}
		fmt.Printf("%d. %s / %s — %d%% match\n", i+1, job.Name, job.Employer.Name, rec.CompatibilityScore)
		for _, reason := range rec.MatchReasons {
			fmt.Printf("   - %s\n", reason)
		}
	}
}

func pickRecommendation(ctx context.Context, fanout *session.Fanout) (*careerapi.Recommendation, error) {
	recs, err := ensureRecommendations(ctx, fanout)
	if err != nil {
		return nil, err
	}
	if recs.Len() == 0 {
		return nil, fmt.Errorf("no recommendations to choose from")
	}

	items := make([]string, 0, recs.Len())
	for _, rec := range recs.Items {
		if rec.Job == nil {
			continue
		}
		items = append(items, fmt.Sprintf("%s %s / %s", rec.Job.ID, rec.Job.Name, rec.Job.Employer.Name))
	}

	prompt := promptui.Select{
		Label: "Choose a job and press ENTER",
		Items: append(items, PromptBack),
	}

	_, selected, err := prompt.Run()
	if err != nil {
		return nil, err
	}
	if selected == PromptBack {
		return nil, nil
	}

	jobID := strings.Split(selected, " ")[0]
	rec := recs.FindByJobID(jobID)
	if rec == nil {
		return nil, fmt.Errorf("there is no such job id %s", jobID)
	}

	return rec, nil
}

func analyze(ctx context.Context, fanout *session.Fanout) error {
	rec, err := pickRecommendation(ctx, fanout)
	if err != nil || rec == nil {
		return err
	}

	analysis, err := fanout.AnalyzeCompatibility(ctx, rec)
	if err != nil {
		return err
	}

	fmt.Printf("Score: %d%%\nVerdict: %s\n", analysis.Score, analysis.Verdict)
	for _, s := range analysis.Strengths {
		fmt.Printf("  + %s\n", s)
	}
	for _, g := range analysis.Gaps {
		fmt.Printf("  - %s\n", g)
	}
	return nil
}

func coverLetter(ctx context.Context, fanout *session.Fanout, local bool) error {
	rec, err := pickRecommendation(ctx, fanout)
	if err != nil || rec == nil {
		return err
	}

	styles := careerapi.Styles()
	items := make([]string, 0, len(styles))
	for _, style := range styles {
		items = append(items, string(style))
	}

	stylePrompt := promptui.Select{
		Label: "Pick a style",
		Items: items,
	}
	_, picked, err := stylePrompt.Run()
	if err != nil {
		return err
	}

	var letter *careerapi.CoverLetter
	if local {
		letter, err = fanout.DraftCoverLetterLocally(ctx, rec, careerapi.LetterStyle(picked))
	} else {
		letter, err = fanout.GenerateCoverLetter(ctx, rec, careerapi.LetterStyle(picked))
	}
	if err != nil {
		return err
	}

	fmt.Printf("\n%s\n", letter.Text)
	return nil
}

func translate(ctx context.Context, fanout *session.Fanout) error {
	rec, err := pickRecommendation(ctx, fanout)
	if err != nil || rec == nil {
		return err
	}

	languages := careerapi.Languages()
	items := make([]string, 0, len(languages))
	for _, lang := range languages {
		items = append(items, string(lang))
	}

	langPrompt := promptui.Select{
		Label: "Pick a language",
		Items: items,
	}
	_, picked, err := langPrompt.Run()
	if err != nil {
		return err
	}

	translated, err := fanout.TranslatePosting(ctx, rec, careerapi.TargetLanguage(picked))
	if err != nil {
		return err
	}

	fmt.Printf("\n%s\n\n%s\n", translated.Name, translated.Description)
	return nil
}

func resolveToken(config *Config) (string, error) {
	if config == nil {
		return "", errors.New("config is required")
	}

	tokenFile := strings.TrimSpace(config.TokenFile)
	if tokenFile == "" {
		tokenFile = strings.TrimSpace(viper.GetString("token-file"))
	}

	if tokenFile == "" {
		return "", errors.New("careermate token file is not configured")
	}

	return secrets.Load(secrets.Source{
		Name: "careermate token",
		File: tokenFile,
	})
}

// newDrafter builds the optional local cover-letter drafter. A disabled or
// missing AI section is not an error; the remote path still works.
func newDrafter(ctx context.Context, cfg *AIConfig, log2 *zap.Logger) (ai.Drafter, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		return nil, fmt.Errorf("gemini configuration is required when local drafting is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.WithCommonFields(log2, "gemini", cfg.Gemini.Model)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewWriter(generator, genLogger, cfg.Gemini.MaxLogLength), nil
}

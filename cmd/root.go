package cmd

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "careermate"
)

type Config struct {
	API       *APIConfig       `mapstructure:"api"`
	Interview *InterviewConfig `mapstructure:"interview"`
	AI        *AIConfig        `mapstructure:"ai"`
	UserAgent string           `mapstructure:"user-agent"`
	TokenFile string           `mapstructure:"token-file"`
}

type APIConfig struct {
	BaseURL string `mapstructure:"base-url" validate:"omitempty,url"`
}

type InterviewConfig struct {
	// Language is the two-letter preference passed on session start.
	Language           string `mapstructure:"language" validate:"omitempty,alpha,len=2"`
	MaxRecommendations int    `mapstructure:"max-recommendations" validate:"omitempty,min=1,max=50"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider" validate:"omitempty,oneof=gemini"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "careermate is a cli for building a job-seeker profile through an AI interview and acting on the matches",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("token-file", "CAREERMATE_TOKEN_FILE"); err != nil {
		log.Fatalf("binding CAREERMATE_TOKEN_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is careermate.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Local development secrets may live in .env; missing file is fine.
	_ = godotenv.Load()

	// Config needed only for the interview command now. If there is no config,
	// we can skip initialization.
	if interviewCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, err
	}

	if config != nil {
		validate := validator.New(validator.WithRequiredStructEnabled())
		if err := validate.Struct(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

package cmd

import (
	"errors"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "resume-ranker"
)

type Config struct {
	Embedder *EmbedderConfig   `mapstructure:"embedder"`
	Keywords *KeywordsConfig   `mapstructure:"keywords"`
	Ranking  *RankingConfig    `mapstructure:"ranking"`
	Roles    map[string]string `mapstructure:"roles"`
}

type EmbedderConfig struct {
	Provider  string        `mapstructure:"provider"`
	Dimension int           `mapstructure:"dimension"`
	MaxTokens int           `mapstructure:"max-tokens"`
	Serialize bool          `mapstructure:"serialize"`
	CacheFile string        `mapstructure:"cache-file"`
	Gemini    *GeminiConfig `mapstructure:"gemini"`
	OpenAI    *OpenAIConfig `mapstructure:"openai"`
}

type KeywordsConfig struct {
	Provider string        `mapstructure:"provider"`
	Count    int           `mapstructure:"count"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type RankingConfig struct {
	Workers int `mapstructure:"workers"`
	Top     int `mapstructure:"top"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseURL    string `mapstructure:"base-url"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-ranker ranks resumes against a job description by semantic similarity",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"embedder.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"keywords.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"embedder.openai.api-key-file": "OPENAI_API_KEY_FILE",
		"embedder.openai.base-url":     "OPENAI_BASE_URL",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults(viper.GetViper())

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-ranker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("embedder.provider", "lexical")
	v.SetDefault("keywords.provider", "semantic")
	v.SetDefault("keywords.count", 8)
	v.SetDefault("ranking.workers", 4)
	v.SetDefault("ranking.top", 10)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional unless given explicitly, but a broken one is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		config = &Config{}
	}
	if config.Embedder == nil {
		config.Embedder = &EmbedderConfig{}
	}
	if config.Keywords == nil {
		config.Keywords = &KeywordsConfig{}
	}
	if config.Ranking == nil {
		config.Ranking = &RankingConfig{}
	}
	return config, nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-ranker/internal/document"
	"github.com/spigell/resume-ranker/internal/logger"
	"github.com/spigell/resume-ranker/internal/ranking"
	"github.com/spigell/resume-ranker/internal/tui"
)

var rankCmd = &cobra.Command{
	Use:   "rank [flags] <resume files or directories>...",
	Short: "Rank resumes against a job description",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rank(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().String("job", "", "job description text")
	rankCmd.Flags().String("job-file", "", "file with the job description")
	rankCmd.Flags().StringP("role", "r", "", "job role template name (see the roles command)")
	rankCmd.Flags().IntP("top", "n", 10, "number of ranked resumes to show (0 shows all)")
	rankCmd.Flags().IntP("keywords", "k", 8, "number of job keywords to check")
	rankCmd.Flags().IntP("workers", "w", 4, "resumes processed in parallel")
	rankCmd.Flags().StringP("output", "o", OutputTable, "output format: table, json or yaml")
	rankCmd.Flags().BoolP("interactive", "i", false, "browse the results in an interactive viewer")
	rankCmd.Flags().String("embedder", "", "embedding provider: lexical, gemini or openai")
	rankCmd.Flags().String("keyword-provider", "", "keyword provider: semantic, frequency or gemini")

	viper.BindPFlag("role", rankCmd.Flags().Lookup("role"))
	viper.BindPFlag("ranking.top", rankCmd.Flags().Lookup("top"))
	viper.BindPFlag("ranking.workers", rankCmd.Flags().Lookup("workers"))
	viper.BindPFlag("keywords.count", rankCmd.Flags().Lookup("keywords"))
	viper.BindPFlag("embedder.provider", rankCmd.Flags().Lookup("embedder"))
	viper.BindPFlag("keywords.provider", rankCmd.Flags().Lookup("keyword-provider"))
}

// rank is the main command for the cli.
func rank(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the resume-ranker", zap.String("version", version))
	logger.Debug("ranking settings",
		zap.String("embedder", config.Embedder.Provider),
		zap.String("keywords", config.Keywords.Provider),
		zap.Int("keyword_count", config.Keywords.Count),
		zap.Int("workers", config.Ranking.Workers),
	)

	output, _ := cmd.Flags().GetString("output")
	output = strings.ToLower(strings.TrimSpace(output))
	if output != OutputTable && output != OutputJSON && output != OutputYAML {
		logger.Fatal("unsupported output format", zap.String("output", output))
	}

	var prompter jobPrompter = promptuiPrompter{}
	job, err := resolveJob(jobSourceFromFlags(cmd), roleTemplates(config), prompter)
	if err != nil {
		logger.Fatal("getting a job description", zap.Error(err))
	}

	if strings.TrimSpace(job) == "" {
		logger.Warn("exiting", zap.String("reason", "please provide a job description to continue"))
		return
	}

	docs, err := collectDocuments(args)
	if err != nil {
		logger.Fatal("collecting resumes", zap.Error(err))
	}

	logger.Info("collected resumes", zap.Int("count", len(docs)))

	models, closeModels, err := newModelContext(ctx, config, logger)
	if err != nil {
		logger.Fatal("initializing models", zap.Error(err))
	}
	defer func() {
		if err := closeModels(); err != nil {
			logger.Warn("closing embedding cache", zap.Error(err))
		}
	}()

	ranker := ranking.New(models,
		ranking.WithWorkers(config.Ranking.Workers),
		ranking.WithKeywordCount(config.Keywords.Count),
		ranking.WithLogger(logger),
	)

	result := rankAndRender(ctx, logger, ranker, job, docs, os.Stdout, output, config.Ranking.Top)

	interactive, _ := cmd.Flags().GetBool("interactive")
	if interactive && len(result.Ranked) > 0 {
		if err := tui.Run(topCandidates(result, config.Ranking.Top), result.Keywords); err != nil {
			logger.Error("interactive viewer", zap.Error(err))
		}
	}
}

// rankAndRender runs one ranking pass and writes its report. A pass that
// fails, such as a rejected API key on the target, ends the process.
func rankAndRender(ctx context.Context, log *zap.Logger, ranker *ranking.Ranker, job string, docs []document.Document, w io.Writer, output string, top int) *ranking.Result {
	result, err := ranker.Rank(ctx, job, docs)
	if err != nil {
		log.Fatal("ranking failed", zap.Error(err))
	}

	if err := render(w, result, output, top); err != nil {
		log.Fatal("writing report", zap.Error(err))
	}
	return result
}

func render(w io.Writer, result *ranking.Result, output string, top int) error {
	if output == OutputTable {
		writeTable(w, result, top)
		return nil
	}
	return writeStructured(w, buildReport(result, top), output)
}

// collectDocuments expands directories into their supported files. Files
// named explicitly are kept whatever their extension so that unsupported
// ones are reported.
func collectDocuments(paths []string) ([]document.Document, error) {
	var docs []document.Document
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			return nil, err
		}

		if !info.IsDir() {
			docs = append(docs, document.FromPath(path))
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", path, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || document.FormatOf(entry.Name()) == document.FormatUnsupported {
				continue
			}
			docs = append(docs, document.FromPath(filepath.Join(path, entry.Name())))
		}
	}
	return docs, nil
}

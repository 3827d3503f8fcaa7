package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spigell/resume-ranker/internal/document"
)

// Actual version can be specified in build command.
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and supported inputs",
	Run: func(cmd *cobra.Command, _ []string) {
		printVersion(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "%s version: %s\n", app, version)
	fmt.Fprintf(w, "formats: %s\n", strings.Join(document.SupportedExtensions(), ", "))
	fmt.Fprintf(w, "embedders: %s\n", strings.Join([]string{providerLexical, providerGemini, providerOpenAI}, ", "))
	fmt.Fprintf(w, "keyword providers: %s\n", strings.Join([]string{providerSemantic, providerFrequency, providerGemini}, ", "))
}

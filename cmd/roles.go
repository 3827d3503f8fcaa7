package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const roleCustom = "Custom"

var builtinRoles = map[string]string{
	"Data Scientist": `Responsibilities:
- Build predictive models using Python
- Analyze large datasets
- Communicate results to stakeholders
Requirements:
- Experience with machine learning and data analysis
- Strong Python skills
- Knowledge of SQL and data visualization tools`,
	"Software Engineer": `Responsibilities:
- Develop scalable applications
- Write clean, maintainable code
- Collaborate in agile teams
Requirements:
- Proficiency in Python, Java, or C++
- Experience with databases
- Familiarity with cloud platforms`,
}

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the job description templates",
	Run: func(_ *cobra.Command, _ []string) {
		config, err := getConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "getting a config: %v\n", err)
			os.Exit(1)
		}
		printRoles(os.Stdout, roleTemplates(config))
	},
}

func init() {
	rootCmd.AddCommand(rolesCmd)
}

// roleTemplates merges configured roles over the built-in ones.
func roleTemplates(config *Config) map[string]string {
	templates := make(map[string]string, len(builtinRoles))
	for name, text := range builtinRoles {
		templates[name] = text
	}
	if config == nil {
		return templates
	}
	for name, text := range config.Roles {
		name = strings.TrimSpace(name)
		if name == "" || strings.EqualFold(name, roleCustom) {
			continue
		}
		templates[name] = text
	}
	return templates
}

func roleNames(templates map[string]string) []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// findRole looks a template up by case-insensitive name.
func findRole(templates map[string]string, role string) (string, error) {
	role = strings.TrimSpace(role)
	for name, text := range templates {
		if strings.EqualFold(name, role) {
			return text, nil
		}
	}
	return "", fmt.Errorf("unknown role %q (available: %s)", role, strings.Join(roleNames(templates), ", "))
}

func printRoles(w io.Writer, templates map[string]string) {
	for _, name := range roleNames(templates) {
		fmt.Fprintf(w, "%s\n%s\n\n", headerStyle.Render(name), indent(templates[name], "  "))
	}
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

// jobPrompter asks the user for a job description interactively.
type jobPrompter interface {
	SelectRole(names []string) (string, error)
	AskJob() (string, error)
}

type promptuiPrompter struct{}

func (promptuiPrompter) SelectRole(names []string) (string, error) {
	prompt := promptui.Select{
		Label: "Choose a job role template or paste your own",
		Items: names,
	}
	_, choice, err := prompt.Run()
	return choice, err
}

func (promptuiPrompter) AskJob() (string, error) {
	prompt := promptui.Prompt{
		Label: "Paste the job description",
	}
	return prompt.Run()
}

type jobSource struct {
	Job     string
	JobFile string
	Role    string
}

// resolveJob picks the job description from, in order: a file, inline text,
// a named role, or an interactive prompt.
func resolveJob(src jobSource, templates map[string]string, prompter jobPrompter) (string, error) {
	if path := strings.TrimSpace(src.JobFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading job description: %w", err)
		}
		return string(data), nil
	}

	if src.Job != "" {
		return src.Job, nil
	}

	if src.Role != "" && !strings.EqualFold(src.Role, roleCustom) {
		return findRole(templates, src.Role)
	}

	if prompter == nil {
		return "", errors.New("no job description given (use --job, --job-file or --role)")
	}

	choice := roleCustom
	if src.Role == "" {
		var err error
		choice, err = prompter.SelectRole(append(roleNames(templates), roleCustom))
		if err != nil {
			return "", err
		}
	}

	if choice == roleCustom {
		return prompter.AskJob()
	}
	return findRole(templates, choice)
}

func jobSourceFromFlags(cmd *cobra.Command) jobSource {
	job, _ := cmd.Flags().GetString("job")
	jobFile, _ := cmd.Flags().GetString("job-file")
	return jobSource{
		Job:     job,
		JobFile: jobFile,
		Role:    viper.GetString("role"),
	}
}

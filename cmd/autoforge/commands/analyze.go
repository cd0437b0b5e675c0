package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reschivon/autoforge/internal/config"
	"github.com/reschivon/autoforge/pkg/cfg"
	"github.com/reschivon/autoforge/pkg/forge"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Show reaching definitions and dependencies per statement",
	Long: `Runs reaching definitions analysis over every function in a Python file
and prints, for each statement, the definitions it generates and kills, the
definitions reaching it, the names it reads and the lines it depends on.

Definitions are written as name@line; parameters and captured names use the
line of the function definition.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := analyzeFile(cmd, args[0])
		if err != nil {
			return err
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			data, err := json.MarshalIndent(a, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		printAnalysis(cmd.OutOrStdout(), a)
		return nil
	},
}

// analyzeFile runs forge.Analyze over filePath using the loaded config and
// the --shuffled flag.
func analyzeFile(cmd *cobra.Command, filePath string) (*forge.Analysis, error) {
	conf, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	src, err := readPythonFile(filePath)
	if err != nil {
		return nil, err
	}

	shuffled, _ := cmd.Flags().GetBool("shuffled")
	a, err := forge.Analyze(src, analysisOptions(conf), shuffled)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", filePath, err)
	}
	return a, nil
}

func analysisOptions(conf *config.Config) forge.Options {
	return forge.Options{
		Seed:     conf.Seed,
		MaxDepth: conf.MaxDepth,
		Only:     conf.Only,
		Logger:   conf.Logger(),
	}
}

func printAnalysis(w io.Writer, a *forge.Analysis) {
	for i, g := range a.Graphs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "=== %s (line %d) ===\n", g.FunctionName, g.Line)
		fmt.Fprintf(w, "Captures: %s\n", strings.Join(g.Captures, ", "))
		for _, c := range g.Chunks {
			fmt.Fprintf(w, "Chunk %d (%s)\n", c.Order, c.Kind)
			for _, s := range c.Statements {
				printStatement(w, s)
			}
		}
	}
	printSkippedFunctions(w, a.Skipped)
}

func printStatement(w io.Writer, s cfg.StatementInfo) {
	fmt.Fprintf(w, "  %4d  %s\n", s.Line, s.Text)
	printSet(w, "gen", s.Gens)
	printSet(w, "kill", s.Kills)
	printSet(w, "in", s.Ins)
	printSet(w, "out", s.Outs)
	printSet(w, "uses", s.Uses)
	if len(s.Deps) > 0 {
		lines := make([]string, len(s.Deps))
		for i, l := range s.Deps {
			lines[i] = fmt.Sprint(l)
		}
		printSet(w, "deps", lines)
	}
}

func printSet(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "        %-5s %s\n", label+":", strings.Join(items, " "))
}

func printSkippedFunctions(w io.Writer, skipped []forge.FunctionResult) {
	if len(skipped) == 0 {
		return
	}
	fmt.Fprintf(w, "\nSkipped (%d):\n", len(skipped))
	for _, s := range skipped {
		fmt.Fprintf(w, "  %s (line %d): %s\n", s.Name, s.Line, s.Reason)
	}
}

func init() {
	analyzeCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	analyzeCmd.Flags().Bool("shuffled", false, "Shuffle each function before printing")
	analyzeCmd.Flags().Uint64("seed", 0, "Shuffle seed for --shuffled (default from config)")
	analyzeCmd.Flags().Int("max-depth", 0, "Maximum statement nesting (default from config)")
}

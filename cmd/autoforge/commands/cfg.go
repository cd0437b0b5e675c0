package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/reschivon/autoforge/pkg/cfg"
	"github.com/reschivon/autoforge/pkg/forge"
)

// cfgCmd represents the cfg command
var cfgCmd = &cobra.Command{
	Use:   "cfg <file>",
	Short: "Show the chunk graphs of every function",
	Long: `Builds the chunk graph of every function and lambda in a Python file.
Outputs the chunks with their statements and edges, JSON with --json or
Graphviz DOT with --dot. With --shuffled the graphs are shown after the
statement shuffle.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := analyzeFile(cmd, args[0])
		if err != nil {
			return err
		}

		dot, _ := cmd.Flags().GetBool("dot")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		switch {
		case dot:
			return cfg.WriteDOT(cmd.OutOrStdout(), a.Analyzed())
		case jsonOutput:
			data, err := json.MarshalIndent(a, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
		default:
			printGraphs(cmd.OutOrStdout(), a)
		}
		return nil
	},
}

// printGraphs prints graph information in human-readable format.
func printGraphs(w io.Writer, a *forge.Analysis) {
	for i, g := range a.Graphs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "=== CFG for function: %s (line %d) ===\n", g.FunctionName, g.Line)
		fmt.Fprintf(w, "Cyclomatic Complexity: %d\n", g.CyclomaticComplexity)
		fmt.Fprintf(w, "Entry Chunk: %d\n", g.Entry)
		fmt.Fprintf(w, "\nChunks (%d):\n", len(g.Chunks))
		for _, c := range g.Chunks {
			if c.StartLine > 0 {
				fmt.Fprintf(w, "  %d (%s, lines %d-%d)\n", c.Order, c.Kind, c.StartLine, c.EndLine)
			} else {
				fmt.Fprintf(w, "  %d (%s, empty)\n", c.Order, c.Kind)
			}
			for _, s := range c.Statements {
				fmt.Fprintf(w, "    %s\n", s.Text)
			}
		}
		fmt.Fprintf(w, "\nEdges (%d):\n", len(g.Edges))
		for _, e := range g.Edges {
			fmt.Fprintf(w, "  %d -> %d (%s)\n", e.Source, e.Target, e.EdgeType)
		}
	}
	printSkippedFunctions(w, a.Skipped)
}

func init() {
	cfgCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	cfgCmd.Flags().Bool("dot", false, "Output Graphviz DOT")
	cfgCmd.Flags().Bool("shuffled", false, "Shuffle each function before printing")
	cfgCmd.Flags().Uint64("seed", 0, "Shuffle seed for --shuffled (default from config)")
	cfgCmd.Flags().Int("max-depth", 0, "Maximum statement nesting (default from config)")
}

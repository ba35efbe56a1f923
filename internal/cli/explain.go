package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/madetocreate/ai-shield/internal/taxonomy"
)

var explainStandard string

var explainCmd = &cobra.Command{
	Use:   "explain [violation-type]",
	Short: "Describe violation types and their compliance mappings",
	Long: `List every violation type the engine reports, describe one, or show how
the catalog covers a compliance standard.

  aishield explain
  aishield explain manifest_drift
  aishield explain --standard owasp-llm-2025`,
	Args: cobra.MaximumNArgs(1),
	RunE: explainCommand,
}

func init() {
	explainCmd.Flags().StringVar(&explainStandard, "standard", "", "Show coverage of a compliance standard")
	rootCmd.AddCommand(explainCmd)
}

func explainCommand(cmd *cobra.Command, args []string) error {
	cat, err := taxonomy.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if explainStandard != "" {
		idx, err := cat.BuildComplianceIndex(explainStandard)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s (%s)\n", idx.Standard.Name, idx.Standard.Version)
		fmt.Fprintln(out, strings.Repeat("─", 60))
		for _, item := range idx.Standard.Items {
			types := idx.Mappings[item.ID]
			icon := "\xe2\x9c\x85"
			if len(types) == 0 {
				icon = "⬚ "
			}
			fmt.Fprintf(out, "  %s %-6s %-34s %s\n", icon, item.ID, item.Name, strings.Join(types, ", "))
		}
		return nil
	}

	if len(args) == 1 {
		e, ok := cat.Lookup(args[0])
		if !ok {
			return fmt.Errorf("unknown violation type %q", args[0])
		}
		return printJSON(out, e)
	}

	for _, c := range cat.Categories {
		entries := cat.ByCategory(c.ID)
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s\n", c.Name)
		for _, e := range entries {
			fmt.Fprintf(out, "  %-26s %-8s %s\n", e.Type, e.RiskLevel, e.Name)
		}
		fmt.Fprintln(out)
	}
	return nil
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/madetocreate/ai-shield/internal/config"
	"github.com/madetocreate/ai-shield/internal/policy"
)

var presetsCmd = &cobra.Command{
	Use:   "presets [name]",
	Short: "List policy presets or show one",
	Long: `List the built-in presets plus any enabled packs, or print one preset as
JSON.

  aishield presets
  aishield presets public_website`,
	Args: cobra.MaximumNArgs(1),
	RunE: presetsCommand,
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}

// loadPresets returns the built-in presets merged with the configured packs.
func loadPresets(cfg *config.Config) (*policy.Engine, []policy.PackInfo, error) {
	base, err := policy.NewEngine()
	if err != nil {
		return nil, nil, err
	}
	dir, err := packsPath(cfg)
	if err != nil {
		return nil, nil, err
	}
	return policy.LoadPacks(dir, base)
}

func presetsCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	presets, _, err := loadPresets(cfg)
	if err != nil {
		return fmt.Errorf("failed to load presets: %w", err)
	}

	if len(args) == 1 {
		p, err := presets.Resolve(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), p)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Policy Presets:")
	fmt.Fprintln(out, strings.Repeat("─", 60))
	for _, name := range presets.Names() {
		p, err := presets.Resolve(name)
		if err != nil {
			return err
		}
		marker := "  "
		if name == cfg.Preset {
			marker = "* "
		}
		fmt.Fprintf(out, "%s%-20s threshold %.2f  daily $%s\n", marker, p.Name, p.InjectionThreshold(), p.DailyBudget().StringFixed(2))
		if p.Description != "" {
			fmt.Fprintf(out, "    %s\n", p.Description)
		}
	}
	fmt.Fprintln(out, strings.Repeat("─", 60))
	return nil
}

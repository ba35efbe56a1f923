package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/madetocreate/ai-shield/internal/mcp"
)

var pinCmd = &cobra.Command{
	Use:   "pin <server> <tool>...",
	Short: "Trust the current tool set of an MCP server",
	Long: `Record a hash of a server's tool names in the pins file. Later scans that
reference the server report manifest_drift when its tool set changes.

  aishield pin crm create_ticket search_kb`,
	Args: cobra.MinimumNArgs(2),
	RunE: pinCommand,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <server> <tool>...",
	Short: "Compare a live tool list against the server's pin",
	Long: `Compare tool names against the pinned set. Exit status is 2 on drift.

  aishield verify crm create_ticket search_kb evil_backdoor`,
	Args: cobra.MinimumNArgs(2),
	RunE: verifyCommand,
}

func init() {
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(verifyCmd)
}

func pinCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := pinsPath(cfg)
	if err != nil {
		return err
	}
	existing, err := mcp.LoadPins(path)
	if err != nil {
		return err
	}

	store := mcp.NewPinStore(existing...)
	pin := mcp.PinManifest(args[0], args[1:])
	store.Pin(pin)
	if err := mcp.SavePins(path, store.All()); err != nil {
		return fmt.Errorf("failed to save pins: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), pin)
}

func verifyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := pinsPath(cfg)
	if err != nil {
		return err
	}
	pins, err := mcp.LoadPins(path)
	if err != nil {
		return err
	}

	pin, ok := mcp.NewPinStore(pins...).Get(args[0])
	if !ok {
		return fmt.Errorf("server %q has no pin in %s", args[0], path)
	}
	check := mcp.VerifyManifest(pin, args[1:])
	if err := printJSON(cmd.OutOrStdout(), check); err != nil {
		return err
	}
	if !check.Valid {
		return &ExitError{Code: 2}
	}
	return nil
}

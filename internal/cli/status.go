package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/madetocreate/ai-shield/internal/config"
	"github.com/madetocreate/ai-shield/internal/mcp"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show AI Shield status: config, preset, scanners, pins, audit log",
	Long: `Show which configuration is in effect, which scanners run, how many
servers are pinned and where the audit log is written.

  aishield status`,
	RunE: statusCommand,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out, "  AI Shield Status")
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out)

	binPath, err := os.Executable()
	if err != nil {
		binPath = "unknown"
	}
	fmt.Fprintf(out, "  Binary:    %s (%s)\n", binPath, Version)
	checkFile(out, "Config", configFilePath())
	fmt.Fprintln(out)

	fmt.Fprintln(out, "─── Engine ────────────────────────────────────────────")
	fmt.Fprintf(out, "  Preset:    %s\n", cfg.Preset)
	fmt.Fprintf(out, "  Scanners:  %s\n", enabledScanners(cfg))
	fmt.Fprintf(out, "  Cache:     %s\n", onOff(cfg.Cache.Enabled, fmt.Sprintf("%d entries, ttl %s", cfg.Cache.MaxSize, cfg.Cache.TTL)))
	fmt.Fprintf(out, "  Early exit: %s\n", onOff(cfg.Chain.EarlyExit, ""))
	fmt.Fprintf(out, "  Budgets:   %d configured\n", len(cfg.Cost.Budgets))
	fmt.Fprintln(out)

	fmt.Fprintln(out, "─── Presets & Packs ───────────────────────────────────")
	presets, infos, err := loadPresets(cfg)
	if err != nil {
		fmt.Fprintf(out, "  \xe2\x9d\x8c Packs failed to load: %v\n", err)
	} else {
		enabled := 0
		for _, info := range infos {
			if info.Enabled {
				enabled++
			}
		}
		fmt.Fprintf(out, "  \xe2\x9c\x85 %d presets, %d packs installed, %d enabled\n", len(presets.Names()), len(infos), enabled)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "─── Tool Manifests ────────────────────────────────────")
	if path, err := pinsPath(cfg); err == nil {
		pins, err := mcp.LoadPins(path)
		switch {
		case err != nil:
			fmt.Fprintf(out, "  \xe2\x9d\x8c %s: %v\n", path, err)
		case len(pins) == 0:
			fmt.Fprintf(out, "  ⬚  No servers pinned (%s)\n", path)
		default:
			for _, p := range pins {
				fmt.Fprintf(out, "  \xe2\x9c\x85 %-20s %d tools  %s\n", p.ServerID, p.ToolCount, p.ToolsHash[:12])
			}
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "─── Audit Log ─────────────────────────────────────────")
	if !cfg.Audit.Enabled {
		fmt.Fprintln(out, "  ⬚  Auditing disabled")
	} else {
		if path, err := auditPath(cfg); err == nil {
			checkAuditLog(out, path)
		}
		if cfg.Audit.PostgresDSN != "" {
			fmt.Fprintln(out, "  \xe2\x9c\x85 Postgres store configured")
		}
	}
	fmt.Fprintln(out)
	return nil
}

func configFilePath() string {
	if configPath != "" {
		return configPath
	}
	dir, err := config.DefaultDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, config.DefaultConfigFile)
}

func enabledScanners(cfg *config.Config) string {
	var names []string
	if cfg.Scanners.Injection {
		names = append(names, "injection")
	}
	if cfg.Scanners.PII {
		names = append(names, "pii")
	}
	if cfg.Scanners.Tools {
		names = append(names, "tools")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, " → ")
}

func onOff(on bool, detail string) string {
	if !on {
		return "off"
	}
	if detail == "" {
		return "on"
	}
	return "on (" + detail + ")"
}

func checkFile(w io.Writer, name, path string) {
	if path == "" {
		fmt.Fprintf(w, "  %-10s built-in defaults\n", name+":")
		return
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "  %-10s %s\n", name+":", path)
	} else {
		fmt.Fprintf(w, "  %-10s built-in defaults (no %s)\n", name+":", path)
	}
}

func checkAuditLog(w io.Writer, path string) {
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(w, "  ⬚  %s (not yet created, starts on first record)\n", path)
		return
	}

	sizeKB := info.Size() / 1024
	if sizeKB == 0 {
		fmt.Fprintf(w, "  \xe2\x9c\x85 %s (<1 KB)\n", path)
	} else {
		fmt.Fprintf(w, "  \xe2\x9c\x85 %s (%d KB)\n", path, sizeKB)
	}
}

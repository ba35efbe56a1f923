package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/madetocreate/ai-shield/internal/shield"
)

const watchDebounce = 300 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Re-scan a prompt file every time it is saved",
	Long: `Scan a prompt file, then scan it again each time it changes. Useful while
writing system prompts or test fixtures. Stop with Ctrl-C.

  aishield watch prompts/support.txt --preset public_website`,
	Args: cobra.ExactArgs(1),
	RunE: watchCommand,
}

func init() {
	watchCmd.Flags().StringVar(&scanAgent, "agent", "", "Calling agent id")
	rootCmd.AddCommand(watchCmd)
}

func watchCommand(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, cfg, err := openEngine(ctx, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch init failed: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}

	rescan := func() { watchScan(ctx, cmd, engine, path) }
	rescan()

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, rescan)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		}
	}
}

func watchScan(ctx context.Context, cmd *cobra.Command, engine *shield.Engine, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "read %s: %v\n", path, err)
		return
	}
	sc, err := buildScanContext()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return
	}
	res := engine.Scan(ctx, string(data), sc)
	fmt.Fprintf(cmd.OutOrStdout(), "── %s  %s ──\n", time.Now().Format("15:04:05"), filepath.Base(path))
	_ = printJSON(cmd.OutOrStdout(), res)
}

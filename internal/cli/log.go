package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/madetocreate/ai-shield/internal/audit"
	"github.com/madetocreate/ai-shield/internal/scanner"
)

var (
	logFilterDecision string
	logFilterType     string
	logLast           int
	logSummary        bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter the audit log",
	Long: `View the JSONL audit log with filtering and summary options.

Examples:
  aishield log                        # Show all entries
  aishield log --last 20              # Show last 20 entries
  aishield log --decision block       # Show only blocked requests
  aishield log --type cost            # Show only cost records
  aishield log --summary              # Show summary stats`,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().StringVar(&logFilterDecision, "decision", "", "Filter by decision (allow, warn, block)")
	logCmd.Flags().StringVar(&logFilterType, "type", "", "Filter by request type (scan, budget, cost)")
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N entries")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := auditPath(cfg)
	if err != nil {
		return err
	}

	records, err := audit.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No audit log entries found.")
		return nil
	}

	filtered := filterRecords(records, logFilterDecision, logFilterType)
	if logLast > 0 && logLast < len(filtered) {
		filtered = filtered[len(filtered)-logLast:]
	}

	if logSummary {
		printSummary(out, records)
		return nil
	}
	printRecords(out, filtered)
	return nil
}

func filterRecords(records []audit.Record, decision, requestType string) []audit.Record {
	if decision == "" && requestType == "" {
		return records
	}
	var filtered []audit.Record
	for _, r := range records {
		if decision != "" && !strings.EqualFold(string(r.SecurityDecision), decision) {
			continue
		}
		if requestType != "" && !strings.EqualFold(r.RequestType, requestType) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func printRecords(w io.Writer, records []audit.Record) {
	for _, r := range records {
		fmt.Fprintf(w, "%s %s %-6s %s\n", decisionIcon(r.SecurityDecision), formatTimestamp(r.Timestamp), r.RequestType, r.ID)
		if r.SecurityReason != "" {
			fmt.Fprintf(w, "     Reason: %s\n", r.SecurityReason)
		}
		if r.AgentID != "" {
			fmt.Fprintf(w, "     Agent: %s\n", r.AgentID)
		}
		if r.Model != "" {
			fmt.Fprintf(w, "     Model: %s\n", r.Model)
		}
		if r.CostUSD != nil {
			fmt.Fprintf(w, "     Cost: $%s\n", r.CostUSD.StringFixed(6))
		}
		fmt.Fprintln(w)
	}
}

func printSummary(w io.Writer, records []audit.Record) {
	decisions := map[scanner.Decision]int{}
	types := map[string]int{}
	reasons := map[string]int{}
	for _, r := range records {
		decisions[r.SecurityDecision]++
		types[r.RequestType]++
		for _, reason := range strings.Split(r.SecurityReason, ",") {
			if reason != "" {
				reasons[reason]++
			}
		}
	}

	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintln(w, "  AI Shield Audit Summary")
	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintf(w, "  Total records:   %d\n", len(records))
	fmt.Fprintf(w, "  allow:           %d\n", decisions[scanner.DecisionAllow])
	fmt.Fprintf(w, "  warn:            %d\n", decisions[scanner.DecisionWarn])
	fmt.Fprintf(w, "  block:           %d\n", decisions[scanner.DecisionBlock])
	fmt.Fprintf(w, "  scan/budget/cost: %d/%d/%d\n", types[audit.RequestScan], types[audit.RequestBudget], types[audit.RequestCost])
	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintf(w, "  First record:    %s\n", formatTimestamp(records[0].Timestamp))
	fmt.Fprintf(w, "  Last record:     %s\n", formatTimestamp(records[len(records)-1].Timestamp))

	if len(reasons) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Violations:")
		for _, reason := range slices.Sorted(maps.Keys(reasons)) {
			fmt.Fprintf(w, "    %-28s %d\n", reason, reasons[reason])
		}
	}
	fmt.Fprintln(w)
}

func decisionIcon(d scanner.Decision) string {
	switch d {
	case scanner.DecisionBlock:
		return "\xf0\x9f\x9b\x91" // stop sign
	case scanner.DecisionWarn:
		return "\xf0\x9f\x94\x8d" // magnifying glass
	case scanner.DecisionAllow:
		return "\xe2\x9c\x85" // check mark
	default:
		return "\xe2\x9d\x93" // question mark
	}
}

func formatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

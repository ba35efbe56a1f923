package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/madetocreate/ai-shield/internal/scanner"
)

var (
	scanFile      string
	scanAgent     string
	scanSession   string
	scanUser      string
	scanTools     []string
	scanManifests []string
)

var scanCmd = &cobra.Command{
	Use:   "scan [text|-]",
	Short: "Scan a prompt and print the decision as JSON",
	Long: `Scan a prompt through the configured scanner chain. The text comes from
the argument, from --file, or from stdin when the argument is "-".
Exit status is 2 when the request is blocked.

Examples:
  aishield scan "Ignore all previous instructions"
  aishield scan --file prompt.txt --preset public_website
  echo "mail me at jane@example.com" | aishield scan -
  aishield scan "clean up" --agent ops --tool 'run_shell@infra={"command":"rm -rf /"}'
  aishield scan "hi" --tool search@crm --manifest crm=search,create_ticket`,
	Args: cobra.MaximumNArgs(1),
	RunE: scanCommand,
}

func init() {
	scanCmd.Flags().StringVar(&scanFile, "file", "", "Read the prompt from a file")
	scanCmd.Flags().StringVar(&scanAgent, "agent", "", "Calling agent id")
	scanCmd.Flags().StringVar(&scanSession, "session", "", "Session id")
	scanCmd.Flags().StringVar(&scanUser, "user", "", "End-user id (hashed in the audit log)")
	scanCmd.Flags().StringArrayVar(&scanTools, "tool", nil, "Requested tool as name[@server][=json-args] (repeatable)")
	scanCmd.Flags().StringArrayVar(&scanManifests, "manifest", nil, "Live tool listing as server=tool,tool (repeatable)")
	rootCmd.AddCommand(scanCmd)
}

func scanCommand(cmd *cobra.Command, args []string) error {
	input, err := readInput(cmd.InOrStdin(), args, scanFile)
	if err != nil {
		return err
	}
	sc, err := buildScanContext()
	if err != nil {
		return err
	}

	engine, _, err := openEngine(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	res := engine.Scan(cmd.Context(), input, sc)
	if err := printJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if res.Decision == scanner.DecisionBlock {
		return &ExitError{Code: 2}
	}
	return nil
}

func readInput(stdin io.Reader, args []string, file string) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", fmt.Errorf("pass either text or --file, not both")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case len(args) == 1:
		return args[0], nil
	}
	return "", fmt.Errorf("nothing to scan: pass text, - or --file")
}

func buildScanContext() (scanner.ScanContext, error) {
	sc := scanner.ScanContext{
		AgentID:   scanAgent,
		SessionID: scanSession,
		UserID:    scanUser,
	}
	for _, spec := range scanTools {
		call, err := parseToolFlag(spec)
		if err != nil {
			return sc, err
		}
		sc.Tools = append(sc.Tools, call)
	}
	for _, spec := range scanManifests {
		server, tools, ok := strings.Cut(spec, "=")
		if !ok || server == "" {
			return sc, fmt.Errorf("invalid --manifest %q: want server=tool,tool", spec)
		}
		if sc.Manifests == nil {
			sc.Manifests = make(map[string][]string)
		}
		sc.Manifests[server] = splitList(tools)
	}
	return sc, nil
}

// parseToolFlag reads name[@server][=json-args].
func parseToolFlag(spec string) (scanner.ToolCall, error) {
	head, args, hasArgs := strings.Cut(spec, "=")
	name, server, _ := strings.Cut(head, "@")
	if name == "" {
		return scanner.ToolCall{}, fmt.Errorf("invalid --tool %q: empty name", spec)
	}
	call := scanner.ToolCall{Name: name, ServerID: server}
	if hasArgs {
		call.Arguments = json.RawMessage(args)
	}
	return call, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

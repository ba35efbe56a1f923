package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/tidwall/pretty"
	"golang.org/x/term"
)

// printJSON writes v indented, and colored when w is a terminal.
func printJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	out := pretty.Pretty(data)
	if isTerminal(w) {
		out = pretty.Color(out, nil)
	}
	_, err = w.Write(out)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

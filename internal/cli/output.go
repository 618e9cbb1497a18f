package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// write prints v as indented JSON, or through text for the text format.
func (a *app) write(w io.Writer, v any, text func(io.Writer)) error {
	switch format := a.v.GetString("output"); format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputText, "":
		text(w)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

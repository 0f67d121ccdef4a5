package app

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"kestrel/internal/domain"
)

// renderText prints one result in a human-readable block.
func renderText(w io.Writer, result domain.ScanResult) {
	fmt.Fprintf(w, "%s  [%s]\n", result.Target.Value, result.Target.Kind)
	fmt.Fprintf(w, "  score  %3d/100  %s\n", result.Score, result.Status)
	for _, reason := range result.Reasons {
		fmt.Fprintf(w, "  %+4d  %s\n", reason.Delta, reason.Message)
	}
	fmt.Fprintln(w)
}

// renderJSON prints one result as a single JSON document per line.
func renderJSON(w io.Writer, result domain.ScanResult) {
	encoder := json.NewEncoder(w)
	if err := encoder.Encode(result); err != nil {
		log.Error("Encoding scan result failed", "error", err)
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"registrar/internal/registration/runner"
)

func writeSummary(w io.Writer, format string, s runner.Summary) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := []struct {
		label string
		n     int
	}{
		{"processed", s.Processed},
		{"succeeded", s.Succeeded},
		{"retried", s.Retried},
		{"invalid enrollment", s.InvalidEnrollment},
		{"parsing failed", s.ParsingFailed},
		{"privacy rejected", s.PrivacyRejected},
		{"redirects queued", s.RedirectsQueued},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%d\n", row.label, row.n)
	}
	return tw.Flush()
}

// Package cli provides output formatting for the kusuri command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/hyperjump/kusuri/internal/models"
	"github.com/hyperjump/kusuri/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one line per result.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat parses a --format value. Empty input yields OutputText.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case "":
		return OutputText, nil
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: text, compact, json)", s)
	}
}

// WriteRecommendations writes resp to w in the given format.
func WriteRecommendations(w io.Writer, resp *models.RecommendationResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		return writeCompact(w, resp)
	default:
		return writeText(w, resp)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeText(w io.Writer, resp *models.RecommendationResponse) error {
	fmt.Fprintf(w, "\nRecommendations for %q: %d results in %dms (satisfaction: %s)\n\n",
		resp.Query, resp.Count, resp.QueryTime, resp.Projection)
	if resp.Count == 0 {
		_, err := fmt.Fprintln(w, "No similar medicines available.")
		return err
	}
	for i, r := range resp.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. %s\n", i+1, r.Name)
		fmt.Fprintf(w, "   Manufacturer: %s\n", r.Manufacturer)
		fmt.Fprintf(w, "   Satisfaction: %s\n", formatSatisfaction(r.SatisfactionScore, resp.Projection))
		if r.Composition != "" {
			fmt.Fprintf(w, "   Composition:  %s\n", utils.Truncate(r.Composition, 120))
		}
		if r.Uses != "" {
			fmt.Fprintf(w, "   Uses:         %s\n", utils.Truncate(r.Uses, 120))
		}
		if r.SideEffects != "" {
			fmt.Fprintf(w, "   Side effects: %s\n", utils.Truncate(r.SideEffects, 120))
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

func writeCompact(w io.Writer, resp *models.RecommendationResponse) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, r := range resp.Results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, r.Name, r.Manufacturer,
			formatSatisfaction(r.SatisfactionScore, resp.Projection))
	}
	return tw.Flush()
}

// formatSatisfaction shows normalized values as a percentage and raw values as stored.
func formatSatisfaction(v float64, projection string) string {
	if projection == string(models.ProjectionRaw) {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.0f%%", v*100)
}

// WriteStatus writes a status report to w.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	version := st.SnapshotVersion
	if version == "" {
		version = "(none loaded)"
	}
	fmt.Fprintf(w, "Records:          %d\n", st.Records)
	fmt.Fprintf(w, "Snapshot:         %s\n", version)
	if !st.LoadedAt.IsZero() {
		fmt.Fprintf(w, "Loaded at:        %s\n", st.LoadedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "Suggestions:      %v\n", st.SuggestionsEnabled)
	fmt.Fprintf(w, "Watch:            %v\n", st.WatchEnabled)
	fmt.Fprintf(w, "Disk usage:       %s\n", FormatBytes(st.DiskUsageBytes))
	fmt.Fprintln(w, "\nData files:")
	for _, f := range st.Files {
		if !f.Exists {
			fmt.Fprintf(w, "  %s (missing)\n", f.Path)
			continue
		}
		fmt.Fprintf(w, "  %s (%s)\n", f.Path, FormatBytes(f.Bytes))
	}
	c := st.Config
	fmt.Fprintln(w, "\nScoring defaults:")
	fmt.Fprintf(w, "  top_n %d (max %d), over-fetch %d\n", c.DefaultResultSize, c.MaxResultSize, c.OverFetch)
	fmt.Fprintf(w, "  alpha %.2f, satisfaction %.2f, side effect %.2f, manufacturer %.2f\n",
		c.Alpha, c.SatisfactionWeight, c.SideEffectWeight, c.ManufacturerWeight)
	_, err := fmt.Fprintf(w, "  satisfaction projection: %s\n", c.SatisfactionProjection)
	return err
}

// FormatBytes renders n as a human-readable size.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/August26/proxyscout/internal/model"
)

// PrintResultsTable prints a human-readable table of per-proxy results.
func PrintResultsTable(w io.Writer, report model.ValidationReport) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)

	// header
	fmt.Fprintln(tw, "PROXY\tSTATUS\tLAT(ms)\tCOUNTRY\tERROR")

	for _, o := range report.Outcomes {
		proxy := o.Input
		if o.Candidate.Host != "" {
			proxy = o.Candidate.String()
		}

		lat := "-"
		if o.LatencyMs > 0 {
			lat = strconv.FormatInt(o.LatencyMs, 10)
		}

		errText := "-"
		if o.Kind != "" {
			errText = string(o.Kind)
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			proxy,
			o.Status,
			lat,
			dashIfEmpty(o.Country),
			errText,
		)
	}

	tw.Flush()
}

// PrintSummary prints the aggregated batch stats.
func PrintSummary(w io.Writer, stats model.BatchStats) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  Total proxies:            %d\n", stats.TotalProxies)
	fmt.Fprintf(w, "  Unique proxies:           %d\n", stats.UniqueProxies)
	fmt.Fprintf(w, "  Working proxies:          %d\n", stats.WorkingProxies)
	fmt.Fprintf(w, "  Failed proxies:           %d\n", stats.FailedProxies)

	kinds := make([]string, 0, len(stats.FailuresByKind))
	for k := range stats.FailuresByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "    %-22s %d\n", k+":", stats.FailuresByKind[model.ErrKind(k)])
	}

	fmt.Fprintf(w, "  Countries:                %d\n", stats.Countries)
	fmt.Fprintf(w, "  Success rate:             %.1f%%\n", stats.SuccessRatePct)
	fmt.Fprintf(w, "  Avg latency (working):    %.1f ms\n", stats.AvgLatencyMs)
	fmt.Fprintf(w, "  Batch time:               %.2f s\n", float64(stats.TotalProcessingTimeMs)/1000.0)
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// WriteFile writes all outcomes + summary stats to a file in json or csv format.
func WriteFile(path string, format string, report model.ValidationReport, stats model.BatchStats) error {
	if format != "json" && format != "csv" {
		return fmt.Errorf("unsupported format: %s", format)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if format == "csv" {
		return writeCSV(f, report)
	}
	return writeJSON(f, report, stats)
}

// writeJSON writes an object with "results" and "summary".
func writeJSON(w io.Writer, report model.ValidationReport, stats model.BatchStats) error {
	payload := struct {
		Protocol model.Protocol       `json:"protocol"`
		Results  []model.CheckOutcome `json:"results"`
		Summary  model.BatchStats     `json:"summary"`
	}{
		Protocol: report.Protocol,
		Results:  report.Outcomes,
		Summary:  stats,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// writeCSV writes one row per outcome (summary is not included in CSV).
func writeCSV(w io.Writer, report model.ValidationReport) error {
	cw := csv.NewWriter(w)

	header := []string{
		"input",
		"host",
		"port",
		"protocol",
		"status",
		"country",
		"latency_ms",
		"error_kind",
		"error",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, o := range report.Outcomes {
		port := ""
		if o.Candidate.Port > 0 {
			port = strconv.Itoa(o.Candidate.Port)
		}
		row := []string{
			o.Input,
			o.Candidate.Host,
			port,
			string(report.Protocol),
			string(o.Status),
			o.Country,
			strconv.FormatInt(o.LatencyMs, 10),
			string(o.Kind),
			o.Error,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

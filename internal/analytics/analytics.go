package analytics

import (
	"time"

	"github.com/August26/proxyscout/internal/model"
)

// Compute summarises a validation report.
func Compute(report model.ValidationReport, duration time.Duration) model.BatchStats {
	stats := model.BatchStats{
		TotalProxies:          len(report.Outcomes),
		FailuresByKind:        make(map[model.ErrKind]int),
		TotalProcessingTimeMs: duration.Milliseconds(),
	}

	unique := make(map[string]struct{})
	countries := make(map[string]struct{})

	var latencySum int64
	var latencyCount int64

	for _, o := range report.Outcomes {
		key := o.Input
		if o.Candidate.Host != "" {
			key = o.Candidate.String()
		}
		unique[key] = struct{}{}

		if !o.IsWorking() {
			stats.FailedProxies++
			stats.FailuresByKind[o.Kind]++
			continue
		}

		stats.WorkingProxies++
		countries[o.Country] = struct{}{}
		if o.LatencyMs > 0 {
			latencySum += o.LatencyMs
			latencyCount++
		}
	}

	stats.UniqueProxies = len(unique)
	stats.Countries = len(countries)

	if latencyCount > 0 {
		stats.AvgLatencyMs = float64(latencySum) / float64(latencyCount)
	}
	if stats.TotalProxies > 0 {
		stats.SuccessRatePct = float64(stats.WorkingProxies) / float64(stats.TotalProxies) * 100.0
	}
	return stats
}

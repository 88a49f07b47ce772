// Package reliability derives a client's reliability tier from their
// incident counters. The tier gates access to peak-demand slots.
package reliability

import "github.com/lfmoreira/agendo/services/scheduling-service/internal/model"

// Classify maps incident counters to a reliability level. It is a pure
// function of no_show_count + late_cancellation_count and must be re-run
// (and the stored level overwritten) every time either counter changes.
func Classify(noShowCount, lateCancellationCount int) model.ReliabilityLevel {
	totalIssues := noShowCount + lateCancellationCount
	switch {
	case totalIssues == 0:
		return model.ReliabilityExcellent
	case totalIssues <= 2:
		return model.ReliabilityGood
	case totalIssues <= 4:
		return model.ReliabilityModerate
	default:
		return model.ReliabilityLow
	}
}

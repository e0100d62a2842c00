package usecase

import "ChartPulse/internal/domain/models"

// Fetch classifications as recorded in telemetry.
const (
	ClassificationFull        = "full"
	ClassificationIncremental = "incremental"
	ClassificationNoBars      = "no_bars"
)

// MergeResult is the outcome of folding one fetch into a session's series.
type MergeResult struct {
	Bars           []models.Bar
	Classification string
	NoOp           bool
}

// MergeFetch reconciles a fetch result with a session's existing bars.
// A fetch is full when the session has no prior successful fetch,
// incremental otherwise; on conflicting timestamps the fetched bar wins so
// providers can correct a partially-closed bar. An empty fetched slice is a
// no-op merge, not an error.
func MergeFetch(existing, fetched []models.Bar, hadPriorFetch bool, maxBars int) MergeResult {
	if len(fetched) == 0 {
		return MergeResult{
			Bars:           existing,
			Classification: ClassificationNoBars,
			NoOp:           true,
		}
	}

	classification := ClassificationFull
	if hadPriorFetch {
		classification = ClassificationIncremental
	}

	return MergeResult{
		Bars:           models.MergeSeries(existing, fetched, maxBars),
		Classification: classification,
	}
}

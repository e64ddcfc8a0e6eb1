package adaptive

import (
	"fmt"
	"time"

	"dca-backtest-lab/internal/domain"
)

// WhipsawThreshold is the number of regime changes inside the window that
// is tolerated before a warning.
const WhipsawThreshold = 3

// WhipsawWarning flags frequent regime flipping. It is informational only.
type WhipsawWarning struct {
	Date       time.Time `json:"date"`
	Changes    int       `json:"changes"`
	WindowDays int       `json:"windowDays"`
	Message    string    `json:"message"`
}

// DetectWhipsaw counts regime changes dated within (asOf - windowDays, asOf]
// and warns when there are more than WhipsawThreshold.
func DetectWhipsaw(history []domain.AdaptationEvent, asOf time.Time, windowDays int) (WhipsawWarning, bool) {
	if windowDays <= 0 {
		return WhipsawWarning{}, false
	}
	from := asOf.AddDate(0, 0, -windowDays)

	count := 0
	for _, e := range history {
		if e.RegimeChange && e.Date.After(from) && !e.Date.After(asOf) {
			count++
		}
	}
	if count <= WhipsawThreshold {
		return WhipsawWarning{}, false
	}
	return WhipsawWarning{
		Date:       asOf,
		Changes:    count,
		WindowDays: windowDays,
		Message:    fmt.Sprintf("%d regime changes in %d days", count, windowDays),
	}, true
}

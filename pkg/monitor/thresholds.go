package monitor

import (
	"fmt"
	"math"

	"github.com/ogulcanaydogan/dwlr-guardian/pkg/model"
)

// Thresholds bound the normal water level range in metres.
type Thresholds struct {
	Low  float64 `json:"low_threshold"`
	High float64 `json:"high_threshold"`
}

// DefaultThresholds returns the stock 2.0 m / 10.0 m range.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 2.0, High: 10.0}
}

// Validate rejects non-finite bounds and ranges where low is not strictly
// below high.
func (t Thresholds) Validate() error {
	if !isFinite(t.Low) || !isFinite(t.High) {
		return fmt.Errorf("thresholds must be finite, got low %v high %v", t.Low, t.High)
	}
	if !(t.Low < t.High) {
		return fmt.Errorf("low threshold %.2f must be below high threshold %.2f", t.Low, t.High)
	}
	return nil
}

// Evaluate classifies level. Values equal to either bound are NORMAL.
func (t Thresholds) Evaluate(level float64) model.AlertState {
	switch {
	case level < t.Low:
		return model.StateLow
	case level > t.High:
		return model.StateHigh
	default:
		return model.StateNormal
	}
}

// FormatMessage renders the operator-facing text for state.
func FormatMessage(stationID string, state model.AlertState, level float64) string {
	switch state {
	case model.StateLow:
		return fmt.Sprintf("⚠️ ALERT: Water level critically LOW (%.2f m) at station %s", level, stationID)
	case model.StateHigh:
		return fmt.Sprintf("⚠️ ALERT: Water level unusually HIGH (%.2f m) at station %s", level, stationID)
	default:
		return fmt.Sprintf("✅ Water level is Normal (%.2f m) at station %s", level, stationID)
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

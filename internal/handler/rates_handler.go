package handler

import (
	"net/http"

	"github.com/peandrade/cifracash/internal/port"

	"go.uber.org/zap"
)

const (
	defaultRateWindowDays = 30
	maxRateWindowDays     = 3650
)

// ratesHandler serves the benchmark daily-rate series for the last N
// calendar days. Responses carry a synthetic flag when the upstream source
// was unavailable and an estimated series was served instead.
func ratesHandler(provider port.RateProvider, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/rates")
		defer span.End()

		days := queryInt(r, "days", defaultRateWindowDays)
		if days < 1 || days > maxRateWindowDays {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 3650")
			return
		}

		series, synthetic := provider.Fetch(ctx, days)
		writeJSON(w, http.StatusOK, map[string]any{
			"days":      days,
			"synthetic": synthetic,
			"rates":     series,
		})
	}
}

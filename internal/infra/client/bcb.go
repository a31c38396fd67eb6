// Package client provides HTTP clients for external data sources.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/peandrade/cifracash/internal/domain"
	"github.com/peandrade/cifracash/internal/infra/resilience"
	"github.com/peandrade/cifracash/internal/rates"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// sgsDateLayout is the date format of the Banco Central SGS API.
const sgsDateLayout = "02/01/2006"

// BCBClient fetches a daily benchmark-rate series from the Banco Central
// do Brasil SGS API (series 12 is the CDI daily rate).
type BCBClient struct {
	httpClient *http.Client
	baseURL    string
	seriesCode int
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
}

// NewBCBClient creates a new BCBClient.
func NewBCBClient(httpClient *http.Client, baseURL string, seriesCode int, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *BCBClient {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &BCBClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		seriesCode: seriesCode,
		cb:         cb,
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(maxConcurrency),
	}
}

// sgsEntry is one row of the SGS JSON payload. Values arrive as strings.
type sgsEntry struct {
	Date  string `json:"data"`
	Value string `json:"valor"`
}

// FetchRange fetches the series entries in [start, end] with retry, circuit
// breaker, and tracing. Entries are returned in ascending date order.
func (c *BCBClient) FetchRange(ctx context.Context, start, end time.Time) (rates.Series, error) {
	ctx, span := tracer.Start(ctx, "BCBClient.FetchRange")
	defer span.End()
	span.SetAttributes(
		attribute.String("rates.start", start.Format("2006-01-02")),
		attribute.String("rates.end", end.Format("2006-01-02")),
	)

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.bulkhead.Release()

	var series rates.Series

	result, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/dados/serie/bcdata.sgs.%d/dados?formato=json&dataInicial=%s&dataFinal=%s",
				c.baseURL, c.seriesCode, start.Format(sgsDateLayout), end.Format(sgsDateLayout))
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("rate source returned status %d", resp.StatusCode)
			}

			var entries []sgsEntry
			if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
				return fmt.Errorf("failed to decode rate series: %w", err)
			}

			series = make(rates.Series, 0, len(entries))
			for _, e := range entries {
				date, err := time.Parse(sgsDateLayout, e.Date)
				if err != nil {
					return fmt.Errorf("malformed series date %q: %w", e.Date, err)
				}
				rate, err := strconv.ParseFloat(e.Value, 64)
				if err != nil {
					return fmt.Errorf("malformed series value %q: %w", e.Value, err)
				}
				series = append(series, rates.Entry{Date: date, Rate: rate})
			}
			sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return series, nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "bcb-sgs", Err: err}
	}

	return result.(rates.Series), nil
}

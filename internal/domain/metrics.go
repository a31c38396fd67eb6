package domain

// EngineMetrics is the snapshot returned by GET /v1/metrics/engine.
type EngineMetrics struct {
	TotalRequests      int64   `json:"total_requests"`
	ErrorRate          float64 `json:"error_rate"`
	CacheHitRate       float64 `json:"cache_hit_rate"`
	PurchasesCreated   int64   `json:"purchases_created"`
	OperationsCreated  int64   `json:"operations_created"`
	YieldComputations  int64   `json:"yield_computations"`
	SyntheticFallbacks int64   `json:"synthetic_rate_fallbacks"`
	Period             string  `json:"period"`
}

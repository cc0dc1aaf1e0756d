package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz and GET /readyz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Detail      string `json:"detail,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// PipelineMetrics is returned by GET /v1/metrics/pipeline.
type PipelineMetrics struct {
	Fetches           int64            `json:"fetches"`
	FetchErrors       int64            `json:"fetchErrors"`
	ErrorRate         float64          `json:"errorRate"`
	AvgFetchLatencyMs float64          `json:"avgFetchLatencyMs"`
	CacheHitRate      float64          `json:"cacheHitRate"`
	DedupedRequests   int64            `json:"dedupedRequests"`
	SupersededDropped int64            `json:"supersededDropped"`
	MalformedRecords  int64            `json:"malformedRecords"`
	Transitions       map[string]int64 `json:"transitions"`
	Period            string           `json:"period"`
}

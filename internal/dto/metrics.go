package dto

import "time"

// SystemMetrics is a JSON snapshot of the service counters.
type SystemMetrics struct {
	CacheHitRatio             float64   `json:"cacheHitRatio"`
	CacheHits                 uint64    `json:"cacheHits"`
	CacheMisses               uint64    `json:"cacheMisses"`
	RequestsTotal             uint64    `json:"requestsTotal"`
	AverageRequestDurationMs  float64   `json:"averageRequestDurationMs"`
	UpstreamCalls             uint64    `json:"upstreamCalls"`
	UpstreamFailures          uint64    `json:"upstreamFailures"`
	AverageUpstreamDurationMs float64   `json:"averageUpstreamDurationMs"`
	RefreshesCompleted        uint64    `json:"refreshesCompleted"`
	RefreshesFailed           uint64    `json:"refreshesFailed"`
	Goroutines                int       `json:"goroutines"`
	GeneratedAt               time.Time `json:"generatedAt"`
}

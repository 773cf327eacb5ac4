package client

import (
	"context"
	"time"
)

// HealthState classifies platform connectivity.
type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthDegraded HealthState = "degraded"
	HealthSlow     HealthState = "slow"
	HealthError    HealthState = "error"
)

// Latency bands for the health classification.
const (
	healthyLatency  = 5 * time.Second
	degradedLatency = 10 * time.Second
)

// Health is the result of one connectivity probe.
type Health struct {
	State   HealthState
	Latency time.Duration
	Error   string
}

// HealthCheck probes the platform with one lightweight promo-codes fetch
// and classifies the round-trip latency.
func (c *Client) HealthCheck(ctx context.Context) Health {
	start := time.Now()
	res, err := c.Call(ctx, PathPromoCodes, nil, "GET", false)
	if err != nil {
		return Health{State: HealthError, Latency: time.Since(start), Error: err.Error()}
	}

	h := Health{Latency: res.Elapsed}
	switch {
	case res.Elapsed < healthyLatency:
		h.State = HealthHealthy
	case res.Elapsed <= degradedLatency:
		h.State = HealthDegraded
	default:
		h.State = HealthSlow
	}
	return h
}

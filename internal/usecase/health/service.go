// Package health aggregates readiness of the store backend and the
// embedding provider into one status report.
package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds each dependency probe.
const checkTimeout = 5 * time.Second

// Status reports the health of one dependency.
type Status struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Report is the aggregate health state.
type Report struct {
	Healthy  bool   `json:"healthy"`
	Store    Status `json:"store"`
	Provider Status `json:"provider"`
}

// Service probes dependencies.
type Service struct {
	store    StorePinger
	provider ProviderChecker
}

// New creates a health service.
func New(store StorePinger, provider ProviderChecker) *Service {
	return &Service{store: store, provider: provider}
}

// Check probes both dependencies concurrently and never returns an error:
// failures land in the report.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var report Report
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		report.Store = probe(gctx, s.store.Ping)
		return nil
	})
	g.Go(func() error {
		report.Provider = probe(gctx, s.provider.HealthCheck)
		return nil
	})
	_ = g.Wait()

	report.Healthy = report.Store.Healthy && report.Provider.Healthy
	return report
}

func probe(ctx context.Context, fn func(context.Context) error) Status {
	if err := fn(ctx); err != nil {
		return Status{Healthy: false, Error: err.Error()}
	}
	return Status{Healthy: true}
}

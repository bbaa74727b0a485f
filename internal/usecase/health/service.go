// Package health aggregates component health checks.
package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing check.
	CheckError CheckResult = "error"
)

// Report aggregates check results plus the indexed record count.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	Records int
}

// Service coordinates health checks for the retrieval stack.
type Service struct {
	embedding EmbeddingChecker
	index     IndexStats
}

// New creates a Service. embedding can be nil when no provider is configured.
func New(embedding EmbeddingChecker, index IndexStats) *Service {
	return &Service{embedding: embedding, index: index}
}

// Check probes the embedding provider and reports the index size. An empty
// catalog is healthy; only provider failure degrades the status.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	report := Report{Status: Healthy, Checks: checks}
	if s.index != nil {
		report.Records = s.index.Len()
	}
	for _, v := range checks {
		if v == CheckError {
			report.Status = Degraded
			break
		}
	}
	return report
}

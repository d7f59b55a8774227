package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/catalogsync/api/internal/domain"
	"github.com/catalogsync/api/internal/repositories"
)

// BuildInfo captures runtime metadata exposed via the service info endpoint.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemServiceDeps bundles collaborators required to construct a system service.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	// NonBlocking names dependencies the gateway can serve without, such as the request log
	// sink. Their failures are reported but do not affect the overall status.
	NonBlocking []string
	Clock       func() time.Time
}

type systemService struct {
	healthRepo  repositories.HealthRepository
	nonBlocking map[string]struct{}
	clock       func() time.Time
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the readiness service.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	nonBlocking := make(map[string]struct{}, len(deps.NonBlocking))
	for _, name := range deps.NonBlocking {
		if name = strings.TrimSpace(name); name != "" {
			nonBlocking[name] = struct{}{}
		}
	}

	return &systemService{
		healthRepo:  deps.HealthRepository,
		nonBlocking: nonBlocking,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// HealthReport collects dependency checks and derives the gateway status from the blocking ones.
func (s *systemService) HealthReport(ctx context.Context) (domain.SystemHealthReport, error) {
	if ctx == nil {
		return domain.SystemHealthReport{}, errors.New("system service: context is required")
	}

	report, err := s.healthRepo.Collect(ctx)
	if err != nil {
		return domain.SystemHealthReport{}, err
	}

	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = s.clock()
	} else {
		report.GeneratedAt = report.GeneratedAt.UTC()
	}
	if report.Checks == nil {
		report.Checks = map[string]domain.SystemHealthCheck{}
	}
	report.Status = s.status(report.Checks)
	return report, nil
}

func (s *systemService) status(checks map[string]domain.SystemHealthCheck) string {
	status := domain.HealthStatusOK
	for name, check := range checks {
		if _, skip := s.nonBlocking[name]; skip {
			continue
		}
		switch check.Status {
		case domain.HealthStatusOK, "":
		case domain.HealthStatusError:
			return domain.HealthStatusError
		default:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}

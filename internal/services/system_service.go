package services

import (
	"context"
	"errors"

	"github.com/greenmart/api/internal/repositories"
)

// SystemServiceDeps bundles constructor inputs for the system service.
type SystemServiceDeps struct {
	Health repositories.HealthRepository
}

type systemService struct {
	health repositories.HealthRepository
}

// NewSystemService builds the operational surface backing health endpoints.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.Health == nil {
		return nil, errors.New("system service: health repository is required")
	}
	return &systemService{health: deps.Health}, nil
}

func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	return s.health.Collect(ctx)
}

package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/repository"
)

// RateResolver freezes the hourly rate for work on a project
type RateResolver interface {
	// Resolve returns the fixed rate, or the first rate defined by the
	// project, its client, or the global default
	Resolve(ctx context.Context, projectID int64, rate domain.Rate) (decimal.Decimal, error)
}

type rateResolver struct {
	projectRepo repository.ProjectRepository
	clientRepo  repository.ClientRepository
}

// NewRateResolver creates a new rate resolver
func NewRateResolver(projectRepo repository.ProjectRepository, clientRepo repository.ClientRepository) RateResolver {
	return &rateResolver{
		projectRepo: projectRepo,
		clientRepo:  clientRepo,
	}
}

func (r *rateResolver) Resolve(ctx context.Context, projectID int64, rate domain.Rate) (decimal.Decimal, error) {
	if err := rate.Validate(); err != nil {
		return decimal.Zero, err
	}
	if v, ok := rate.Value(); ok {
		return v, nil
	}

	project, err := r.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load project for rate: %w", err)
	}
	client, err := r.clientRepo.GetByID(ctx, project.ClientID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load client for rate: %w", err)
	}

	return rate.Resolve(domain.ChainFor(project, client)), nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eso_go/internal/domain"
	"eso_go/internal/engine"
	"eso_go/internal/infra"

	"github.com/sourcegraph/conc/iter"
	"golang.org/x/sync/semaphore"
)

// ValuationService applies configured step limits around the engine, records
// metrics for every call, and serves the grant register.
//
// At most valuation.workers lattices are held in memory at once across all
// callers (HTTP, stream, batch); further calls wait for a slot.
type ValuationService struct {
	grants  domain.GrantRepository
	metrics *infra.Metrics
	logger  *slog.Logger
	slots   *semaphore.Weighted

	defaultSteps int
	maxSteps     int
	workers      int
}

// NewValuationService creates a ValuationService. grants may be nil when no
// register is needed (one-shot CLI valuations).
func NewValuationService(cfg *infra.Config, grants domain.GrantRepository, metrics *infra.Metrics, logger *slog.Logger) *ValuationService {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ValuationService{
		grants:       grants,
		metrics:      metrics,
		logger:       logger,
		slots:        semaphore.NewWeighted(int64(cfg.Valuation.Workers)),
		defaultSteps: cfg.Valuation.DefaultSteps,
		maxSteps:     cfg.Valuation.MaxSteps,
		workers:      cfg.Valuation.Workers,
	}
}

// ErrNoRegister is returned by grant operations when the service has no repository.
var ErrNoRegister = errors.New("grant register not configured")

// ErrGrantNotFound is returned when a grant id is unknown.
var ErrGrantNotFound = errors.New("grant not found")

// ============================================================
// Valuation
// ============================================================

// Value runs the permissive path. Step counts above the limit are clamped.
// The only error is ctx's, returned when it ends before a lattice slot frees up.
func (s *ValuationService) Value(ctx context.Context, in domain.Inputs) (domain.Valuation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Valuation{}, err
	}

	in.Steps = s.resolveSteps(in.Steps)
	if in.Steps > s.maxSteps {
		s.logger.Warn("Clamping step count", slog.Int("requested", in.Steps), slog.Int("max", s.maxSteps))
		in.Steps = s.maxSteps
	}

	if err := s.slots.Acquire(ctx, 1); err != nil {
		return domain.Valuation{}, err
	}
	defer s.slots.Release(1)

	start := time.Now()
	res := engine.BinomialValue(in)
	s.metrics.RecordValuation(string(res.Method), time.Since(start))
	return res, nil
}

// ValueStrict validates in before valuing it.
func (s *ValuationService) ValueStrict(ctx context.Context, in domain.Inputs) (domain.Valuation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Valuation{}, err
	}

	in.Steps = s.resolveSteps(in.Steps)
	if in.Steps > s.maxSteps {
		s.metrics.RecordValidationError("steps_limit")
		return domain.Valuation{}, fmt.Errorf("%w: %d > %d", domain.ErrStepsAboveLimit, in.Steps, s.maxSteps)
	}

	params, err := domain.NewOptionParameters(in)
	if err != nil {
		if pe, ok := domain.AsParameterError(err); ok {
			s.metrics.RecordValidationError(pe.Kind.String())
		}
		s.logger.Debug("Rejected valuation inputs", slog.Any("error", err))
		return domain.Valuation{}, err
	}

	if err := s.slots.Acquire(ctx, 1); err != nil {
		return domain.Valuation{}, err
	}
	defer s.slots.Release(1)

	start := time.Now()
	res := engine.Value(params)
	s.metrics.RecordValuation(string(res.Method), time.Since(start))
	return res, nil
}

// ValueGrant applies the grant's exercise policy and values it on the strict path.
// The identifying fields of the result are filled even on error.
func (s *ValuationService) ValueGrant(ctx context.Context, grant domain.OptionGrant) (domain.GrantValuation, error) {
	res := domain.GrantValuation{GrantID: grant.ID, Holder: grant.Holder}

	policy, err := grant.ExercisePolicy()
	if err != nil {
		s.metrics.RecordValidationError("policy")
		return res, err
	}
	res.Policy = policy

	in, err := grant.Inputs()
	if err != nil {
		return res, err
	}

	v, err := s.ValueStrict(ctx, in)
	if err != nil {
		return res, fmt.Errorf("grant %s: %w", grant.ID, err)
	}
	res.Valuation = v
	return res, nil
}

// ValueBatch values grants on a bounded pool. Results keep input order and
// carry per-grant errors. Once ctx is cancelled the remaining grants are
// marked with ctx.Err().
func (s *ValuationService) ValueBatch(ctx context.Context, grants []domain.OptionGrant) []domain.GrantValuation {
	start := time.Now()
	s.metrics.RecordBatch()

	mapper := iter.Mapper[domain.OptionGrant, domain.GrantValuation]{MaxGoroutines: s.workers}
	results := mapper.Map(grants, func(g *domain.OptionGrant) domain.GrantValuation {
		if err := ctx.Err(); err != nil {
			return domain.GrantValuation{GrantID: g.ID, Holder: g.Holder, Err: err}
		}
		res, err := s.ValueGrant(ctx, *g)
		res.Err = err
		return res
	})

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.logger.Info("Batch valued",
		slog.Int("grants", len(grants)),
		slog.Int("failed", failed),
		slog.Duration("elapsed", time.Since(start)),
	)
	return results
}

// resolveSteps substitutes the configured default for an unset step count.
func (s *ValuationService) resolveSteps(steps int) int {
	if steps == 0 {
		return s.defaultSteps
	}
	return steps
}

// ============================================================
// Grant register
// ============================================================

// SaveGrant validates the grant's policy and stores it.
func (s *ValuationService) SaveGrant(grant *domain.OptionGrant) error {
	if s.grants == nil {
		return ErrNoRegister
	}
	if grant.ID == "" {
		return errors.New("grant id is required")
	}
	if _, err := grant.ExercisePolicy(); err != nil {
		return err
	}
	return s.grants.UpsertGrant(grant)
}

// ImportGrants stores every grant, stopping at the first failure.
func (s *ValuationService) ImportGrants(grants []domain.OptionGrant) (int, error) {
	for i := range grants {
		if err := s.SaveGrant(&grants[i]); err != nil {
			return i, fmt.Errorf("grant %s: %w", grants[i].ID, err)
		}
	}
	s.logger.Info("Grants imported", slog.Int("count", len(grants)))
	return len(grants), nil
}

// Grant returns one grant or ErrGrantNotFound.
func (s *ValuationService) Grant(id string) (*domain.OptionGrant, error) {
	if s.grants == nil {
		return nil, ErrNoRegister
	}
	g, err := s.grants.GetGrant(id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGrantNotFound
	}
	return g, nil
}

// Grants returns the whole register ordered by id.
func (s *ValuationService) Grants() ([]domain.OptionGrant, error) {
	if s.grants == nil {
		return nil, ErrNoRegister
	}
	return s.grants.ListGrants()
}

// GrantsByHolder returns one holder's grants ordered by id.
func (s *ValuationService) GrantsByHolder(holder string) ([]domain.OptionGrant, error) {
	if s.grants == nil {
		return nil, ErrNoRegister
	}
	return s.grants.ListGrantsByHolder(holder)
}

// RemoveGrant deletes a grant. Unknown ids are not an error.
func (s *ValuationService) RemoveGrant(id string) error {
	if s.grants == nil {
		return ErrNoRegister
	}
	return s.grants.DeleteGrant(id)
}

// ValueStoredGrant loads a grant and values it.
func (s *ValuationService) ValueStoredGrant(ctx context.Context, id string) (domain.GrantValuation, error) {
	g, err := s.Grant(id)
	if err != nil {
		return domain.GrantValuation{GrantID: id}, err
	}
	return s.ValueGrant(ctx, *g)
}

// ValueRegister values every stored grant.
func (s *ValuationService) ValueRegister(ctx context.Context) ([]domain.GrantValuation, error) {
	grants, err := s.Grants()
	if err != nil {
		return nil, err
	}
	return s.ValueBatch(ctx, grants), nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"eso_go/internal/domain"
	"eso_go/internal/engine"
	"eso_go/internal/infra"
)

// memRepo is an in-memory GrantRepository.
type memRepo struct {
	grants map[string]domain.OptionGrant
}

func newMemRepo() *memRepo {
	return &memRepo{grants: make(map[string]domain.OptionGrant)}
}

func (r *memRepo) UpsertGrant(g *domain.OptionGrant) error {
	r.grants[g.ID] = *g
	return nil
}

func (r *memRepo) GetGrant(id string) (*domain.OptionGrant, error) {
	g, ok := r.grants[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (r *memRepo) ListGrants() ([]domain.OptionGrant, error) {
	out := make([]domain.OptionGrant, 0, len(r.grants))
	for _, g := range r.grants {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) ListGrantsByHolder(holder string) ([]domain.OptionGrant, error) {
	all, _ := r.ListGrants()
	out := make([]domain.OptionGrant, 0, len(all))
	for _, g := range all {
		if g.Holder == holder {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *memRepo) DeleteGrant(id string) error {
	delete(r.grants, id)
	return nil
}

func newTestService(t *testing.T, mutate func(*infra.Config)) (*ValuationService, *infra.Metrics) {
	t.Helper()
	cfg := infra.DefaultConfig()
	cfg.Valuation.Workers = 2
	if mutate != nil {
		mutate(cfg)
	}
	m := infra.NewMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewValuationService(cfg, newMemRepo(), m, logger), m
}

func validInputs() domain.Inputs {
	return domain.Inputs{
		SharePrice:      100,
		StrikePrice:     90,
		TimeToMaturity:  1,
		VestingPeriod:   0.25,
		RiskFree:        0.05,
		Sigma:           0.3,
		DivRate:         0.01,
		ExitPreVesting:  0.1,
		ExitPostVesting: 0.1,
		Multiple:        2,
		Steps:           60,
	}
}

func grantFrom(id string, in domain.Inputs, policy string) domain.OptionGrant {
	return domain.OptionGrant{
		ID:              id,
		Holder:          "holder-" + id,
		SharePrice:      in.SharePrice,
		StrikePrice:     in.StrikePrice,
		TimeToMaturity:  in.TimeToMaturity,
		VestingPeriod:   in.VestingPeriod,
		RiskFree:        in.RiskFree,
		Sigma:           in.Sigma,
		DivRate:         in.DivRate,
		ExitPreVesting:  in.ExitPreVesting,
		ExitPostVesting: in.ExitPostVesting,
		Multiple:        in.Multiple,
		Steps:           in.Steps,
		Policy:          policy,
	}
}

func TestValue_DefaultSteps(t *testing.T) {
	svc, m := newTestService(t, nil)

	in := validInputs()
	in.Steps = 0
	got, err := svc.Value(context.Background(), in)
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	in.Steps = 100
	if want := engine.BinomialValue(in); got != want {
		t.Errorf("Expected default step valuation %+v, got %+v", want, got)
	}
	if m.Snapshot().Valuations != 1 {
		t.Errorf("Expected 1 recorded valuation, got %d", m.Snapshot().Valuations)
	}
}

func TestValue_ClampsSteps(t *testing.T) {
	svc, _ := newTestService(t, func(c *infra.Config) {
		c.Valuation.DefaultSteps = 20
		c.Valuation.MaxSteps = 50
	})

	in := validInputs()
	in.Steps = 5000
	got, err := svc.Value(context.Background(), in)
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	in.Steps = 50
	if want := engine.BinomialValue(in); got != want {
		t.Errorf("Expected clamped valuation %+v, got %+v", want, got)
	}
}

func TestValue_PermissiveKeepsNaN(t *testing.T) {
	svc, _ := newTestService(t, nil)

	in := validInputs()
	in.Steps = -3
	got, err := svc.Value(context.Background(), in)
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if got.Method != domain.MethodInvalid {
		t.Errorf("Expected invalid method, got %s", got.Method)
	}
}

func TestValue_CancelledContext(t *testing.T) {
	svc, m := newTestService(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Value(ctx, validInputs()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if m.Snapshot().Valuations != 0 {
		t.Errorf("Cancelled call should not value, got %d", m.Snapshot().Valuations)
	}
}

func TestValue_LatticeSlots(t *testing.T) {
	svc, _ := newTestService(t, func(c *infra.Config) { c.Valuation.Workers = 1 })

	// Hold the only slot
	if err := svc.slots.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	for _, strict := range []bool{false, true} {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		var err error
		if strict {
			_, err = svc.ValueStrict(ctx, validInputs())
		} else {
			_, err = svc.Value(ctx, validInputs())
		}
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("strict=%v: expected to wait for a slot and time out, got %v", strict, err)
		}
	}

	svc.slots.Release(1)

	if _, err := svc.Value(context.Background(), validInputs()); err != nil {
		t.Errorf("Expected valuation once the slot is free, got %v", err)
	}
	// Slot is returned after each call
	if !svc.slots.TryAcquire(1) {
		t.Error("Expected the slot to be released after valuation")
	}
}

func TestValueStrict(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		svc, _ := newTestService(t, nil)
		got, err := svc.ValueStrict(context.Background(), validInputs())
		if err != nil {
			t.Fatalf("ValueStrict failed: %v", err)
		}
		if want := engine.BinomialValue(validInputs()); got != want {
			t.Errorf("Expected %+v, got %+v", want, got)
		}
	})

	t.Run("steps above limit", func(t *testing.T) {
		svc, m := newTestService(t, func(c *infra.Config) { c.Valuation.MaxSteps = 100 })
		in := validInputs()
		in.Steps = 101
		_, err := svc.ValueStrict(context.Background(), in)
		if !errors.Is(err, domain.ErrStepsAboveLimit) {
			t.Errorf("Expected ErrStepsAboveLimit, got %v", err)
		}
		if m.Snapshot().ValidationErrors != 1 {
			t.Errorf("Expected 1 validation error, got %d", m.Snapshot().ValidationErrors)
		}
	})

	t.Run("zero volatility", func(t *testing.T) {
		svc, m := newTestService(t, nil)
		in := validInputs()
		in.Sigma = 0
		_, err := svc.ValueStrict(context.Background(), in)
		if !errors.Is(err, domain.ErrInvalidVolatility) {
			t.Errorf("Expected ErrInvalidVolatility, got %v", err)
		}
		if m.Snapshot().ValidationErrors != 1 || m.Snapshot().Valuations != 0 {
			t.Errorf("Unexpected metrics %+v", m.Snapshot())
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		svc, _ := newTestService(t, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := svc.ValueStrict(ctx, validInputs()); !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})
}

func TestValueGrant_Policy(t *testing.T) {
	svc, _ := newTestService(t, nil)

	res, err := svc.ValueGrant(context.Background(), grantFrom("G-1", validInputs(), "optimal"))
	if err != nil {
		t.Fatalf("ValueGrant failed: %v", err)
	}
	if res.Policy != domain.PolicyOptimal || res.GrantID != "G-1" || res.Holder != "holder-G-1" {
		t.Errorf("Unexpected identifiers %+v", res)
	}

	in := validInputs()
	in.Multiple = domain.OptimalMultiple
	if want := engine.BinomialValue(in); res.Valuation != want {
		t.Errorf("Expected optimal valuation %+v, got %+v", want, res.Valuation)
	}

	forced, err := svc.ValueGrant(context.Background(), grantFrom("G-2", validInputs(), ""))
	if err != nil {
		t.Fatalf("ValueGrant failed: %v", err)
	}
	if forced.Policy != domain.PolicyMultiple {
		t.Errorf("Empty policy should mean multiple, got %s", forced.Policy)
	}
	if forced.Value > res.Value {
		t.Errorf("Forced exercise %v should not beat optimal %v", forced.Value, res.Value)
	}
}

func TestValueGrant_UnknownPolicy(t *testing.T) {
	svc, _ := newTestService(t, nil)

	res, err := svc.ValueGrant(context.Background(), grantFrom("G-9", validInputs(), "american"))
	if !errors.Is(err, domain.ErrUnknownPolicy) {
		t.Errorf("Expected ErrUnknownPolicy, got %v", err)
	}
	if res.GrantID != "G-9" {
		t.Errorf("Expected grant id on error, got %q", res.GrantID)
	}
}

func TestValueBatch_OrderAndErrors(t *testing.T) {
	svc, m := newTestService(t, nil)

	grants := make([]domain.OptionGrant, 12)
	for i := range grants {
		in := validInputs()
		in.SharePrice = 60 + float64(i)*5
		grants[i] = grantFrom(fmt.Sprintf("G-%02d", i), in, "multiple")
	}
	grants[4].Sigma = 0
	grants[7].Policy = "bogus"

	results := svc.ValueBatch(context.Background(), grants)
	if len(results) != len(grants) {
		t.Fatalf("Expected %d results, got %d", len(grants), len(results))
	}

	for i, res := range results {
		if res.GrantID != grants[i].ID {
			t.Errorf("Result %d out of order: %s", i, res.GrantID)
		}
		switch i {
		case 4:
			if !errors.Is(res.Err, domain.ErrInvalidVolatility) {
				t.Errorf("Expected volatility error, got %v", res.Err)
			}
		case 7:
			if !errors.Is(res.Err, domain.ErrUnknownPolicy) {
				t.Errorf("Expected policy error, got %v", res.Err)
			}
		default:
			if res.Err != nil {
				t.Errorf("grant %s: unexpected error %v", res.GrantID, res.Err)
			}
		}
	}

	// Higher share price, higher value
	if results[11].Value <= results[0].Value {
		t.Errorf("Expected value to grow with share price: %v vs %v", results[0].Value, results[11].Value)
	}

	snap := m.Snapshot()
	if snap.Batches != 1 || snap.Valuations != 10 {
		t.Errorf("Unexpected metrics %+v", snap)
	}
}

func TestValueBatch_Cancelled(t *testing.T) {
	svc, _ := newTestService(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	grants := []domain.OptionGrant{
		grantFrom("A", validInputs(), ""),
		grantFrom("B", validInputs(), ""),
	}
	for _, res := range svc.ValueBatch(ctx, grants) {
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("grant %s: expected context.Canceled, got %v", res.GrantID, res.Err)
		}
	}
}

func TestGrantRegister(t *testing.T) {
	svc, _ := newTestService(t, nil)

	g := grantFrom("G-1", validInputs(), "optimal")
	if err := svc.SaveGrant(&g); err != nil {
		t.Fatalf("SaveGrant failed: %v", err)
	}

	bad := grantFrom("G-2", validInputs(), "bogus")
	if err := svc.SaveGrant(&bad); !errors.Is(err, domain.ErrUnknownPolicy) {
		t.Errorf("Expected policy error on save, got %v", err)
	}

	if _, err := svc.Grant("missing"); !errors.Is(err, ErrGrantNotFound) {
		t.Errorf("Expected ErrGrantNotFound, got %v", err)
	}

	res, err := svc.ValueStoredGrant(context.Background(), "G-1")
	if err != nil || res.Value <= 0 {
		t.Errorf("Expected stored grant valuation, got %+v, %v", res, err)
	}

	mine, err := svc.GrantsByHolder("holder-G-1")
	if err != nil || len(mine) != 1 {
		t.Errorf("Expected one grant for holder-G-1, got %d, %v", len(mine), err)
	}
	if other, _ := svc.GrantsByHolder("nobody"); len(other) != 0 {
		t.Errorf("Expected no grants for unknown holder, got %d", len(other))
	}

	all, err := svc.ValueRegister(context.Background())
	if err != nil || len(all) != 1 {
		t.Errorf("Expected one register result, got %d, %v", len(all), err)
	}

	if err := svc.RemoveGrant("G-1"); err != nil {
		t.Fatalf("RemoveGrant failed: %v", err)
	}
	if grants, _ := svc.Grants(); len(grants) != 0 {
		t.Errorf("Expected empty register, got %d", len(grants))
	}
}

func TestImportGrants(t *testing.T) {
	svc, _ := newTestService(t, nil)

	grants := []domain.OptionGrant{
		grantFrom("A", validInputs(), ""),
		grantFrom("B", validInputs(), "bogus"),
		grantFrom("C", validInputs(), ""),
	}
	n, err := svc.ImportGrants(grants)
	if err == nil || n != 1 {
		t.Errorf("Expected failure after 1 grant, got %d, %v", n, err)
	}
}

func TestNoRegister(t *testing.T) {
	svc := NewValuationService(infra.DefaultConfig(), nil, infra.NewMetrics(), nil)
	if _, err := svc.Grants(); !errors.Is(err, ErrNoRegister) {
		t.Errorf("Expected ErrNoRegister, got %v", err)
	}
}

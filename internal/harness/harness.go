package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/registry/internal/domain"
	"github.com/roach88/registry/internal/schema"
	"github.com/roach88/registry/internal/service"
	"github.com/roach88/registry/internal/store"
	"github.com/roach88/registry/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a fixed clock and sequential archive run ids.
type Harness struct {
	store     *store.Store
	service   *service.Service
	validator *schema.Validator
	clock     *testutil.FixedClock
	user      string
	logger    *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh database in its own temporary
// directory, so archive stores never leak between scenarios.
//
// Execution flow:
// 1. Create a fresh store with a fixed clock and sequential run ids
// 2. Execute flow steps, recording each in the trace
// 3. Check each step against its expect clause
// 4. Evaluate assertions against the trace and the stores
func Run(scenario *Scenario) (*Result, error) {
	now := DefaultNow
	if scenario.Now != "" {
		now = scenario.Now
	}
	start, err := time.Parse(time.RFC3339, now)
	if err != nil {
		return nil, fmt.Errorf("parse now: %w", err)
	}

	dir, err := os.MkdirTemp("", "registry-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "app.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	validator, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}

	user := DefaultUser
	if scenario.User != "" {
		user = scenario.User
	}

	// Suppress logs in scenarios
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.NewFixedClock(start)

	h := &Harness{
		store: st,
		service: service.New(st,
			service.WithClock(clock),
			service.WithRunIDs(testutil.NewSequentialRunIDs("run")),
			service.WithLogger(logger),
		),
		validator: validator,
		clock:     clock,
		user:      user,
		logger:    logger,
	}

	ctx := context.Background()

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeFlow runs all flow steps and validates expect clauses.
//
// Domain errors are outcomes, not failures: a step that is rejected with a
// validation error is traced with outcome "validation" and only fails the
// scenario if its expect clause asked for something else.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		user := h.user
		if step.User != "" {
			user = step.User
		}
		stepCtx := domain.WithUsername(ctx, user)

		args, res, err := h.execute(stepCtx, step)
		outcome := outcomeOf(err)
		if outcome != CaseOK {
			res = errorResult(err)
		}
		event := result.AddTrace(step.Op, args, outcome, res)

		expectedCase := CaseOK
		if step.Expect != nil && step.Expect.Case != "" {
			expectedCase = step.Expect.Case
		}
		if outcome != expectedCase {
			detail := ""
			if err != nil {
				detail = ": " + err.Error()
			}
			result.AddError(fmt.Sprintf("flow[%d] %s: expected %s, got %s%s", i, step.Op, expectedCase, outcome, detail))
			continue
		}
		if step.Expect != nil && !matchSubset(event.Result, step.Expect.Result) {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected result %v, got %v", i, step.Op, step.Expect.Result, event.Result))
			continue
		}

		h.logger.Info("flow step completed",
			"step", i,
			"op", step.Op,
			"outcome", outcome,
		)
	}

	return nil
}

// execute performs one step and returns the traced args and result.
func (h *Harness) execute(ctx context.Context, step FlowStep) (map[string]any, map[string]any, error) {
	switch step.Op {
	case OpCreate:
		args := make(map[string]any, len(step.Args)+1)
		for k, v := range step.Args {
			args[k] = v
		}
		args["category"] = step.Category

		payload, err := json.Marshal(step.Args)
		if err != nil {
			return args, nil, fmt.Errorf("marshal create args: %w", err)
		}
		if err := h.validator.ValidateCategory(step.Category); err != nil {
			return args, nil, err
		}
		in, err := h.validator.ValidatePayload(payload)
		if err != nil {
			return args, nil, err
		}
		reg, err := h.service.CreateRegistration(ctx, step.Category, in)
		if err != nil {
			return args, nil, err
		}
		res := map[string]any{
			"id":             reg.ID,
			"category":       string(reg.Category),
			"protocolNumber": reg.ProtocolNumber,
			"entryDate":      reg.EntryDate,
		}
		if reg.DraftNumber != nil {
			res["draftNumber"] = *reg.DraftNumber
		}
		return args, res, nil

	case OpDelete:
		args := map[string]any{"id": step.ID}
		if err := h.service.DeleteRegistration(ctx, step.ID); err != nil {
			return args, nil, err
		}
		return args, map[string]any{"id": step.ID}, nil

	case OpList:
		page := step.Page
		if page == 0 {
			page = 1
		}
		args := map[string]any{"month": step.Month, "page": page}
		if step.Category != "" {
			args["category"] = step.Category
		}
		p, err := h.service.ListRegistrations(ctx, step.Month, step.Category, page)
		if err != nil {
			return args, nil, err
		}
		ids := make([]int64, 0, len(p.Items))
		for _, reg := range p.Items {
			ids = append(ids, reg.ID)
		}
		return args, map[string]any{"total": p.Total, "page": p.Page, "ids": ids}, nil

	case OpArchive:
		var (
			args map[string]any
			res  domain.ArchiveResult
			err  error
		)
		if step.Month == "" {
			res, err = h.service.RunMonthlyArchive(ctx)
		} else {
			args = map[string]any{"month": step.Month}
			res, err = h.service.ArchiveMonth(ctx, step.Month)
		}
		if err != nil {
			return args, nil, err
		}
		return args, map[string]any{"month": res.Month, "itemsMoved": res.ItemsMoved, "runId": res.RunID}, nil

	case OpAdvance:
		if step.To != "" {
			to, err := time.Parse(time.RFC3339, step.To)
			if err != nil {
				return nil, nil, err
			}
			h.clock.Set(to)
			return map[string]any{"to": step.To}, map[string]any{"now": h.clock.Now().UTC().Format(time.RFC3339)}, nil
		}
		d, err := time.ParseDuration(step.By)
		if err != nil {
			return nil, nil, err
		}
		h.clock.Advance(d)
		return map[string]any{"by": step.By}, map[string]any{"now": h.clock.Now().UTC().Format(time.RFC3339)}, nil
	}

	return nil, nil, fmt.Errorf("unknown op %q", step.Op)
}

// outcomeOf maps an operation error to its trace outcome.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return CaseOK
	case domain.IsValidation(err):
		return CaseValidation
	case domain.IsNotFound(err):
		return CaseNotFound
	default:
		return CaseStorage
	}
}

// errorResult keeps only the deterministic part of an error: the rejected
// field for validation errors. Storage messages carry temporary paths.
func errorResult(err error) map[string]any {
	if !domain.IsValidation(err) {
		return nil
	}
	var derr *domain.Error
	if errors.As(err, &derr) && derr.Field != "" {
		return map[string]any{"field": derr.Field}
	}
	return nil
}

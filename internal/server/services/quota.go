package services

import (
	"context"
	"fmt"

	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/server/repositories/repomanager"
)

// QuotaGuard enforces count-based admission control on creation operations.
// Updates and deletes are never quota-limited. The count-then-insert is not
// atomic against concurrent creations from multiple devices; the race is
// accepted and bounded by low per-owner write concurrency.
type QuotaGuard struct {
	manager         repomanager.Manager
	maxCases        int
	maxDatesPerCase int
}

// NewQuotaGuard builds a guard with the given caps. A cap of 0 or below
// disables the corresponding check.
func NewQuotaGuard(manager repomanager.Manager, maxCases, maxDatesPerCase int) *QuotaGuard {
	return &QuotaGuard{manager: manager, maxCases: maxCases, maxDatesPerCase: maxDatesPerCase}
}

// CheckCaseCreate returns common.ErrQuotaExceeded when the owner is at or
// over the case cap. The message is user-facing and actionable.
func (g *QuotaGuard) CheckCaseCreate(ctx context.Context, ownerID string) error {
	if g.maxCases <= 0 {
		return nil
	}
	n, err := g.manager.Cases().CountActive(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("counting cases: %w", err)
	}
	if n >= g.maxCases {
		return fmt.Errorf("%w: case limit of %d reached, delete an existing case to add a new one",
			common.ErrQuotaExceeded, g.maxCases)
	}
	return nil
}

// CheckDateCreate returns common.ErrQuotaExceeded when the case is at or
// over its date cap.
func (g *QuotaGuard) CheckDateCreate(ctx context.Context, ownerID, caseID string) error {
	if g.maxDatesPerCase <= 0 {
		return nil
	}
	n, err := g.manager.Dates().CountActiveByCase(ctx, ownerID, caseID)
	if err != nil {
		return fmt.Errorf("counting dates: %w", err)
	}
	if n >= g.maxDatesPerCase {
		return fmt.Errorf("%w: date limit of %d reached for this case, delete an existing date to add a new one",
			common.ErrQuotaExceeded, g.maxDatesPerCase)
	}
	return nil
}

package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mayanksahu17/binary-system-sub003/internal/domain"
	"github.com/mayanksahu17/binary-system-sub003/internal/ports"
)

// RunDailyCalculations sweeps the whole tree in the fixed order
// ROI -> binary settlement -> referral payout. The sweep is fenced twice:
// a distributed lock keeps two sweeps for the same date from overlapping,
// and a persisted batch record makes a non-forced re-trigger a no-op that
// replays the stored report.
func (s *Service) RunDailyCalculations(ctx context.Context, actor Actor, input RunCalculationsInput) (BatchReport, error) {
	if !actor.isOperator() {
		return BatchReport{}, domain.ErrForbidden
	}
	now := s.nowFn()
	batchDate := strings.TrimSpace(input.Date)
	if batchDate == "" {
		batchDate = domain.CycleDate(now)
	} else if _, err := time.Parse(domain.CycleDateFormat, batchDate); err != nil {
		return BatchReport{}, domain.ErrInvalidInput
	}

	acquired, err := s.locker.Acquire(ctx, batchDate, s.cfg.BatchLockTTL)
	if err != nil {
		return BatchReport{}, err
	}
	if !acquired {
		return BatchReport{}, domain.ErrConflict
	}
	defer func() { _ = s.locker.Release(ctx, batchDate) }()

	if previous, err := s.batchRuns.Get(ctx, batchDate); err != nil {
		return BatchReport{}, err
	} else if previous != nil && !input.Force {
		return reportFromRun(*previous, true), nil
	}

	report := BatchReport{BatchDate: batchDate, Failures: []ports.BatchFailure{}}
	failed := make(map[string]string)
	addFailure := func(userID string, cause error) {
		if _, seen := failed[userID]; seen {
			return
		}
		failed[userID] = cause.Error()
		report.Failures = append(report.Failures, ports.BatchFailure{UserID: userID, Reason: cause.Error()})
	}

	if input.IncludeROI {
		active, err := s.investments.ListActive(ctx, now)
		if err != nil {
			return BatchReport{}, err
		}
		for _, investment := range active {
			accrued, err := s.accrueROI(ctx, investment, batchDate, now)
			if err != nil {
				addFailure(investment.UserID, fmt.Errorf("roi accrual: %w", err))
				continue
			}
			report.ROIAccrued += accrued
		}
		if err := s.expireLapsedInvestments(ctx, now); err != nil {
			return BatchReport{}, err
		}
	}

	if input.IncludeBinary {
		nodes, err := s.nodes.ListAll(ctx)
		if err != nil {
			return BatchReport{}, err
		}
		for _, node := range nodes {
			settlement, skipped, err := s.settleBinary(ctx, node.UserID, batchDate, input.Force)
			if err != nil {
				addFailure(node.UserID, fmt.Errorf("binary settlement: %w", err))
				continue
			}
			if skipped {
				report.Skipped++
				continue
			}
			report.UsersProcessed++
			report.BonusesPaid += settlement.PayableBonus
		}
	}

	if input.IncludeReferral {
		active, err := s.investments.ListActive(ctx, now)
		if err != nil {
			return BatchReport{}, err
		}
		for _, investment := range active {
			paid, err := s.payReferrals(ctx, investment)
			if err != nil {
				addFailure(investment.UserID, fmt.Errorf("referral payout: %w", err))
				continue
			}
			report.ReferralsPaid += paid
		}
	}

	completedAt := s.nowFn()
	run := ports.BatchRun{
		BatchDate:      batchDate,
		UsersProcessed: report.UsersProcessed,
		BonusesPaid:    report.BonusesPaid,
		ROIAccrued:     report.ROIAccrued,
		ReferralsPaid:  report.ReferralsPaid,
		Skipped:        report.Skipped,
		Failures:       report.Failures,
		StartedAt:      now,
		CompletedAt:    completedAt,
	}
	if err := s.batchRuns.Save(ctx, run); err != nil {
		return BatchReport{}, err
	}
	if err := s.audit.Append(ctx, ports.AuditRecord{
		LogID:     uuid.NewString(),
		UserID:    actor.SubjectID,
		Action:    "daily_calculations_completed",
		Amount:    report.BonusesPaid,
		CreatedAt: completedAt,
		Metadata: map[string]string{
			"batch_date": batchDate,
			"failures":   fmt.Sprintf("%d", len(report.Failures)),
		},
	}); err != nil {
		return BatchReport{}, err
	}
	if err := s.enqueueBatchCompleted(ctx, run); err != nil {
		return BatchReport{}, err
	}
	return report, s.FlushOutbox(ctx)
}

// SettleUser runs one user's binary settlement for today outside the batch.
func (s *Service) SettleUser(ctx context.Context, actor Actor, userID string) (domain.Settlement, error) {
	if !actor.isOperator() {
		return domain.Settlement{}, domain.ErrForbidden
	}
	settlement, skipped, err := s.settleBinary(ctx, strings.TrimSpace(userID), domain.CycleDate(s.nowFn()), false)
	if err != nil {
		return domain.Settlement{}, err
	}
	if skipped {
		return domain.Settlement{}, domain.ErrAlreadySettled
	}
	return *settlement, s.FlushOutbox(ctx)
}

// settleBinary converts one node's accumulated volume plus carry into a
// bonus and new carry state, exactly once per user per cycle date. The node
// consumption, wallet credit, and settlement record commit as one unit: a
// ledger failure rolls the volume back so a retried settle still pays.
func (s *Service) settleBinary(ctx context.Context, userID, cycleDate string, force bool) (*domain.Settlement, bool, error) {
	node, err := s.nodes.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if node.Kind == domain.NodeKindRootAggregate {
		return nil, true, nil
	}
	settlementID := uuid.NewString()
	if existing, err := s.settlements.GetByUserAndDate(ctx, userID, cycleDate); err == nil {
		if !force {
			return nil, true, nil
		}
		// A forced replay rewrites the day's record in place instead of
		// minting a second row for the same user and date.
		settlementID = existing.SettlementID
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	rate := s.cfg.BinaryRate
	if override, err := s.packages.GetBinaryRate(ctx, ""); err == nil && override > 0 {
		rate = override
	}
	cappingLimit := node.CappingLimit
	if override, err := s.packages.GetCappingLimit(ctx, ""); err == nil && override > 0 {
		cappingLimit = override
	}

	outcome := domain.SettleVolumes(domain.SettlementInput{
		LeftBusiness:  node.LeftBusiness,
		RightBusiness: node.RightBusiness,
		LeftCarry:     node.LeftCarry,
		RightCarry:    node.RightCarry,
		BinaryRate:    rate,
		CappingLimit:  cappingLimit,
	})

	now := s.nowFn()
	consumed := node
	consumed.LeftBusiness = 0
	consumed.RightBusiness = 0
	consumed.LeftCarry = outcome.NewLeftCarry
	consumed.RightCarry = outcome.NewRightCarry
	consumed.UpdatedAt = now

	settlement := domain.Settlement{
		SettlementID:   settlementID,
		UserID:         userID,
		CycleDate:      cycleDate,
		EffectiveLeft:  outcome.EffectiveLeft,
		EffectiveRight: outcome.EffectiveRight,
		MatchedVolume:  outcome.MatchedVolume,
		RawBonus:       outcome.RawBonus,
		PayableBonus:   outcome.PayableBonus,
		NewLeftCarry:   outcome.NewLeftCarry,
		NewRightCarry:  outcome.NewRightCarry,
		Capped:         outcome.Capped,
		SettledAt:      now,
	}

	unit := ports.SettlementUnit{Node: consumed, Settlement: settlement}
	if outcome.PayableBonus > 0 {
		entry := ports.LedgerEntry{
			UserID:     userID,
			WalletType: domain.WalletTypeBinary,
			Type:       domain.TransactionTypeCredit,
			Amount:     outcome.PayableBonus,
			Reference:  settlement.SettlementID,
			Meta: map[string]string{
				"cycle_date":     cycleDate,
				"matched_volume": fmt.Sprintf("%.4f", outcome.MatchedVolume),
				"capped":         fmt.Sprintf("%t", outcome.Capped),
			},
			CreatedAt: now,
		}
		if err := domain.ValidateLedgerEntry(entry.UserID, entry.WalletType, entry.Type, entry.Amount); err != nil {
			return nil, false, err
		}
		unit.Credit = &entry
	}
	if _, err := s.settler.ApplySettlement(ctx, unit); err != nil {
		return nil, false, err
	}

	if err := s.audit.Append(ctx, ports.AuditRecord{
		LogID:     uuid.NewString(),
		UserID:    userID,
		Action:    "binary_settled",
		Amount:    outcome.PayableBonus,
		CreatedAt: now,
		Metadata: map[string]string{
			"settlement_id":  settlement.SettlementID,
			"cycle_date":     cycleDate,
			"matched_volume": fmt.Sprintf("%.4f", outcome.MatchedVolume),
			"capped":         fmt.Sprintf("%t", outcome.Capped),
		},
	}); err != nil {
		return nil, false, err
	}
	if err := s.enqueueBinarySettled(ctx, settlement); err != nil {
		return nil, false, err
	}
	return &settlement, false, nil
}

// accrueROI pays one day's return on an active investment, fenced per
// investment per cycle date.
func (s *Service) accrueROI(ctx context.Context, investment domain.Investment, cycleDate string, now time.Time) (float64, error) {
	if !investment.IsActive(now) {
		return 0, nil
	}
	done, err := s.accruals.HasAccrued(ctx, investment.InvestmentID, cycleDate)
	if err != nil {
		return 0, err
	}
	if done {
		return 0, nil
	}

	rate := s.cfg.DailyROIRate
	if override, err := s.packages.GetDailyROIRate(ctx, investment.PackageID); err == nil && override > 0 {
		rate = override
	}
	amount := domain.DailyROI(investment.InvestedAmount, rate)
	if amount <= 0 {
		return 0, s.accruals.MarkAccrued(ctx, investment.InvestmentID, cycleDate, 0)
	}

	if _, err := s.creditWallet(ctx, ports.LedgerEntry{
		UserID:     investment.UserID,
		WalletType: domain.WalletTypeROI,
		Type:       domain.TransactionTypeCredit,
		Amount:     amount,
		Reference:  investment.InvestmentID,
		Meta:       map[string]string{"cycle_date": cycleDate},
	}); err != nil {
		return 0, err
	}
	if err := s.accruals.MarkAccrued(ctx, investment.InvestmentID, cycleDate, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// payReferrals pays each configured upline level its share of a propagated
// investment, exactly once per investment.
func (s *Service) payReferrals(ctx context.Context, investment domain.Investment) (float64, error) {
	if investment.IsReferralPaid || !investment.PaysReferral() {
		return 0, nil
	}
	// Propagation happens-before referral: an unpropagated investment is
	// still settling into the tree and is picked up on the next sweep.
	if !investment.IsBinaryUpdated {
		return 0, nil
	}

	node, err := s.nodes.Get(ctx, investment.UserID)
	if err != nil {
		return 0, err
	}

	total := 0.0
	now := s.nowFn()
	sponsorID := node.ParentID
	for level, levelRate := range s.cfg.ReferralLevelRates {
		if sponsorID == "" {
			break
		}
		sponsor, err := s.nodes.Get(ctx, sponsorID)
		if err != nil {
			if errors.Is(err, domain.ErrNodeNotFound) {
				return 0, domain.ErrTreeIntegrity
			}
			return 0, err
		}
		if sponsor.Kind == domain.NodeKindRootAggregate {
			break
		}
		amount := domain.ReferralBonus(investment.InvestedAmount, levelRate)
		if amount > 0 {
			if _, err := s.creditWallet(ctx, ports.LedgerEntry{
				UserID:     sponsor.UserID,
				WalletType: domain.WalletTypeReferral,
				Type:       domain.TransactionTypeCredit,
				Amount:     amount,
				Reference:  investment.InvestmentID,
				Meta: map[string]string{
					"downline_id": investment.UserID,
					"level":       fmt.Sprintf("%d", level+1),
				},
			}); err != nil {
				return 0, err
			}
			if err := s.enqueueReferralPaid(ctx, investment, sponsor.UserID, level+1, amount, now); err != nil {
				return 0, err
			}
			total += amount
		}
		sponsorID = sponsor.ParentID
	}

	if err := s.investments.MarkReferralPaid(ctx, investment.InvestmentID); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) expireLapsedInvestments(ctx context.Context, now time.Time) error {
	active, err := s.investments.ListActive(ctx, time.Time{})
	if err != nil {
		return err
	}
	for _, investment := range active {
		if investment.Status == domain.InvestmentStatusActive && !investment.IsActive(now) {
			if err := s.investments.MarkExpired(ctx, investment.InvestmentID, now); err != nil {
				return err
			}
		}
	}
	return nil
}

func reportFromRun(run ports.BatchRun, alreadyProcessed bool) BatchReport {
	failures := run.Failures
	if failures == nil {
		failures = []ports.BatchFailure{}
	}
	return BatchReport{
		BatchDate:        run.BatchDate,
		UsersProcessed:   run.UsersProcessed,
		BonusesPaid:      run.BonusesPaid,
		ROIAccrued:       run.ROIAccrued,
		ReferralsPaid:    run.ReferralsPaid,
		Skipped:          run.Skipped,
		Failures:         failures,
		AlreadyProcessed: alreadyProcessed,
	}
}

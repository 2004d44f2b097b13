package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	eventadapter "github.com/mayanksahu17/binary-system-sub003/internal/adapters/events"
	grpcadapter "github.com/mayanksahu17/binary-system-sub003/internal/adapters/grpc"
	"github.com/mayanksahu17/binary-system-sub003/internal/adapters/memory"
	"github.com/mayanksahu17/binary-system-sub003/internal/application"
	"github.com/mayanksahu17/binary-system-sub003/internal/domain"
	"github.com/mayanksahu17/binary-system-sub003/internal/ports"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Set(t time.Time)         { c.now = t }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClockedService(t *testing.T, clock *fakeClock, opts ...func(*application.Dependencies)) (*application.Service, *memory.Repositories, *eventadapter.MemoryDomainPublisher) {
	t.Helper()
	repos := memory.NewRepositories()
	publisher := eventadapter.NewMemoryDomainPublisher()
	deps := application.Dependencies{
		Nodes:        repos.Nodes,
		Propagations: repos.Propagations,
		Investments:  repos.Investments,
		Ledger:       repos.Ledger,
		Withdrawals:  repos.Withdrawals,
		Settlements:  repos.Settlements,
		Settler:      repos.Settler,
		BatchRuns:    repos.BatchRuns,
		Accruals:     repos.Accruals,
		Audit:        repos.Audit,
		Idempotency:  repos.Idempotency,
		EventDedup:   repos.EventDedup,
		Outbox:       repos.Outbox,
		Packages:     grpcadapter.NewPackageConfigClient(""),
		Users:        grpcadapter.NewUserDirectoryClient(""),
		Locker:       memory.NewBatchLocker(),
		DomainEvents: publisher,
		Analytics:    eventadapter.NewMemoryAnalyticsPublisher(),
		DLQ:          eventadapter.NewLoggingDLQPublisher(),
		NowFn:        clock.Now,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	svc := application.NewService(deps)

	if err := repos.Nodes.Create(context.Background(), domain.BinaryNode{
		UserID:    rootID,
		Kind:      domain.NodeKindRootAggregate,
		CreatedAt: clock.Now(),
	}); err != nil {
		t.Fatalf("seed root node: %v", err)
	}
	return svc, repos, publisher
}

func register(t *testing.T, svc *application.Service, key, userID string, amount float64) {
	t.Helper()
	_, err := svc.RegisterInvestment(context.Background(), adminActor(key), application.RegisterInvestmentInput{
		UserID:         userID,
		PackageID:      "pkg-gold",
		InvestedAmount: amount,
		Type:           domain.InvestmentTypeNormal,
	})
	if err != nil {
		t.Fatalf("register %s for %.0f: %v", userID, amount, err)
	}
}

// Tree root -> A -> (B left, C right), B invests 1000, C invests 400.
// With defaults (binary 10%, referral 5/2/1%, ROI 0.5% daily):
//
//	ROI:      1000*0.005 + 400*0.005         = 7
//	binary:   A matches min(1000, 400) = 400 -> 40 bonus, 600 left carry
//	referral: A earns 5% of both downline investments = 70
func seedVolumeDay(t *testing.T, svc *application.Service) {
	t.Helper()
	placeUser(t, svc, userA, rootID, domain.LegLeft)
	placeUser(t, svc, userB, userA, domain.LegLeft)
	placeUser(t, svc, userC, userA, domain.LegRight)
	register(t, svc, "inv:b", userB, 1000)
	register(t, svc, "inv:c", userC, 400)
}

func TestRunDailyCalculationsFullSweep(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, repos, publisher := newClockedService(t, clock)
	seedVolumeDay(t, svc)

	ctx := context.Background()
	report, err := svc.RunDailyCalculations(ctx, adminActor(""), application.RunCalculationsInput{
		IncludeROI:      true,
		IncludeBinary:   true,
		IncludeReferral: true,
	})
	if err != nil {
		t.Fatalf("run daily calculations: %v", err)
	}

	if report.BatchDate != "2025-03-01" {
		t.Fatalf("batch date = %s, want 2025-03-01", report.BatchDate)
	}
	if report.ROIAccrued != 7 {
		t.Fatalf("roi accrued = %v, want 7", report.ROIAccrued)
	}
	if report.BonusesPaid != 40 {
		t.Fatalf("bonuses paid = %v, want 40", report.BonusesPaid)
	}
	if report.ReferralsPaid != 70 {
		t.Fatalf("referrals paid = %v, want 70", report.ReferralsPaid)
	}
	if report.UsersProcessed != 3 {
		t.Fatalf("users processed = %d, want 3", report.UsersProcessed)
	}
	// The root aggregate is swept but never settled.
	if report.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", report.Skipped)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("failures = %v, want none", report.Failures)
	}
	if report.AlreadyProcessed {
		t.Fatal("first run must not be marked already processed")
	}

	binaryWallet, _ := repos.Ledger.GetWallet(ctx, userA, domain.WalletTypeBinary)
	if binaryWallet.Balance != 40 {
		t.Fatalf("A binary balance = %v, want 40", binaryWallet.Balance)
	}
	referralWallet, _ := repos.Ledger.GetWallet(ctx, userA, domain.WalletTypeReferral)
	if referralWallet.Balance != 70 {
		t.Fatalf("A referral balance = %v, want 70", referralWallet.Balance)
	}
	roiWallet, _ := repos.Ledger.GetWallet(ctx, userB, domain.WalletTypeROI)
	if roiWallet.Balance != 5 {
		t.Fatalf("B roi balance = %v, want 5", roiWallet.Balance)
	}

	a, _ := repos.Nodes.Get(ctx, userA)
	if a.LeftBusiness != 0 || a.RightBusiness != 0 {
		t.Fatalf("A business = %v/%v, want zeroed after settlement", a.LeftBusiness, a.RightBusiness)
	}
	if a.LeftCarry != 600 || a.RightCarry != 0 {
		t.Fatalf("A carry = %v/%v, want 600/0", a.LeftCarry, a.RightCarry)
	}

	completed := false
	for _, event := range publisher.Events {
		if event.EventType == domain.EventBatchCompleted {
			completed = true
		}
	}
	if !completed {
		t.Fatal("expected a batch completion event on the domain stream")
	}
}

func TestRunDailyCalculationsRerunReplaysStoredReport(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, repos, _ := newClockedService(t, clock)
	seedVolumeDay(t, svc)

	ctx := context.Background()
	input := application.RunCalculationsInput{IncludeROI: true, IncludeBinary: true, IncludeReferral: true}
	first, err := svc.RunDailyCalculations(ctx, adminActor(""), input)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	clock.Advance(time.Hour)
	second, err := svc.RunDailyCalculations(ctx, adminActor(""), input)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.AlreadyProcessed {
		t.Fatal("rerun must replay the stored report")
	}
	if second.BonusesPaid != first.BonusesPaid || second.ROIAccrued != first.ROIAccrued {
		t.Fatalf("replayed report %+v differs from first %+v", second, first)
	}

	wallet, _ := repos.Ledger.GetWallet(ctx, userA, domain.WalletTypeBinary)
	if wallet.Balance != 40 {
		t.Fatalf("A binary balance = %v, want 40 (no double pay)", wallet.Balance)
	}
}

func TestRunDailyCalculationsForceRerunPaysNothingTwice(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, repos, _ := newClockedService(t, clock)
	seedVolumeDay(t, svc)

	ctx := context.Background()
	input := application.RunCalculationsInput{IncludeROI: true, IncludeBinary: true, IncludeReferral: true}
	if _, err := svc.RunDailyCalculations(ctx, adminActor(""), input); err != nil {
		t.Fatalf("first run: %v", err)
	}

	input.Force = true
	clock.Advance(time.Hour)
	forced, err := svc.RunDailyCalculations(ctx, adminActor(""), input)
	if err != nil {
		t.Fatalf("forced rerun: %v", err)
	}
	if forced.AlreadyProcessed {
		t.Fatal("forced rerun must actually re-sweep")
	}
	// Every leg of the sweep is fenced independently, so the forced
	// re-sweep finds nothing left to pay.
	if forced.ROIAccrued != 0 || forced.BonusesPaid != 0 || forced.ReferralsPaid != 0 {
		t.Fatalf("forced rerun paid %v/%v/%v, want 0/0/0", forced.ROIAccrued, forced.BonusesPaid, forced.ReferralsPaid)
	}

	a, _ := repos.Nodes.Get(ctx, userA)
	if a.LeftCarry != 600 {
		t.Fatalf("A left carry = %v, want 600 preserved across forced rerun", a.LeftCarry)
	}

	// The replay rewrites the day's settlement row instead of stacking a
	// second record for the same user and date.
	history, err := svc.ListSettlements(ctx, adminActor(""), userA, 10, 0)
	if err != nil {
		t.Fatalf("list settlements: %v", err)
	}
	if history.Total != 1 || len(history.Items) != 1 {
		t.Fatalf("settlement history total = %d, want 1 after forced rerun", history.Total)
	}
}

func TestRunDailyCalculationsRequiresOperator(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, _, _ := newClockedService(t, clock)

	member := application.Actor{SubjectID: userB, Role: "member"}
	_, err := svc.RunDailyCalculations(context.Background(), member, application.RunCalculationsInput{IncludeBinary: true})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCarryCombinesWithNextDayVolume(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, repos, _ := newClockedService(t, clock)
	seedVolumeDay(t, svc)

	ctx := context.Background()
	input := application.RunCalculationsInput{IncludeROI: true, IncludeBinary: true, IncludeReferral: true}
	if _, err := svc.RunDailyCalculations(ctx, adminActor(""), input); err != nil {
		t.Fatalf("day one: %v", err)
	}

	// Day two: the right leg catches up against yesterday's 600 left carry.
	clock.Set(time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC))
	register(t, svc, "inv:c:2", userC, 600)

	report, err := svc.RunDailyCalculations(ctx, adminActor(""), application.RunCalculationsInput{IncludeBinary: true})
	if err != nil {
		t.Fatalf("day two: %v", err)
	}
	if report.BatchDate != "2025-03-02" {
		t.Fatalf("batch date = %s, want 2025-03-02", report.BatchDate)
	}
	if report.BonusesPaid != 60 {
		t.Fatalf("bonuses paid = %v, want 60 from matching 600 carry against 600 new volume", report.BonusesPaid)
	}

	a, _ := repos.Nodes.Get(ctx, userA)
	if a.LeftCarry != 0 || a.RightCarry != 0 {
		t.Fatalf("A carry = %v/%v, want both cleared", a.LeftCarry, a.RightCarry)
	}
}

func TestSettleUserOncePerCycle(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, repos, _ := newClockedService(t, clock)
	seedVolumeDay(t, svc)

	ctx := context.Background()
	settlement, err := svc.SettleUser(ctx, adminActor(""), userA)
	if err != nil {
		t.Fatalf("settle A: %v", err)
	}
	if settlement.MatchedVolume != 400 || settlement.PayableBonus != 40 {
		t.Fatalf("settlement matched/bonus = %v/%v, want 400/40", settlement.MatchedVolume, settlement.PayableBonus)
	}
	if settlement.CycleDate != "2025-03-01" {
		t.Fatalf("cycle date = %s, want 2025-03-01", settlement.CycleDate)
	}

	if _, err := svc.SettleUser(ctx, adminActor(""), userA); !errors.Is(err, domain.ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled on same-day resettle, got %v", err)
	}

	history, err := svc.ListSettlements(ctx, adminActor(""), userA, 10, 0)
	if err != nil {
		t.Fatalf("list settlements: %v", err)
	}
	if history.Total != 1 || len(history.Items) != 1 {
		t.Fatalf("settlement history total = %d, want 1", history.Total)
	}

	wallet, _ := repos.Ledger.GetWallet(ctx, userA, domain.WalletTypeBinary)
	if wallet.Balance != 40 {
		t.Fatalf("A binary balance = %v, want 40", wallet.Balance)
	}
}

func TestSettleUserRejectsRootAggregate(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, _, _ := newClockedService(t, clock)

	if _, err := svc.SettleUser(context.Background(), adminActor(""), rootID); !errors.Is(err, domain.ErrAlreadySettled) {
		t.Fatalf("expected root aggregate to be skipped, got %v", err)
	}
}

func TestReferralStopsAtRootAggregate(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, repos, _ := newClockedService(t, clock)

	// Chain root -> A -> B -> C: C's investment pays level 1 to B and
	// level 2 to A, then the walk hits the root and stops short of the
	// configured third level.
	placeUser(t, svc, userA, rootID, domain.LegLeft)
	placeUser(t, svc, userB, userA, domain.LegLeft)
	placeUser(t, svc, userC, userB, domain.LegLeft)
	register(t, svc, "inv:c:chain", userC, 1000)

	ctx := context.Background()
	report, err := svc.RunDailyCalculations(ctx, adminActor(""), application.RunCalculationsInput{IncludeReferral: true})
	if err != nil {
		t.Fatalf("run referral sweep: %v", err)
	}
	if report.ReferralsPaid != 70 {
		t.Fatalf("referrals paid = %v, want 70 (50 level one + 20 level two)", report.ReferralsPaid)
	}

	bWallet, _ := repos.Ledger.GetWallet(ctx, userB, domain.WalletTypeReferral)
	if bWallet.Balance != 50 {
		t.Fatalf("B referral balance = %v, want 50", bWallet.Balance)
	}
	aWallet, _ := repos.Ledger.GetWallet(ctx, userA, domain.WalletTypeReferral)
	if aWallet.Balance != 20 {
		t.Fatalf("A referral balance = %v, want 20", aWallet.Balance)
	}
	rootWallet, _ := repos.Ledger.GetWallet(ctx, rootID, domain.WalletTypeReferral)
	if rootWallet.Balance != 0 {
		t.Fatalf("root referral balance = %v, want 0", rootWallet.Balance)
	}

	// The sweep fences per investment: a second pass pays nothing.
	again, err := svc.RunDailyCalculations(ctx, adminActor(""), application.RunCalculationsInput{IncludeReferral: true, Force: true})
	if err != nil {
		t.Fatalf("second referral sweep: %v", err)
	}
	if again.ReferralsPaid != 0 {
		t.Fatalf("second sweep paid %v, want 0", again.ReferralsPaid)
	}
}

// flakySettler rejects a number of commits before delegating, standing in
// for a wallet store outage during settlement.
type flakySettler struct {
	inner    ports.SettlementApplier
	failures int
}

func (s *flakySettler) ApplySettlement(ctx context.Context, unit ports.SettlementUnit) (domain.Transaction, error) {
	if s.failures > 0 {
		s.failures--
		return domain.Transaction{}, domain.ErrLedgerWrite
	}
	return s.inner.ApplySettlement(ctx, unit)
}

func TestSettleUserFailedCommitLeavesVolumeForRetry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, repos, _ := newClockedService(t, clock, func(deps *application.Dependencies) {
		deps.Settler = &flakySettler{inner: deps.Settler, failures: 1}
	})
	seedVolumeDay(t, svc)

	ctx := context.Background()
	if _, err := svc.SettleUser(ctx, adminActor(""), userA); !errors.Is(err, domain.ErrLedgerWrite) {
		t.Fatalf("expected the failed wallet write to surface, got %v", err)
	}

	// Nothing committed: the business volume survives, no settlement row
	// fences the day, and no bonus landed.
	a, _ := repos.Nodes.Get(ctx, userA)
	if a.LeftBusiness != 1000 || a.RightBusiness != 400 {
		t.Fatalf("A business = %v/%v after failed settle, want 1000/400 intact", a.LeftBusiness, a.RightBusiness)
	}
	if a.LeftCarry != 0 || a.RightCarry != 0 {
		t.Fatalf("A carry = %v/%v after failed settle, want 0/0", a.LeftCarry, a.RightCarry)
	}
	if _, err := repos.Settlements.GetByUserAndDate(ctx, userA, "2025-03-01"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no settlement record after failed commit, got %v", err)
	}
	wallet, _ := repos.Ledger.GetWallet(ctx, userA, domain.WalletTypeBinary)
	if wallet.Balance != 0 {
		t.Fatalf("A binary balance = %v after failed settle, want 0", wallet.Balance)
	}

	// The retry still finds the volume and pays the full bonus.
	settlement, err := svc.SettleUser(ctx, adminActor(""), userA)
	if err != nil {
		t.Fatalf("retry settle: %v", err)
	}
	if settlement.PayableBonus != 40 {
		t.Fatalf("retry bonus = %v, want 40", settlement.PayableBonus)
	}
	wallet, _ = repos.Ledger.GetWallet(ctx, userA, domain.WalletTypeBinary)
	if wallet.Balance != 40 {
		t.Fatalf("A binary balance = %v after retry, want 40", wallet.Balance)
	}
}

// packageOverrides returns fixed admin-managed rates for every package.
type packageOverrides struct {
	binaryRate   float64
	cappingLimit float64
	dailyROIRate float64
}

func (p packageOverrides) GetBinaryRate(context.Context, string) (float64, error) {
	return p.binaryRate, nil
}

func (p packageOverrides) GetCappingLimit(context.Context, string) (float64, error) {
	return p.cappingLimit, nil
}

func (p packageOverrides) GetDailyROIRate(context.Context, string) (float64, error) {
	return p.dailyROIRate, nil
}

func TestSettleUserHonorsPackageRateAndCap(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, repos, _ := newClockedService(t, clock, func(deps *application.Dependencies) {
		deps.Packages = packageOverrides{binaryRate: 0.25, cappingLimit: 50}
	})
	seedVolumeDay(t, svc)

	ctx := context.Background()
	settlement, err := svc.SettleUser(ctx, adminActor(""), userA)
	if err != nil {
		t.Fatalf("settle A: %v", err)
	}
	// 400 matched at the overridden 25% is 100 raw, clamped to the
	// overridden 50 cap. The excess is forfeited, not carried.
	if settlement.RawBonus != 100 {
		t.Fatalf("raw bonus = %v, want 100", settlement.RawBonus)
	}
	if settlement.PayableBonus != 50 || !settlement.Capped {
		t.Fatalf("payable/capped = %v/%t, want 50/true", settlement.PayableBonus, settlement.Capped)
	}

	wallet, _ := repos.Ledger.GetWallet(ctx, userA, domain.WalletTypeBinary)
	if wallet.Balance != 50 {
		t.Fatalf("A binary balance = %v, want 50", wallet.Balance)
	}
}

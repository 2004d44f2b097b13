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

const (
	rootID  = "CROWN-ROOT01"
	userA   = "CROWN-AAA001"
	userB   = "CROWN-BBB001"
	userC   = "CROWN-CCC001"
	userD   = "CROWN-DDD001"
	adminID = "CROWN-ADMIN1"
)

func newTestService(t *testing.T) (*application.Service, *memory.Repositories) {
	t.Helper()
	repos := memory.NewRepositories()
	svc := application.NewService(application.Dependencies{
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
		DomainEvents: eventadapter.NewMemoryDomainPublisher(),
		Analytics:    eventadapter.NewMemoryAnalyticsPublisher(),
		DLQ:          eventadapter.NewLoggingDLQPublisher(),
	})

	if err := repos.Nodes.Create(context.Background(), domain.BinaryNode{
		UserID:    rootID,
		Kind:      domain.NodeKindRootAggregate,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed root node: %v", err)
	}
	return svc, repos
}

func adminActor(key string) application.Actor {
	return application.Actor{SubjectID: adminID, Role: "admin", IdempotencyKey: key}
}

func placeUser(t *testing.T, svc *application.Service, userID, sponsorID string, leg domain.Leg) {
	t.Helper()
	_, err := svc.PlaceUser(context.Background(), adminActor(""), application.PlaceUserInput{
		UserID:    userID,
		SponsorID: sponsorID,
		Leg:       leg,
	})
	if err != nil {
		t.Fatalf("place %s under %s/%s: %v", userID, sponsorID, leg, err)
	}
}

// Builds root -> A -> (B left, C right).
func buildSmallTree(t *testing.T, svc *application.Service) {
	t.Helper()
	placeUser(t, svc, userA, rootID, domain.LegLeft)
	placeUser(t, svc, userB, userA, domain.LegLeft)
	placeUser(t, svc, userC, userA, domain.LegRight)
}

func TestPlaceUserLinksLegsAndCounts(t *testing.T) {
	t.Parallel()

	svc, repos := newTestService(t)
	buildSmallTree(t, svc)

	a, err := repos.Nodes.Get(context.Background(), userA)
	if err != nil {
		t.Fatalf("get node A: %v", err)
	}
	if a.LeftChildID != userB || a.RightChildID != userC {
		t.Fatalf("A children = %s/%s, want %s/%s", a.LeftChildID, a.RightChildID, userB, userC)
	}
	if a.LeftDownlines != 1 || a.RightDownlines != 1 {
		t.Fatalf("A downlines = %d/%d, want 1/1", a.LeftDownlines, a.RightDownlines)
	}
	if a.Level != 1 {
		t.Fatalf("A level = %d, want 1", a.Level)
	}

	b, err := repos.Nodes.Get(context.Background(), userB)
	if err != nil {
		t.Fatalf("get node B: %v", err)
	}
	if b.Level != 2 || b.ParentID != userA {
		t.Fatalf("B level/parent = %d/%s, want 2/%s", b.Level, b.ParentID, userA)
	}

	root, err := repos.Nodes.Get(context.Background(), rootID)
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	if root.ChildrenCount != 1 {
		t.Fatalf("root children count = %d, want 1", root.ChildrenCount)
	}
}

func TestPlaceUserRejectsOccupiedLeg(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	buildSmallTree(t, svc)

	_, err := svc.PlaceUser(context.Background(), adminActor(""), application.PlaceUserInput{
		UserID:    userD,
		SponsorID: userA,
		Leg:       domain.LegLeft,
	})
	if !errors.Is(err, domain.ErrLegOccupied) {
		t.Fatalf("expected ErrLegOccupied, got %v", err)
	}
}

func TestPlaceUserRejectsDuplicate(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	buildSmallTree(t, svc)

	_, err := svc.PlaceUser(context.Background(), adminActor(""), application.PlaceUserInput{
		UserID:    userB,
		SponsorID: userC,
		Leg:       domain.LegLeft,
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRegisterInvestmentPropagatesToAncestors(t *testing.T) {
	t.Parallel()

	svc, repos := newTestService(t)
	buildSmallTree(t, svc)

	investment, err := svc.RegisterInvestment(context.Background(), adminActor("inv:b:1"), application.RegisterInvestmentInput{
		UserID:         userB,
		PackageID:      "pkg-gold",
		InvestedAmount: 1000,
		Type:           domain.InvestmentTypeNormal,
	})
	if err != nil {
		t.Fatalf("register investment: %v", err)
	}
	if !investment.IsBinaryUpdated {
		t.Fatal("investment should be flagged as propagated")
	}

	a, _ := repos.Nodes.Get(context.Background(), userA)
	if a.LeftBusiness != 1000 || a.RightBusiness != 0 {
		t.Fatalf("A business = %v/%v, want 1000/0", a.LeftBusiness, a.RightBusiness)
	}
	root, _ := repos.Nodes.Get(context.Background(), rootID)
	if root.TotalVolume != 1000 {
		t.Fatalf("root total volume = %v, want 1000", root.TotalVolume)
	}
	if root.LeftBusiness != 0 && root.RightBusiness != 0 {
		t.Fatal("root aggregate must not accumulate leg business")
	}
}

func TestRegisterInvestmentIdempotentReplay(t *testing.T) {
	t.Parallel()

	svc, repos := newTestService(t)
	buildSmallTree(t, svc)

	input := application.RegisterInvestmentInput{
		UserID:         userB,
		PackageID:      "pkg-gold",
		InvestedAmount: 500,
		Type:           domain.InvestmentTypeNormal,
	}
	first, err := svc.RegisterInvestment(context.Background(), adminActor("inv:b:retry"), input)
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	second, err := svc.RegisterInvestment(context.Background(), adminActor("inv:b:retry"), input)
	if err != nil {
		t.Fatalf("replayed register: %v", err)
	}
	if first.InvestmentID != second.InvestmentID {
		t.Fatalf("replay created a new investment: %s vs %s", first.InvestmentID, second.InvestmentID)
	}

	// Volume credited exactly once.
	a, _ := repos.Nodes.Get(context.Background(), userA)
	if a.LeftBusiness != 500 {
		t.Fatalf("A left business = %v, want 500 after replay", a.LeftBusiness)
	}
}

func TestRegisterInvestmentIdempotencyConflict(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	buildSmallTree(t, svc)

	if _, err := svc.RegisterInvestment(context.Background(), adminActor("inv:key"), application.RegisterInvestmentInput{
		UserID:         userB,
		PackageID:      "pkg-gold",
		InvestedAmount: 500,
		Type:           domain.InvestmentTypeNormal,
	}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.RegisterInvestment(context.Background(), adminActor("inv:key"), application.RegisterInvestmentInput{
		UserID:         userB,
		PackageID:      "pkg-gold",
		InvestedAmount: 900,
		Type:           domain.InvestmentTypeNormal,
	})
	if !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
	}
}

func TestRegisterInvestmentRequiresIdempotencyKey(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	buildSmallTree(t, svc)

	_, err := svc.RegisterInvestment(context.Background(), adminActor(""), application.RegisterInvestmentInput{
		UserID:         userB,
		PackageID:      "pkg-gold",
		InvestedAmount: 500,
		Type:           domain.InvestmentTypeNormal,
	})
	if !errors.Is(err, domain.ErrIdempotencyRequired) {
		t.Fatalf("expected ErrIdempotencyRequired, got %v", err)
	}
}

func TestFreeInvestmentMintsNoVolume(t *testing.T) {
	t.Parallel()

	svc, repos := newTestService(t)
	buildSmallTree(t, svc)

	investment, err := svc.RegisterInvestment(context.Background(), adminActor("inv:free"), application.RegisterInvestmentInput{
		UserID:         userB,
		PackageID:      "pkg-promo",
		InvestedAmount: 250,
		Type:           domain.InvestmentTypeFree,
	})
	if err != nil {
		t.Fatalf("register free investment: %v", err)
	}
	if !investment.IsBinaryUpdated {
		t.Fatal("free investment must still be flagged so settlement never waits on it")
	}
	a, _ := repos.Nodes.Get(context.Background(), userA)
	if a.LeftBusiness != 0 {
		t.Fatalf("A left business = %v, want 0 for a free package", a.LeftBusiness)
	}
}

func TestPropagateInvestmentRetryIsBenign(t *testing.T) {
	t.Parallel()

	svc, repos := newTestService(t)
	buildSmallTree(t, svc)

	investment, err := svc.RegisterInvestment(context.Background(), adminActor("inv:b:2"), application.RegisterInvestmentInput{
		UserID:         userB,
		PackageID:      "pkg-gold",
		InvestedAmount: 300,
		Type:           domain.InvestmentTypeNormal,
	})
	if err != nil {
		t.Fatalf("register investment: %v", err)
	}

	result, err := svc.PropagateInvestment(context.Background(), adminActor(""), investment.InvestmentID)
	if err != nil {
		t.Fatalf("retry propagate: %v", err)
	}
	if !result.AlreadyPropagated {
		t.Fatal("expected AlreadyPropagated on retry")
	}
	a, _ := repos.Nodes.Get(context.Background(), userA)
	if a.LeftBusiness != 300 {
		t.Fatalf("A left business = %v, want 300 after retry", a.LeftBusiness)
	}
}

func TestWithdrawalLifecycle(t *testing.T) {
	t.Parallel()

	svc, repos := newTestService(t)
	buildSmallTree(t, svc)

	ctx := context.Background()
	if _, err := repos.Ledger.Apply(ctx, ports.LedgerEntry{
		UserID:     userB,
		WalletType: domain.WalletTypeBinary,
		Type:       domain.TransactionTypeCredit,
		Amount:     200,
	}); err != nil {
		t.Fatalf("seed binary wallet: %v", err)
	}

	memberB := application.Actor{SubjectID: userB, Role: "member"}
	withdrawal, err := svc.RequestWithdrawal(ctx, memberB, userB, domain.WalletTypeBinary, 150)
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	if withdrawal.Status != domain.WithdrawalStatusQueued {
		t.Fatalf("status = %s, want queued", withdrawal.Status)
	}

	wallet, _ := repos.Ledger.GetWallet(ctx, userB, domain.WalletTypeBinary)
	if wallet.Available() != 50 {
		t.Fatalf("available = %v, want 50 while reserved", wallet.Available())
	}

	// A second withdrawal beyond the remaining available must fail.
	if _, err := svc.RequestWithdrawal(ctx, memberB, userB, domain.WalletTypeBinary, 100); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	confirmed, err := svc.ConfirmWithdrawal(ctx, adminActor(""), withdrawal.WithdrawalID)
	if err != nil {
		t.Fatalf("confirm withdrawal: %v", err)
	}
	if confirmed.Status != domain.WithdrawalStatusConfirmed {
		t.Fatalf("status = %s, want confirmed", confirmed.Status)
	}

	wallet, _ = repos.Ledger.GetWallet(ctx, userB, domain.WalletTypeBinary)
	if wallet.Balance != 50 || wallet.Reserved != 0 {
		t.Fatalf("wallet = %v/%v, want balance 50 reserved 0", wallet.Balance, wallet.Reserved)
	}

	// Every balance mutation leaves a contiguous ledger trail.
	txns, _, err := repos.Ledger.ListTransactions(ctx, ports.TransactionFilter{UserID: userB, WalletType: domain.WalletTypeBinary, Limit: 10})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("transaction count = %d, want 2", len(txns))
	}
	for i := 1; i < len(txns); i++ {
		if txns[i].BalanceBefore != txns[i-1].BalanceAfter {
			t.Fatalf("ledger gap at %d: before %v != previous after %v", i, txns[i].BalanceBefore, txns[i-1].BalanceAfter)
		}
	}
}

func TestRejectWithdrawalReleasesReservation(t *testing.T) {
	t.Parallel()

	svc, repos := newTestService(t)
	buildSmallTree(t, svc)

	ctx := context.Background()
	if _, err := repos.Ledger.Apply(ctx, ports.LedgerEntry{
		UserID:     userB,
		WalletType: domain.WalletTypeBinary,
		Type:       domain.TransactionTypeCredit,
		Amount:     100,
	}); err != nil {
		t.Fatalf("seed binary wallet: %v", err)
	}

	memberB := application.Actor{SubjectID: userB, Role: "member"}
	withdrawal, err := svc.RequestWithdrawal(ctx, memberB, userB, domain.WalletTypeBinary, 80)
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	rejected, err := svc.RejectWithdrawal(ctx, adminActor(""), withdrawal.WithdrawalID)
	if err != nil {
		t.Fatalf("reject withdrawal: %v", err)
	}
	if rejected.Status != domain.WithdrawalStatusRejected {
		t.Fatalf("status = %s, want rejected", rejected.Status)
	}
	wallet, _ := repos.Ledger.GetWallet(ctx, userB, domain.WalletTypeBinary)
	if wallet.Balance != 100 || wallet.Reserved != 0 {
		t.Fatalf("wallet = %v/%v, want balance 100 reserved 0 after reject", wallet.Balance, wallet.Reserved)
	}
}

func TestFlushTreeRequiresAdminAndZeroesVolumes(t *testing.T) {
	t.Parallel()

	svc, repos := newTestService(t)
	buildSmallTree(t, svc)

	if _, err := svc.RegisterInvestment(context.Background(), adminActor("inv:flush"), application.RegisterInvestmentInput{
		UserID:         userB,
		PackageID:      "pkg-gold",
		InvestedAmount: 1000,
		Type:           domain.InvestmentTypeNormal,
	}); err != nil {
		t.Fatalf("register investment: %v", err)
	}

	finance := application.Actor{SubjectID: adminID, Role: "finance"}
	if err := svc.FlushTree(context.Background(), finance); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for finance role, got %v", err)
	}
	if err := svc.FlushTree(context.Background(), adminActor("")); err != nil {
		t.Fatalf("flush tree: %v", err)
	}
	a, _ := repos.Nodes.Get(context.Background(), userA)
	if a.LeftBusiness != 0 || a.LeftCarry != 0 {
		t.Fatalf("A volumes = %v/%v, want zeroed", a.LeftBusiness, a.LeftCarry)
	}
}

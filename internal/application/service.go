package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mayanksahu17/binary-system-sub003/internal/domain"
	"github.com/mayanksahu17/binary-system-sub003/internal/ports"
)

// PlaceUser creates the binary node for a newly registered user under the
// sponsor's requested leg and walks the ancestor chain bumping downline
// counts, so the counts stay consistent without ever recounting subtrees.
func (s *Service) PlaceUser(ctx context.Context, actor Actor, input PlaceUserInput) (domain.BinaryNode, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.BinaryNode{}, domain.ErrUnauthorized
	}
	if err := domain.ValidatePlacementInput(input.UserID, input.SponsorID, input.Leg); err != nil {
		return domain.BinaryNode{}, err
	}
	if _, err := s.users.GetUser(ctx, input.UserID); err != nil {
		return domain.BinaryNode{}, fmt.Errorf("user directory lookup: %w", err)
	}

	sponsor, err := s.nodes.Get(ctx, input.SponsorID)
	if err != nil {
		return domain.BinaryNode{}, err
	}
	if _, err := s.nodes.Get(ctx, input.UserID); err == nil {
		return domain.BinaryNode{}, domain.ErrConflict
	} else if !errors.Is(err, domain.ErrNodeNotFound) {
		return domain.BinaryNode{}, err
	}
	if sponsor.Kind == domain.NodeKindRegular && sponsor.ChildOnLeg(input.Leg) != "" {
		return domain.BinaryNode{}, domain.ErrLegOccupied
	}

	now := s.nowFn()
	node := domain.BinaryNode{
		UserID:       input.UserID,
		ParentID:     input.SponsorID,
		Kind:         domain.NodeKindRegular,
		Level:        sponsor.Level + 1,
		CappingLimit: s.cfg.DefaultCappingLimit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.nodes.Create(ctx, node); err != nil {
		return domain.BinaryNode{}, err
	}

	if sponsor.Kind == domain.NodeKindRootAggregate {
		sponsor.ChildrenCount++
	} else if input.Leg == domain.LegLeft {
		sponsor.LeftChildID = input.UserID
	} else {
		sponsor.RightChildID = input.UserID
	}
	sponsor.UpdatedAt = now
	if err := s.nodes.Update(ctx, sponsor); err != nil {
		return domain.BinaryNode{}, err
	}

	if err := s.bumpDownlineCounts(ctx, input.UserID); err != nil {
		return domain.BinaryNode{}, err
	}

	if err := s.audit.Append(ctx, ports.AuditRecord{
		LogID:     uuid.NewString(),
		UserID:    input.UserID,
		Action:    "user_placed",
		CreatedAt: now,
		Metadata: map[string]string{
			"sponsor_id": input.SponsorID,
			"leg":        string(input.Leg),
		},
	}); err != nil {
		return domain.BinaryNode{}, err
	}
	return s.nodes.Get(ctx, input.UserID)
}

// bumpDownlineCounts walks from the new node to the root incrementing the
// downline counter of whichever leg the walk came up through.
func (s *Service) bumpDownlineCounts(ctx context.Context, userID string) error {
	childID := userID
	for depth := 0; depth < s.cfg.MaxTreeDepth; depth++ {
		child, err := s.nodes.Get(ctx, childID)
		if err != nil {
			return err
		}
		if child.IsRoot() {
			return nil
		}
		parent, err := s.nodes.Get(ctx, child.ParentID)
		if err != nil {
			if errors.Is(err, domain.ErrNodeNotFound) {
				return domain.ErrTreeIntegrity
			}
			return err
		}
		if parent.Kind == domain.NodeKindRegular {
			leg, legErr := parent.LegOf(childID)
			if legErr != nil {
				return legErr
			}
			if leg == domain.LegLeft {
				parent.LeftDownlines++
			} else {
				parent.RightDownlines++
			}
			parent.UpdatedAt = s.nowFn()
			if err := s.nodes.Update(ctx, parent); err != nil {
				return err
			}
		}
		childID = parent.UserID
	}
	return domain.ErrTreeIntegrity
}

func (s *Service) GetNode(ctx context.Context, actor Actor, userID string) (domain.BinaryNode, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.BinaryNode{}, domain.ErrUnauthorized
	}
	userID = strings.TrimSpace(userID)
	if !actor.isOperator() && actor.SubjectID != userID {
		return domain.BinaryNode{}, domain.ErrForbidden
	}
	return s.nodes.Get(ctx, userID)
}

// RegisterInvestment records the purchase, debits the investment wallet and
// propagates the amount up the ancestor chain. The idempotency key makes
// gateway retries replay the stored response instead of double-propagating.
func (s *Service) RegisterInvestment(ctx context.Context, actor Actor, input RegisterInvestmentInput) (domain.Investment, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Investment{}, domain.ErrUnauthorized
	}
	if !actor.isOperator() && actor.SubjectID != input.UserID {
		return domain.Investment{}, domain.ErrForbidden
	}
	if strings.TrimSpace(actor.IdempotencyKey) == "" {
		return domain.Investment{}, domain.ErrIdempotencyRequired
	}
	return s.registerWithKey(ctx, input, actor.IdempotencyKey)
}

func (s *Service) registerWithKey(ctx context.Context, input RegisterInvestmentInput, idempotencyKey string) (domain.Investment, error) {
	if err := domain.ValidateInvestmentInput(input.UserID, input.PackageID, input.InvestedAmount, input.Type); err != nil {
		return domain.Investment{}, err
	}
	if _, err := s.nodes.Get(ctx, input.UserID); err != nil {
		return domain.Investment{}, err
	}

	now := s.nowFn()
	requestHash := hashPayload(input)
	existing, err := s.idempotency.Get(ctx, idempotencyKey, now)
	if err != nil {
		return domain.Investment{}, err
	}
	if existing != nil {
		if existing.RequestHash != requestHash {
			return domain.Investment{}, domain.ErrIdempotencyConflict
		}
		var cached domain.Investment
		if err := json.Unmarshal(existing.ResponseBody, &cached); err != nil {
			return domain.Investment{}, err
		}
		return cached, nil
	}
	if err := s.idempotency.Reserve(ctx, idempotencyKey, requestHash, now.Add(s.cfg.IdempotencyTTL)); err != nil {
		return domain.Investment{}, err
	}

	investment := domain.Investment{
		InvestmentID:   uuid.NewString(),
		UserID:         input.UserID,
		PackageID:      input.PackageID,
		InvestedAmount: input.InvestedAmount,
		DepositAmount:  input.DepositAmount,
		Type:           input.Type,
		Status:         domain.InvestmentStatusActive,
		CreatedAt:      now,
		ExpiresOn:      input.ExpiresOn,
		UpdatedAt:      now,
	}
	if err := s.investments.Save(ctx, investment); err != nil {
		return domain.Investment{}, err
	}

	if investment.DepositAmount > 0 {
		if _, err := s.creditWallet(ctx, ports.LedgerEntry{
			UserID:     investment.UserID,
			WalletType: domain.WalletTypeInvestment,
			Type:       domain.TransactionTypeCredit,
			Amount:     investment.DepositAmount,
			Reference:  investment.InvestmentID,
			Meta:       map[string]string{"package_id": investment.PackageID},
		}); err != nil {
			return domain.Investment{}, err
		}
	}

	if _, err := s.propagateInvestment(ctx, investment); err != nil && !errors.Is(err, domain.ErrAlreadyPropagated) {
		return domain.Investment{}, err
	}

	if err := s.audit.Append(ctx, ports.AuditRecord{
		LogID:     uuid.NewString(),
		UserID:    investment.UserID,
		Action:    "investment_registered",
		Amount:    investment.InvestedAmount,
		CreatedAt: now,
		Metadata: map[string]string{
			"investment_id": investment.InvestmentID,
			"package_id":    investment.PackageID,
			"type":          string(investment.Type),
		},
	}); err != nil {
		return domain.Investment{}, err
	}
	if err := s.FlushOutbox(ctx); err != nil {
		return domain.Investment{}, err
	}

	stored, err := s.investments.Get(ctx, investment.InvestmentID)
	if err != nil {
		return domain.Investment{}, err
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		return domain.Investment{}, err
	}
	if err := s.idempotency.Complete(ctx, idempotencyKey, 201, payload, s.nowFn()); err != nil {
		return domain.Investment{}, err
	}
	return stored, nil
}

// PropagateInvestment is the retry entry point for crash recovery: invoking
// it on an already-propagated investment is a benign no-op.
func (s *Service) PropagateInvestment(ctx context.Context, actor Actor, investmentID string) (PropagationResult, error) {
	if !actor.isOperator() {
		return PropagationResult{}, domain.ErrForbidden
	}
	investment, err := s.investments.Get(ctx, strings.TrimSpace(investmentID))
	if err != nil {
		return PropagationResult{}, err
	}
	result, err := s.propagateInvestment(ctx, investment)
	if errors.Is(err, domain.ErrAlreadyPropagated) {
		return PropagationResult{InvestmentID: investment.InvestmentID, AlreadyPropagated: true}, nil
	}
	if err != nil {
		return PropagationResult{}, err
	}
	return result, s.FlushOutbox(ctx)
}

// propagateInvestment walks parent pointers from the investing user to the
// root, building the leg-credit set, then hands the whole unit to the
// storage adapter which applies it atomically with the fencing-flag flip.
func (s *Service) propagateInvestment(ctx context.Context, investment domain.Investment) (PropagationResult, error) {
	if investment.IsBinaryUpdated {
		return PropagationResult{}, domain.ErrAlreadyPropagated
	}
	if !investment.GeneratesBusinessVolume() {
		// Free packages flip the flag so settlement never waits on them,
		// but credit no volume.
		if err := s.propagations.ApplyPropagation(ctx, ports.PropagationUnit{InvestmentID: investment.InvestmentID}); err != nil {
			return PropagationResult{}, err
		}
		return PropagationResult{InvestmentID: investment.InvestmentID}, nil
	}

	credits, err := s.collectAncestorCredits(ctx, investment.UserID, investment.InvestedAmount)
	if err != nil {
		return PropagationResult{}, err
	}
	unit := ports.PropagationUnit{InvestmentID: investment.InvestmentID, Credits: credits}
	if err := s.propagations.ApplyPropagation(ctx, unit); err != nil {
		return PropagationResult{}, err
	}

	now := s.nowFn()
	if err := s.enqueueInvestmentPropagated(ctx, investment, len(credits), now); err != nil {
		return PropagationResult{}, err
	}
	return PropagationResult{
		InvestmentID:      investment.InvestmentID,
		Amount:            investment.InvestedAmount,
		AncestorsCredited: len(credits),
	}, nil
}

func (s *Service) collectAncestorCredits(ctx context.Context, userID string, amount float64) ([]ports.LegCredit, error) {
	credits := make([]ports.LegCredit, 0, 8)
	childID := userID
	for depth := 0; depth < s.cfg.MaxTreeDepth; depth++ {
		child, err := s.nodes.Get(ctx, childID)
		if err != nil {
			return nil, err
		}
		if child.IsRoot() {
			return credits, nil
		}
		parent, err := s.nodes.Get(ctx, child.ParentID)
		if err != nil {
			if errors.Is(err, domain.ErrNodeNotFound) {
				return nil, domain.ErrTreeIntegrity
			}
			return nil, err
		}
		if parent.Kind == domain.NodeKindRootAggregate {
			credits = append(credits, ports.LegCredit{UserID: parent.UserID, Amount: amount, RootAggregate: true})
		} else {
			leg, legErr := parent.LegOf(childID)
			if legErr != nil {
				return nil, legErr
			}
			credits = append(credits, ports.LegCredit{UserID: parent.UserID, Leg: leg, Amount: amount})
		}
		childID = parent.UserID
	}
	return nil, domain.ErrTreeIntegrity
}

func (s *Service) GetInvestment(ctx context.Context, actor Actor, investmentID string) (domain.Investment, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Investment{}, domain.ErrUnauthorized
	}
	investment, err := s.investments.Get(ctx, strings.TrimSpace(investmentID))
	if err != nil {
		return domain.Investment{}, err
	}
	if !actor.isOperator() && investment.UserID != actor.SubjectID {
		return domain.Investment{}, domain.ErrForbidden
	}
	return investment, nil
}

func (s *Service) ListSettlements(ctx context.Context, actor Actor, userID string, limit, offset int) (SettlementHistoryOutput, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return SettlementHistoryOutput{}, domain.ErrUnauthorized
	}
	userID = strings.TrimSpace(userID)
	if !actor.isOperator() {
		userID = actor.SubjectID
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.settlements.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return SettlementHistoryOutput{}, err
	}
	return SettlementHistoryOutput{Items: items, Total: total}, nil
}

// FlushTree is the destructive admin reset of all business and carry
// accumulators. Settlement and transaction history are left intact.
func (s *Service) FlushTree(ctx context.Context, actor Actor) error {
	if actor.Role != "admin" {
		return domain.ErrForbidden
	}
	if err := s.nodes.FlushVolumes(ctx); err != nil {
		return err
	}
	return s.audit.Append(ctx, ports.AuditRecord{
		LogID:     uuid.NewString(),
		UserID:    actor.SubjectID,
		Action:    "tree_flushed",
		CreatedAt: s.nowFn(),
	})
}

func hashPayload(value interface{}) string {
	blob, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

package postgres

import (
	"encoding/json"

	"github.com/mayanksahu17/binary-system-sub003/internal/domain"
	"github.com/mayanksahu17/binary-system-sub003/internal/ports"
)

func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func marshalMeta(meta map[string]string) *string {
	if len(meta) == 0 {
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	s := string(raw)
	return &s
}

func unmarshalMeta(raw *string) map[string]string {
	if raw == nil || *raw == "" {
		return nil
	}
	var meta map[string]string
	if err := json.Unmarshal([]byte(*raw), &meta); err != nil {
		return nil
	}
	return meta
}

func toNodeModel(node domain.BinaryNode) nodeModel {
	return nodeModel{
		UserID:         node.UserID,
		ParentID:       strOrNil(node.ParentID),
		LeftChildID:    strOrNil(node.LeftChildID),
		RightChildID:   strOrNil(node.RightChildID),
		Kind:           string(node.Kind),
		Level:          node.Level,
		LeftBusiness:   node.LeftBusiness,
		RightBusiness:  node.RightBusiness,
		LeftCarry:      node.LeftCarry,
		RightCarry:     node.RightCarry,
		LeftDownlines:  node.LeftDownlines,
		RightDownlines: node.RightDownlines,
		ChildrenCount:  node.ChildrenCount,
		TotalVolume:    node.TotalVolume,
		CappingLimit:   node.CappingLimit,
		Version:        node.Version,
		CreatedAt:      node.CreatedAt,
		UpdatedAt:      node.UpdatedAt,
	}
}

func toDomainNode(rec nodeModel) domain.BinaryNode {
	return domain.BinaryNode{
		UserID:         rec.UserID,
		ParentID:       strOrEmpty(rec.ParentID),
		LeftChildID:    strOrEmpty(rec.LeftChildID),
		RightChildID:   strOrEmpty(rec.RightChildID),
		Kind:           domain.NodeKind(rec.Kind),
		Level:          rec.Level,
		LeftBusiness:   rec.LeftBusiness,
		RightBusiness:  rec.RightBusiness,
		LeftCarry:      rec.LeftCarry,
		RightCarry:     rec.RightCarry,
		LeftDownlines:  rec.LeftDownlines,
		RightDownlines: rec.RightDownlines,
		ChildrenCount:  rec.ChildrenCount,
		TotalVolume:    rec.TotalVolume,
		CappingLimit:   rec.CappingLimit,
		Version:        rec.Version,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

func toInvestmentModel(investment domain.Investment) investmentModel {
	return investmentModel{
		InvestmentID:    investment.InvestmentID,
		UserID:          investment.UserID,
		PackageID:       investment.PackageID,
		InvestedAmount:  investment.InvestedAmount,
		DepositAmount:   investment.DepositAmount,
		Type:            string(investment.Type),
		Status:          string(investment.Status),
		IsBinaryUpdated: investment.IsBinaryUpdated,
		IsReferralPaid:  investment.IsReferralPaid,
		CreatedAt:       investment.CreatedAt,
		ExpiresOn:       investment.ExpiresOn,
		UpdatedAt:       investment.UpdatedAt,
	}
}

func toDomainInvestment(rec investmentModel) domain.Investment {
	return domain.Investment{
		InvestmentID:    rec.InvestmentID,
		UserID:          rec.UserID,
		PackageID:       rec.PackageID,
		InvestedAmount:  rec.InvestedAmount,
		DepositAmount:   rec.DepositAmount,
		Type:            domain.InvestmentType(rec.Type),
		Status:          domain.InvestmentStatus(rec.Status),
		IsBinaryUpdated: rec.IsBinaryUpdated,
		IsReferralPaid:  rec.IsReferralPaid,
		CreatedAt:       rec.CreatedAt,
		ExpiresOn:       rec.ExpiresOn,
		UpdatedAt:       rec.UpdatedAt,
	}
}

func toDomainWallet(rec walletModel) domain.Wallet {
	return domain.Wallet{
		UserID:    rec.UserID,
		Type:      domain.WalletType(rec.Type),
		Balance:   rec.Balance,
		Reserved:  rec.Reserved,
		Currency:  rec.Currency,
		UpdatedAt: rec.UpdatedAt,
	}
}

func toDomainTransaction(rec transactionModel) domain.Transaction {
	return domain.Transaction{
		TransactionID: rec.TransactionID,
		UserID:        rec.UserID,
		WalletType:    domain.WalletType(rec.WalletType),
		Type:          domain.TransactionType(rec.Type),
		Amount:        rec.Amount,
		BalanceBefore: rec.BalanceBefore,
		BalanceAfter:  rec.BalanceAfter,
		Status:        domain.TransactionStatus(rec.Status),
		Reference:     rec.Reference,
		Meta:          unmarshalMeta(rec.Meta),
		CreatedAt:     rec.CreatedAt,
	}
}

func toDomainWithdrawal(rec withdrawalModel) domain.Withdrawal {
	return domain.Withdrawal{
		WithdrawalID: rec.WithdrawalID,
		UserID:       rec.UserID,
		WalletType:   domain.WalletType(rec.WalletType),
		Amount:       rec.Amount,
		Status:       domain.WithdrawalStatus(rec.Status),
		QueuedAt:     rec.QueuedAt,
		ResolvedAt:   rec.ResolvedAt,
	}
}

func toSettlementModel(settlement domain.Settlement) settlementModel {
	return settlementModel{
		SettlementID:   settlement.SettlementID,
		UserID:         settlement.UserID,
		CycleDate:      settlement.CycleDate,
		EffectiveLeft:  settlement.EffectiveLeft,
		EffectiveRight: settlement.EffectiveRight,
		MatchedVolume:  settlement.MatchedVolume,
		RawBonus:       settlement.RawBonus,
		PayableBonus:   settlement.PayableBonus,
		NewLeftCarry:   settlement.NewLeftCarry,
		NewRightCarry:  settlement.NewRightCarry,
		Capped:         settlement.Capped,
		SettledAt:      settlement.SettledAt,
	}
}

func toDomainSettlement(rec settlementModel) domain.Settlement {
	return domain.Settlement{
		SettlementID:   rec.SettlementID,
		UserID:         rec.UserID,
		CycleDate:      rec.CycleDate,
		EffectiveLeft:  rec.EffectiveLeft,
		EffectiveRight: rec.EffectiveRight,
		MatchedVolume:  rec.MatchedVolume,
		RawBonus:       rec.RawBonus,
		PayableBonus:   rec.PayableBonus,
		NewLeftCarry:   rec.NewLeftCarry,
		NewRightCarry:  rec.NewRightCarry,
		Capped:         rec.Capped,
		SettledAt:      rec.SettledAt,
	}
}

func toBatchRunModel(run ports.BatchRun) batchRunModel {
	var failures *string
	if len(run.Failures) > 0 {
		if raw, err := json.Marshal(run.Failures); err == nil {
			s := string(raw)
			failures = &s
		}
	}
	return batchRunModel{
		BatchDate:      run.BatchDate,
		UsersProcessed: run.UsersProcessed,
		BonusesPaid:    run.BonusesPaid,
		ROIAccrued:     run.ROIAccrued,
		ReferralsPaid:  run.ReferralsPaid,
		Skipped:        run.Skipped,
		Failures:       failures,
		StartedAt:      run.StartedAt,
		CompletedAt:    run.CompletedAt,
	}
}

func toPortsBatchRun(rec batchRunModel) ports.BatchRun {
	run := ports.BatchRun{
		BatchDate:      rec.BatchDate,
		UsersProcessed: rec.UsersProcessed,
		BonusesPaid:    rec.BonusesPaid,
		ROIAccrued:     rec.ROIAccrued,
		ReferralsPaid:  rec.ReferralsPaid,
		Skipped:        rec.Skipped,
		StartedAt:      rec.StartedAt,
		CompletedAt:    rec.CompletedAt,
	}
	if rec.Failures != nil && *rec.Failures != "" {
		_ = json.Unmarshal([]byte(*rec.Failures), &run.Failures)
	}
	return run
}

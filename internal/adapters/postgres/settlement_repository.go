package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/mayanksahu17/binary-system-sub003/internal/domain"
	"github.com/mayanksahu17/binary-system-sub003/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type settlementRepository struct {
	db *gorm.DB
}

// Save upserts on (user_id, cycle_date), the table's unique key, so a
// forced replay overwrites the day's row instead of violating the
// constraint with a second one.
func (r *settlementRepository) Save(ctx context.Context, settlement domain.Settlement) error {
	rec := toSettlementModel(settlement)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "cycle_date"}},
			UpdateAll: true,
		}).
		Create(&rec).Error
}

func (r *settlementRepository) GetByUserAndDate(ctx context.Context, userID, cycleDate string) (domain.Settlement, error) {
	var rec settlementModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND cycle_date = ?", userID, cycleDate).
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Settlement{}, domain.ErrNotFound
		}
		return domain.Settlement{}, err
	}
	return toDomainSettlement(rec), nil
}

func (r *settlementRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Settlement, int, error) {
	q := r.db.WithContext(ctx).Model(&settlementModel{}).Where("user_id = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var recs []settlementModel
	if err := q.Order("settled_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&recs).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.Settlement, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toDomainSettlement(rec))
	}
	return out, int(total), nil
}

type settlementApplier struct {
	db *gorm.DB
}

// ApplySettlement lands the node consumption, the bonus credit, and the
// settlement row in one database transaction. The node write guards on the
// version the caller read, so a lost race rolls the whole unit back.
func (a *settlementApplier) ApplySettlement(ctx context.Context, unit ports.SettlementUnit) (domain.Transaction, error) {
	var result domain.Transaction
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&nodeModel{}).
			Where("user_id = ? AND version = ?", unit.Node.UserID, unit.Node.Version).
			Updates(map[string]any{
				"left_business":  unit.Node.LeftBusiness,
				"right_business": unit.Node.RightBusiness,
				"left_carry":     unit.Node.LeftCarry,
				"right_carry":    unit.Node.RightCarry,
				"version":        unit.Node.Version + 1,
				"updated_at":     unit.Node.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&nodeModel{}).Where("user_id = ?", unit.Node.UserID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrNodeNotFound
			}
			return domain.ErrConflict
		}
		if unit.Credit != nil {
			applied, err := applyLedgerEntry(tx, *unit.Credit)
			if err != nil {
				return err
			}
			result = applied
		}
		rec := toSettlementModel(unit.Settlement)
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "cycle_date"}},
			UpdateAll: true,
		}).Create(&rec).Error
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return result, nil
}

type batchRunRepository struct {
	db *gorm.DB
}

func (r *batchRunRepository) Get(ctx context.Context, batchDate string) (*ports.BatchRun, error) {
	var rec batchRunModel
	if err := r.db.WithContext(ctx).Where("batch_date = ?", batchDate).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	run := toPortsBatchRun(rec)
	return &run, nil
}

func (r *batchRunRepository) Save(ctx context.Context, run ports.BatchRun) error {
	rec := toBatchRunModel(run)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "batch_date"}},
			UpdateAll: true,
		}).
		Create(&rec).Error
}

type accrualRepository struct {
	db *gorm.DB
}

func (r *accrualRepository) HasAccrued(ctx context.Context, investmentID, cycleDate string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&accrualModel{}).
		Where("investment_id = ? AND cycle_date = ?", investmentID, cycleDate).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *accrualRepository) MarkAccrued(ctx context.Context, investmentID, cycleDate string, amount float64) error {
	rec := accrualModel{
		InvestmentID: investmentID,
		CycleDate:    cycleDate,
		Amount:       amount,
		CreatedAt:    time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec).Error
}

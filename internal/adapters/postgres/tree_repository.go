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

type nodeRepository struct {
	db *gorm.DB
}

func (r *nodeRepository) Create(ctx context.Context, node domain.BinaryNode) error {
	node.Version = 1
	rec := toNodeModel(node)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *nodeRepository) Get(ctx context.Context, userID string) (domain.BinaryNode, error) {
	var rec nodeModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.BinaryNode{}, domain.ErrNodeNotFound
		}
		return domain.BinaryNode{}, err
	}
	return toDomainNode(rec), nil
}

// Update guards on the caller's version so a settlement racing a placement
// loses cleanly instead of clobbering counters.
func (r *nodeRepository) Update(ctx context.Context, node domain.BinaryNode) error {
	rec := toNodeModel(node)
	rec.Version = node.Version + 1
	res := r.db.WithContext(ctx).
		Model(&nodeModel{}).
		Where("user_id = ? AND version = ?", node.UserID, node.Version).
		Updates(map[string]any{
			"parent_id":       rec.ParentID,
			"left_child_id":   rec.LeftChildID,
			"right_child_id":  rec.RightChildID,
			"level":           rec.Level,
			"left_business":   rec.LeftBusiness,
			"right_business":  rec.RightBusiness,
			"left_carry":      rec.LeftCarry,
			"right_carry":     rec.RightCarry,
			"left_downlines":  rec.LeftDownlines,
			"right_downlines": rec.RightDownlines,
			"children_count":  rec.ChildrenCount,
			"total_volume":    rec.TotalVolume,
			"capping_limit":   rec.CappingLimit,
			"version":         rec.Version,
			"updated_at":      rec.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&nodeModel{}).Where("user_id = ?", node.UserID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNodeNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

func (r *nodeRepository) ListAll(ctx context.Context) ([]domain.BinaryNode, error) {
	var recs []nodeModel
	if err := r.db.WithContext(ctx).Order("created_at ASC, user_id ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]domain.BinaryNode, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toDomainNode(rec))
	}
	return out, nil
}

func (r *nodeRepository) FlushVolumes(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&nodeModel{}).
		Where("1 = 1").
		Updates(map[string]any{
			"left_business":  0,
			"right_business": 0,
			"left_carry":     0,
			"right_carry":    0,
			"total_volume":   0,
			"version":        gorm.Expr("version + 1"),
			"updated_at":     time.Now().UTC(),
		}).Error
}

type propagationApplier struct {
	db *gorm.DB
}

// ApplyPropagation runs the whole unit in one database transaction. The
// investment row is locked first so a concurrent retry of the same
// investment blocks, re-reads the flag, and backs out with nothing written.
func (a *propagationApplier) ApplyPropagation(ctx context.Context, unit ports.PropagationUnit) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var investment investmentModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("investment_id = ?", unit.InvestmentID).
			Take(&investment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if investment.IsBinaryUpdated {
			return domain.ErrAlreadyPropagated
		}

		now := time.Now().UTC()
		for _, credit := range unit.Credits {
			updates := map[string]any{
				"version":    gorm.Expr("version + 1"),
				"updated_at": now,
			}
			switch {
			case credit.RootAggregate:
				updates["total_volume"] = gorm.Expr("round((total_volume + ?)::numeric, 4)", credit.Amount)
			case credit.Leg == domain.LegLeft:
				updates["left_business"] = gorm.Expr("round((left_business + ?)::numeric, 4)", credit.Amount)
			default:
				updates["right_business"] = gorm.Expr("round((right_business + ?)::numeric, 4)", credit.Amount)
			}
			res := tx.Model(&nodeModel{}).Where("user_id = ?", credit.UserID).Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrNodeNotFound
			}
		}

		return tx.Model(&investmentModel{}).
			Where("investment_id = ?", unit.InvestmentID).
			Updates(map[string]any{
				"is_binary_updated": true,
				"updated_at":        now,
			}).Error
	})
}

type investmentRepository struct {
	db *gorm.DB
}

func (r *investmentRepository) Save(ctx context.Context, investment domain.Investment) error {
	rec := toInvestmentModel(investment)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "investment_id"}},
			UpdateAll: true,
		}).
		Create(&rec).Error
}

func (r *investmentRepository) Get(ctx context.Context, investmentID string) (domain.Investment, error) {
	var rec investmentModel
	if err := r.db.WithContext(ctx).Where("investment_id = ?", investmentID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Investment{}, domain.ErrNotFound
		}
		return domain.Investment{}, err
	}
	return toDomainInvestment(rec), nil
}

func (r *investmentRepository) ListByUser(ctx context.Context, userID string) ([]domain.Investment, error) {
	var recs []investmentModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Investment, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toDomainInvestment(rec))
	}
	return out, nil
}

func (r *investmentRepository) ListActive(ctx context.Context, now time.Time) ([]domain.Investment, error) {
	q := r.db.WithContext(ctx).Where("status = ?", string(domain.InvestmentStatusActive))
	if !now.IsZero() {
		// Zero expires_on means a perpetual package.
		q = q.Where("(expires_on > ? OR expires_on = ?)", now, time.Time{})
	}
	var recs []investmentModel
	if err := q.Order("created_at ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Investment, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toDomainInvestment(rec))
	}
	return out, nil
}

func (r *investmentRepository) MarkReferralPaid(ctx context.Context, investmentID string) error {
	res := r.db.WithContext(ctx).
		Model(&investmentModel{}).
		Where("investment_id = ?", investmentID).
		Updates(map[string]any{
			"is_referral_paid": true,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *investmentRepository) MarkExpired(ctx context.Context, investmentID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&investmentModel{}).
		Where("investment_id = ?", investmentID).
		Updates(map[string]any{
			"status":     string(domain.InvestmentStatusExpired),
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

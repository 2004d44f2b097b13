package domain

import (
	"strings"
	"time"
)

type InvestmentType string
type InvestmentStatus string

const (
	InvestmentTypeNormal   InvestmentType = "normal"
	InvestmentTypeVoucher  InvestmentType = "voucher"
	InvestmentTypeFree     InvestmentType = "free"
	InvestmentTypePowerleg InvestmentType = "powerleg"
)

const (
	InvestmentStatusActive  InvestmentStatus = "active"
	InvestmentStatusExpired InvestmentStatus = "expired"
)

// Investment is immutable once written except for the propagation and
// referral fencing flags and the expiry-driven status transition.
type Investment struct {
	InvestmentID    string           `json:"investment_id"`
	UserID          string           `json:"user_id"`
	PackageID       string           `json:"package_id"`
	InvestedAmount  float64          `json:"invested_amount"`
	DepositAmount   float64          `json:"deposit_amount"`
	Type            InvestmentType   `json:"type"`
	Status          InvestmentStatus `json:"status"`
	IsBinaryUpdated bool             `json:"is_binary_updated"`
	IsReferralPaid  bool             `json:"is_referral_paid"`
	CreatedAt       time.Time        `json:"created_at"`
	ExpiresOn       time.Time        `json:"expires_on"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// GeneratesBusinessVolume reports whether the investment counts toward
// ancestor leg volume. Promotional free packages do not mint matching volume.
func (i Investment) GeneratesBusinessVolume() bool {
	return i.Type != InvestmentTypeFree
}

// PaysReferral mirrors the business-volume rule for sponsor commissions.
func (i Investment) PaysReferral() bool {
	return i.Type != InvestmentTypeFree
}

func (i Investment) IsActive(now time.Time) bool {
	if i.Status != InvestmentStatusActive {
		return false
	}
	return i.ExpiresOn.IsZero() || now.Before(i.ExpiresOn)
}

func ValidateInvestmentInput(userID, packageID string, amount float64, investmentType InvestmentType) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	if strings.TrimSpace(packageID) == "" {
		return ErrInvalidInput
	}
	if amount <= 0 {
		return ErrInvalidInput
	}
	switch investmentType {
	case InvestmentTypeNormal, InvestmentTypeVoucher, InvestmentTypeFree, InvestmentTypePowerleg:
	default:
		return ErrInvalidInput
	}
	return nil
}

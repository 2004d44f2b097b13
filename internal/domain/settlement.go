package domain

import (
	"math"
	"time"
)

// SettlementInput is the per-node state consumed by one matching cycle.
type SettlementInput struct {
	LeftBusiness  float64
	RightBusiness float64
	LeftCarry     float64
	RightCarry    float64
	BinaryRate    float64
	CappingLimit  float64
}

// SettlementOutcome is the result of one matching cycle. Business counters
// always reset to zero afterwards; only the carries survive into the next
// cycle.
type SettlementOutcome struct {
	EffectiveLeft  float64
	EffectiveRight float64
	MatchedVolume  float64
	RawBonus       float64
	PayableBonus   float64
	NewLeftCarry   float64
	NewRightCarry  float64
	Capped         bool
}

// SettleVolumes runs the binary matching arithmetic:
//
//	effective leg = current-period business + carried-over unmatched volume
//	matched       = min(effectiveLeft, effectiveRight)
//	bonus         = matched * rate, clamped to the capping limit
//
// The winning leg keeps effective-matched as its new carry; the losing (or
// tied) leg's carry resets to zero. Bonus clamped away by the capping limit
// is forfeited, not deferred.
func SettleVolumes(in SettlementInput) SettlementOutcome {
	effectiveLeft := RoundCurrency(in.LeftBusiness+in.LeftCarry, 4)
	effectiveRight := RoundCurrency(in.RightBusiness+in.RightCarry, 4)

	matched := math.Min(effectiveLeft, effectiveRight)
	rawBonus := RoundCurrency(matched*in.BinaryRate, 4)

	payable := rawBonus
	capped := false
	if in.CappingLimit > 0 && rawBonus > in.CappingLimit {
		payable = in.CappingLimit
		capped = true
	}

	out := SettlementOutcome{
		EffectiveLeft:  effectiveLeft,
		EffectiveRight: effectiveRight,
		MatchedVolume:  matched,
		RawBonus:       rawBonus,
		PayableBonus:   payable,
		Capped:         capped,
	}
	if effectiveLeft > effectiveRight {
		out.NewLeftCarry = RoundCurrency(effectiveLeft-matched, 4)
	} else if effectiveRight > effectiveLeft {
		out.NewRightCarry = RoundCurrency(effectiveRight-matched, 4)
	}
	return out
}

// Settlement is the persisted audit record of one user's matching cycle.
type Settlement struct {
	SettlementID   string    `json:"settlement_id"`
	UserID         string    `json:"user_id"`
	CycleDate      string    `json:"cycle_date"`
	EffectiveLeft  float64   `json:"effective_left"`
	EffectiveRight float64   `json:"effective_right"`
	MatchedVolume  float64   `json:"matched_volume"`
	RawBonus       float64   `json:"raw_bonus"`
	PayableBonus   float64   `json:"payable_bonus"`
	NewLeftCarry   float64   `json:"new_left_carry"`
	NewRightCarry  float64   `json:"new_right_carry"`
	Capped         bool      `json:"capped"`
	SettledAt      time.Time `json:"settled_at"`
}

// CycleDateFormat keys the per-user-per-day settlement fence.
const CycleDateFormat = "2006-01-02"

func CycleDate(t time.Time) string {
	return t.UTC().Format(CycleDateFormat)
}

// ReferralBonus is a flat percentage of the invested amount per upline level.
func ReferralBonus(investedAmount, levelRate float64) float64 {
	if investedAmount <= 0 || levelRate <= 0 {
		return 0
	}
	return RoundCurrency(investedAmount*levelRate, 4)
}

// DailyROI accrues a fixed daily return on an active investment.
func DailyROI(investedAmount, dailyRate float64) float64 {
	if investedAmount <= 0 || dailyRate <= 0 {
		return 0
	}
	return RoundCurrency(investedAmount*dailyRate, 4)
}

func RoundCurrency(value float64, places int) float64 {
	if places < 0 {
		places = 0
	}
	factor := math.Pow(10, float64(places))
	return math.Round(value*factor) / factor
}

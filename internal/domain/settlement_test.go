package domain

import (
	"math"
	"testing"
	"time"
)

func TestSettleVolumesWeakerLegPaysStrongerCarries(t *testing.T) {
	t.Parallel()

	out := SettleVolumes(SettlementInput{
		LeftBusiness:  100,
		RightBusiness: 500,
		BinaryRate:    0.10,
		CappingLimit:  1000,
	})
	if out.MatchedVolume != 100 {
		t.Fatalf("matched volume = %v, want 100", out.MatchedVolume)
	}
	if out.PayableBonus != 10 {
		t.Fatalf("payable bonus = %v, want 10", out.PayableBonus)
	}
	if out.NewLeftCarry != 0 || out.NewRightCarry != 400 {
		t.Fatalf("carries = %v/%v, want 0/400", out.NewLeftCarry, out.NewRightCarry)
	}
	if out.Capped {
		t.Fatal("bonus should not be capped")
	}
}

func TestSettleVolumesNothingLeftAfterSettlement(t *testing.T) {
	t.Parallel()

	first := SettleVolumes(SettlementInput{
		LeftBusiness:  100,
		RightBusiness: 500,
		BinaryRate:    0.10,
	})
	// The next cycle starts with zero business and only the carry.
	second := SettleVolumes(SettlementInput{
		LeftCarry:  first.NewLeftCarry,
		RightCarry: first.NewRightCarry,
		BinaryRate: 0.10,
	})
	if second.MatchedVolume != 0 || second.PayableBonus != 0 {
		t.Fatalf("repeat settlement paid %v on matched %v, want zero", second.PayableBonus, second.MatchedVolume)
	}
	if second.NewRightCarry != 400 {
		t.Fatalf("unmatched carry = %v, want preserved 400", second.NewRightCarry)
	}
}

func TestSettleVolumesCarryCombinesWithNewBusiness(t *testing.T) {
	t.Parallel()

	out := SettleVolumes(SettlementInput{
		LeftBusiness: 400,
		LeftCarry:    400,
		RightCarry:   400,
		BinaryRate:   0.10,
		CappingLimit: 1000,
	})
	if out.EffectiveLeft != 800 || out.EffectiveRight != 400 {
		t.Fatalf("effective volumes = %v/%v, want 800/400", out.EffectiveLeft, out.EffectiveRight)
	}
	if out.MatchedVolume != 400 {
		t.Fatalf("matched volume = %v, want 400", out.MatchedVolume)
	}
	if out.PayableBonus != 40 {
		t.Fatalf("payable bonus = %v, want 40", out.PayableBonus)
	}
	if out.NewLeftCarry != 400 || out.NewRightCarry != 0 {
		t.Fatalf("carries = %v/%v, want 400/0", out.NewLeftCarry, out.NewRightCarry)
	}
}

func TestSettleVolumesCappingForfeitsExcess(t *testing.T) {
	t.Parallel()

	out := SettleVolumes(SettlementInput{
		LeftBusiness:  50000,
		RightBusiness: 50000,
		BinaryRate:    0.10,
		CappingLimit:  1000,
	})
	if out.RawBonus != 5000 {
		t.Fatalf("raw bonus = %v, want 5000", out.RawBonus)
	}
	if out.PayableBonus != 1000 {
		t.Fatalf("payable bonus = %v, want capped 1000", out.PayableBonus)
	}
	if !out.Capped {
		t.Fatal("expected capped outcome")
	}
	// The excess is forfeited, not carried.
	if out.NewLeftCarry != 0 || out.NewRightCarry != 0 {
		t.Fatalf("carries = %v/%v, want 0/0", out.NewLeftCarry, out.NewRightCarry)
	}
}

func TestSettleVolumesZeroCappingMeansUncapped(t *testing.T) {
	t.Parallel()

	out := SettleVolumes(SettlementInput{
		LeftBusiness:  50000,
		RightBusiness: 50000,
		BinaryRate:    0.10,
	})
	if out.PayableBonus != 5000 || out.Capped {
		t.Fatalf("bonus = %v capped=%t, want 5000 uncapped", out.PayableBonus, out.Capped)
	}
}

func TestSettleVolumesEqualLegsResetBothCarries(t *testing.T) {
	t.Parallel()

	out := SettleVolumes(SettlementInput{
		LeftBusiness:  250,
		RightBusiness: 250,
		BinaryRate:    0.10,
	})
	if out.PayableBonus != 25 {
		t.Fatalf("payable bonus = %v, want 25", out.PayableBonus)
	}
	if out.NewLeftCarry != 0 || out.NewRightCarry != 0 {
		t.Fatalf("carries = %v/%v, want both zero on a tie", out.NewLeftCarry, out.NewRightCarry)
	}
}

func TestRoundCurrency(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   float64
		want float64
	}{
		{0.1 + 0.2, 0.3},
		{1.23456, 1.2346},
		{-1.23456, -1.2346},
		{0, 0},
	}
	for _, tc := range cases {
		got := RoundCurrency(tc.in, 4)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("RoundCurrency(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCycleDateIsUTCDay(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+5", 5*3600)
	// 02:30 local on March 2nd is still March 1st in UTC.
	at := time.Date(2025, 3, 2, 2, 30, 0, 0, loc)
	if got := CycleDate(at); got != "2025-03-01" {
		t.Fatalf("CycleDate = %q, want 2025-03-01", got)
	}
}

func TestReferralAndROIHelpers(t *testing.T) {
	t.Parallel()

	if got := ReferralBonus(1000, 0.05); got != 50 {
		t.Fatalf("ReferralBonus = %v, want 50", got)
	}
	if got := ReferralBonus(1000, 0); got != 0 {
		t.Fatalf("ReferralBonus with zero rate = %v, want 0", got)
	}
	if got := DailyROI(2000, 0.005); got != 10 {
		t.Fatalf("DailyROI = %v, want 10", got)
	}
}

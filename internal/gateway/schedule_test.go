package gateway

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestScheduleFee(t *testing.T) {
	schedule, err := NewSchedule([]Config{
		{ID: "esewa", Name: "eSewa", FeePercent: decimal.RequireFromString("2.5"), FeeFixed: decimal.NewFromInt(10), Enabled: true},
		{ID: "khalti", Name: "Khalti", FeePercent: decimal.NewFromInt(3), FeeFixed: decimal.Zero, Enabled: false},
	})
	if err != nil {
		t.Fatalf("build schedule: %v", err)
	}

	fee, err := schedule.Fee("esewa", decimal.NewFromInt(1000))
	if err != nil {
		t.Fatalf("fee: %v", err)
	}
	if fee.String() != "35" {
		t.Fatalf("expected fee 35, got %s", fee)
	}

	if _, err := schedule.Fee("khalti", decimal.NewFromInt(1000)); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if _, err := schedule.Fee("stripe", decimal.NewFromInt(1000)); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestScheduleRejectsInvalidConfig(t *testing.T) {
	cases := []Config{
		{ID: "", FeePercent: decimal.NewFromInt(1)},
		{ID: "esewa", FeePercent: decimal.NewFromInt(-1)},
		{ID: "esewa", FeePercent: decimal.NewFromInt(101)},
		{ID: "esewa", FeeFixed: decimal.NewFromInt(-5)},
	}
	for _, cfg := range cases {
		if _, err := NewSchedule([]Config{cfg}); err == nil {
			t.Fatalf("expected validation error for %+v", cfg)
		}
	}
	if _, err := NewSchedule([]Config{
		{ID: "esewa", Enabled: true},
		{ID: "ESewa", Enabled: true},
	}); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestFeeRounding(t *testing.T) {
	schedule, err := NewSchedule([]Config{
		{ID: "gw", FeePercent: decimal.RequireFromString("2.9"), FeeFixed: decimal.RequireFromString("0.30"), Enabled: true},
	})
	if err != nil {
		t.Fatalf("build schedule: %v", err)
	}
	fee, err := schedule.Fee("gw", decimal.RequireFromString("199.99"))
	if err != nil {
		t.Fatalf("fee: %v", err)
	}
	// 199.99 * 2.9% = 5.79971 + 0.30 = 6.09971 -> 6.10
	if fee.String() != "6.1" {
		t.Fatalf("expected fee 6.1, got %s", fee)
	}
}

package currency

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func snapshotWith(t *testing.T, rates ...ExchangeRate) *Snapshot {
	t.Helper()
	snap, err := NewSnapshot(rates, time.Now())
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	return snap
}

func TestConvertMinimumValuationCeiling(t *testing.T) {
	snap := snapshotWith(t, ExchangeRate{
		CountryCode:  "NP",
		CurrencyCode: "NPR",
		RateFromUSD:  decimal.RequireFromString("133.0"),
	})
	conv, err := NewConverter(snap)
	if err != nil {
		t.Fatalf("new converter: %v", err)
	}

	tests := []struct {
		name      string
		amountUSD string
		want      string
	}{
		{name: "fractional product rounds up", amountUSD: "10.5", want: "1397"},
		{name: "exact product stays", amountUSD: "10", want: "1330"},
		{name: "zero converts to zero", amountUSD: "0", want: "0"},
		{name: "sub-unit amount rounds up to one", amountUSD: "0.001", want: "1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := conv.ConvertMinimumValuation(decimal.RequireFromString(tc.amountUSD), "NP")
			if err != nil {
				t.Fatalf("convert: %v", err)
			}
			if got.Amount.String() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got.Amount)
			}
			if got.CurrencyCode != "NPR" {
				t.Fatalf("expected NPR, got %s", got.CurrencyCode)
			}
		})
	}
}

func TestConvertNeverBelowExactProduct(t *testing.T) {
	snap := snapshotWith(t, ExchangeRate{CountryCode: "IN", CurrencyCode: "INR", RateFromUSD: decimal.RequireFromString("83.37")})
	conv, err := NewConverter(snap)
	if err != nil {
		t.Fatalf("new converter: %v", err)
	}
	for _, amount := range []string{"0.01", "1.99", "7", "10.5", "249.999"} {
		usd := decimal.RequireFromString(amount)
		got, err := conv.ConvertMinimumValuation(usd, "IN")
		if err != nil {
			t.Fatalf("convert %s: %v", amount, err)
		}
		exact := usd.Mul(decimal.RequireFromString("83.37"))
		if got.Amount.LessThan(exact) {
			t.Fatalf("converted %s is below exact product %s", got.Amount, exact)
		}
	}
}

func TestConvertMissingRateIsFatal(t *testing.T) {
	snap := snapshotWith(t, ExchangeRate{CountryCode: "NP", CurrencyCode: "NPR", RateFromUSD: decimal.NewFromInt(133)})
	conv, err := NewConverter(snap)
	if err != nil {
		t.Fatalf("new converter: %v", err)
	}
	_, err = conv.ConvertMinimumValuation(decimal.NewFromInt(10), "XX")
	if !IsRateNotFound(err) {
		t.Fatalf("expected RateNotFoundError, got %v", err)
	}
}

func TestConvertNegativeAmountRejected(t *testing.T) {
	snap := snapshotWith(t, ExchangeRate{CountryCode: "NP", CurrencyCode: "NPR", RateFromUSD: decimal.NewFromInt(133)})
	conv, err := NewConverter(snap)
	if err != nil {
		t.Fatalf("new converter: %v", err)
	}
	if _, err := conv.ConvertMinimumValuation(decimal.NewFromInt(-1), "NP"); err == nil {
		t.Fatal("expected error for negative amount")
	}
}

func TestSnapshotRejectsMalformedRates(t *testing.T) {
	cases := []ExchangeRate{
		{CountryCode: "", CurrencyCode: "NPR", RateFromUSD: decimal.NewFromInt(1)},
		{CountryCode: "NP", CurrencyCode: "", RateFromUSD: decimal.NewFromInt(1)},
		{CountryCode: "NP", CurrencyCode: "NPR", RateFromUSD: decimal.Zero},
		{CountryCode: "NP", CurrencyCode: "NPR", RateFromUSD: decimal.NewFromInt(-3)},
	}
	for _, rate := range cases {
		if _, err := NewSnapshot([]ExchangeRate{rate}, time.Now()); err == nil {
			t.Fatalf("expected validation error for %+v", rate)
		}
	}
}

func TestStoreSwapIsAtomic(t *testing.T) {
	store := &Store{}
	if _, err := store.Current(); err != ErrNoSnapshot {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
	first := snapshotWith(t, ExchangeRate{CountryCode: "NP", CurrencyCode: "NPR", RateFromUSD: decimal.NewFromInt(133)})
	store.Swap(first)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			snap, err := store.Current()
			if err != nil || snap.Len() == 0 {
				t.Errorf("reader observed incomplete snapshot: %v", err)
				return
			}
		}
	}()
	for i := 0; i < 100; i++ {
		store.Swap(snapshotWith(t,
			ExchangeRate{CountryCode: "NP", CurrencyCode: "NPR", RateFromUSD: decimal.NewFromInt(int64(130 + i))},
			ExchangeRate{CountryCode: "IN", CurrencyCode: "INR", RateFromUSD: decimal.NewFromInt(83)},
		))
	}
	<-done
}

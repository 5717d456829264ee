package refresh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pasal/internal/classification"
	"github.com/noah-isme/backend-pasal/internal/currency"
)

type stubRateSource struct {
	rows []currency.ExchangeRate
	err  error
}

func (s *stubRateSource) LoadRates(_ context.Context) ([]currency.ExchangeRate, error) {
	return s.rows, s.err
}

type stubRegistrySource struct {
	rows []classification.Entry
	err  error
}

func (s *stubRegistrySource) LoadClassifications(_ context.Context) ([]classification.Entry, error) {
	return s.rows, s.err
}

func validSources() (*stubRateSource, *stubRegistrySource) {
	rateSource := &stubRateSource{rows: []currency.ExchangeRate{
		{CountryCode: "NP", CurrencyCode: "NPR", RateFromUSD: decimal.NewFromInt(133)},
	}}
	registrySource := &stubRegistrySource{rows: []classification.Entry{
		{Code: "6204", DutyRatePercent: decimal.NewFromInt(12), TaxRatePercent: decimal.NewFromInt(13), Confidence: 0.9},
	}}
	return rateSource, registrySource
}

func TestLoadInitial(t *testing.T) {
	rateSource, registrySource := validSources()
	refresher := &Refresher{
		Rates:          &currency.Store{},
		RatesSource:    rateSource,
		Registry:       &classification.Store{},
		RegistrySource: registrySource,
		Logger:         zerolog.Nop(),
	}

	require.NoError(t, refresher.LoadInitial(context.Background()))

	rateSnap, err := refresher.Rates.Current()
	require.NoError(t, err)
	require.Equal(t, 1, rateSnap.Len())

	registrySnap, err := refresher.Registry.Current()
	require.NoError(t, err)
	require.Equal(t, 1, registrySnap.Len())
}

func TestLoadInitialFailsOnSourceError(t *testing.T) {
	rateSource, registrySource := validSources()
	rateSource.err = errors.New("db down")
	refresher := &Refresher{
		Rates:          &currency.Store{},
		RatesSource:    rateSource,
		Registry:       &classification.Store{},
		RegistrySource: registrySource,
		Logger:         zerolog.Nop(),
	}
	require.Error(t, refresher.LoadInitial(context.Background()))
}

func TestRefreshKeepsLastGoodSnapshotOnFailure(t *testing.T) {
	rateSource, registrySource := validSources()
	refresher := &Refresher{
		Rates:          &currency.Store{},
		RatesSource:    rateSource,
		Registry:       &classification.Store{},
		RegistrySource: registrySource,
		Logger:         zerolog.Nop(),
	}
	require.NoError(t, refresher.LoadInitial(context.Background()))
	before, err := refresher.Rates.Current()
	require.NoError(t, err)

	rateSource.err = errors.New("feed unreachable")
	refresher.RefreshOnce(context.Background())

	after, err := refresher.Rates.Current()
	require.NoError(t, err)
	require.Same(t, before, after)
}

type recordingLock struct {
	keys []string
}

func (l *recordingLock) WithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	l.keys = append(l.keys, key)
	return fn(ctx)
}

func TestRefreshOnceRunsUnderLock(t *testing.T) {
	rateSource, registrySource := validSources()
	lk := &recordingLock{}
	refresher := &Refresher{
		Rates:          &currency.Store{},
		RatesSource:    rateSource,
		Registry:       &classification.Store{},
		RegistrySource: registrySource,
		Lock:           lk,
		Logger:         zerolog.Nop(),
	}
	require.NoError(t, refresher.LoadInitial(context.Background()))

	refresher.RefreshOnce(context.Background())

	require.Equal(t, []string{"refresh:snapshots"}, lk.keys)
	snap, err := refresher.Rates.Current()
	require.NoError(t, err)
	require.Equal(t, 1, snap.Len())
}

func TestRefreshRejectsMalformedRows(t *testing.T) {
	rateSource, registrySource := validSources()
	refresher := &Refresher{
		Rates:          &currency.Store{},
		RatesSource:    rateSource,
		Registry:       &classification.Store{},
		RegistrySource: registrySource,
		Logger:         zerolog.Nop(),
	}
	require.NoError(t, refresher.LoadInitial(context.Background()))
	before, err := refresher.Rates.Current()
	require.NoError(t, err)

	rateSource.rows = []currency.ExchangeRate{
		{CountryCode: "NP", CurrencyCode: "NPR", RateFromUSD: decimal.NewFromInt(-1)},
	}
	refresher.RefreshOnce(context.Background())

	after, err := refresher.Rates.Current()
	require.NoError(t, err)
	require.Same(t, before, after)
}

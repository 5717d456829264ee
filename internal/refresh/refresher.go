package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pasal/internal/classification"
	"github.com/noah-isme/backend-pasal/internal/currency"
	"github.com/noah-isme/backend-pasal/internal/events"
	"github.com/noah-isme/backend-pasal/internal/obs"
)

// Lock serializes refreshes across replicas. Satisfied by lock.Locker.
type Lock interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Refresher periodically reloads the exchange-rate and classification
// snapshots. A failed reload keeps the previous snapshot in place; quotes
// keep pricing on the last good data.
type Refresher struct {
	Interval time.Duration

	Rates       *currency.Store
	RatesSource currency.Source

	Registry       *classification.Store
	RegistrySource classification.Source

	Bus    *events.Bus
	Lock   Lock
	Logger zerolog.Logger
}

// Run blocks and refreshes on the configured interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce reloads both snapshots. Each source fails independently.
// With a Lock configured, concurrent replicas take turns against the
// upstream sources instead of fetching at the same instant.
func (r *Refresher) RefreshOnce(ctx context.Context) {
	if r.Lock != nil {
		err := r.Lock.WithLock(ctx, "refresh:snapshots", time.Minute, func(ctx context.Context) error {
			r.refreshRates(ctx)
			r.refreshRegistry(ctx)
			return nil
		})
		if err != nil {
			r.Logger.Error().Err(err).Msg("snapshot refresh lock failed")
		}
		return
	}
	r.refreshRates(ctx)
	r.refreshRegistry(ctx)
}

// LoadInitial performs the first load of both snapshots. Unlike RefreshOnce,
// a failure here is fatal: the service must not start without reference data.
func (r *Refresher) LoadInitial(ctx context.Context) error {
	if r.Rates == nil || r.RatesSource == nil || r.Registry == nil || r.RegistrySource == nil {
		return errors.New("refresh: refresher not configured")
	}
	rateRows, err := r.RatesSource.LoadRates(ctx)
	if err != nil {
		return err
	}
	rateSnap, err := currency.NewSnapshot(rateRows, time.Now().UTC())
	if err != nil {
		return err
	}
	entryRows, err := r.RegistrySource.LoadClassifications(ctx)
	if err != nil {
		return err
	}
	registrySnap, err := classification.NewSnapshot(entryRows, time.Now().UTC())
	if err != nil {
		return err
	}
	r.Rates.Swap(rateSnap)
	r.Registry.Swap(registrySnap)
	r.Logger.Info().
		Int("rates", rateSnap.Len()).
		Int("classifications", registrySnap.Len()).
		Msg("initial snapshots loaded")
	return nil
}

func (r *Refresher) refreshRates(ctx context.Context) {
	if r.Rates == nil || r.RatesSource == nil {
		return
	}
	rows, err := r.RatesSource.LoadRates(ctx)
	if err != nil {
		r.record("rates", "error")
		r.Logger.Error().Err(err).Msg("exchange rate refresh failed")
		return
	}
	snapshot, err := currency.NewSnapshot(rows, time.Now().UTC())
	if err != nil {
		r.record("rates", "invalid")
		r.Logger.Error().Err(err).Msg("exchange rate snapshot rejected")
		return
	}
	r.Rates.Swap(snapshot)
	r.record("rates", "ok")
	r.Logger.Info().Int("rates", snapshot.Len()).Msg("exchange rate snapshot refreshed")

	if r.Bus != nil {
		payload := map[string]any{"rateCount": snapshot.Len(), "loadedAt": snapshot.LoadedAt()}
		if _, err := r.Bus.Emit(ctx, events.TopicRatesRefreshed, uuid.New(), payload); err != nil {
			r.Logger.Warn().Err(err).Msg("emit rates.refreshed failed")
		}
	}
}

func (r *Refresher) refreshRegistry(ctx context.Context) {
	if r.Registry == nil || r.RegistrySource == nil {
		return
	}
	rows, err := r.RegistrySource.LoadClassifications(ctx)
	if err != nil {
		r.record("classifications", "error")
		r.Logger.Error().Err(err).Msg("classification refresh failed")
		return
	}
	snapshot, err := classification.NewSnapshot(rows, time.Now().UTC())
	if err != nil {
		r.record("classifications", "invalid")
		r.Logger.Error().Err(err).Msg("classification snapshot rejected")
		return
	}
	r.Registry.Swap(snapshot)
	r.record("classifications", "ok")
	r.Logger.Info().Int("classifications", snapshot.Len()).Msg("classification snapshot refreshed")
}

func (r *Refresher) record(source, result string) {
	if obs.SnapshotRefreshTotal != nil {
		obs.SnapshotRefreshTotal.WithLabelValues(source, result).Inc()
	}
}

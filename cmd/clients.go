package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crossref-sync/internal/config"
	"github.com/sells-group/crossref-sync/internal/reconcile"
	"github.com/sells-group/crossref-sync/internal/resolver"
	"github.com/sells-group/crossref-sync/internal/store"
	"github.com/sells-group/crossref-sync/pkg/crossref"
	"github.com/sells-group/crossref-sync/pkg/pure"
)

// newPureClient builds the repository client from configuration.
func newPureClient(c *config.Config) pure.Client {
	return pure.NewClient(c.Pure.Endpoint, c.Pure.APIKey,
		pure.WithTimeout(time.Duration(c.Pure.TimeoutSecs)*time.Second),
		pure.WithRetry(c.Retry.Policy()),
		pure.WithCircuitBreaker(c.Circuit.Breaker("pure")),
	)
}

// newResolver builds the CrossRef client and the resolver on top of it.
// now fixes the resolution date; nil means the wall clock.
func newResolver(c *config.Config, now func() time.Time) *resolver.Resolver {
	client := crossref.NewClient(
		crossref.WithBaseURL(c.CrossRef.BaseURL),
		crossref.WithMailto(c.CrossRef.Mailto),
		crossref.WithTimeout(time.Duration(c.CrossRef.TimeoutSecs)*time.Second),
		crossref.WithRateLimit(c.CrossRef.RateLimit, c.CrossRef.RateBurst),
		crossref.WithRetry(c.Retry.Policy()),
		crossref.WithCircuitBreaker(c.Circuit.Breaker("crossref")),
	)

	opts := []resolver.Option{resolver.WithBaseURL(c.CrossRef.BaseURL)}
	if now != nil {
		opts = append(opts, resolver.WithClock(now))
	}
	return resolver.New(client, opts...)
}

// newEngine builds the reconciliation engine from configuration.
func newEngine(c *config.Config) reconcile.Engine {
	return reconcile.Engine{
		Locale:            c.Pure.Locale,
		ClearStaleEmbargo: c.Reconcile.ClearStaleEmbargo,
	}
}

// initStore opens and migrates the configured run ledger. Driver "none"
// returns a nil store.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Store.Driver {
	case "none":
		return nil, nil
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "crossref-sync.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// requireStore is initStore for commands that only make sense with a ledger.
func requireStore(ctx context.Context, c *config.Config) (store.Store, error) {
	if err := c.Validate("ledger"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("run ledger is disabled (store.driver is none)")
	}
	return st, nil
}

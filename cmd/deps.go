package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geoint-cli/internal/boundary"
	"github.com/sells-group/geoint-cli/internal/choropleth"
	"github.com/sells-group/geoint-cli/internal/config"
	"github.com/sells-group/geoint-cli/internal/db"
	"github.com/sells-group/geoint-cli/internal/fetcher"
	"github.com/sells-group/geoint-cli/internal/resilience"
	"github.com/sells-group/geoint-cli/internal/scoreapi"
)

// retryConfig converts the retry settings, logging each retry under service.
func retryConfig(c *config.Config, service string) resilience.RetryConfig {
	rc := resilience.FromConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs)
	rc.OnRetry = resilience.RetryLogger(service, "get")
	return rc
}

// openPool connects to the configured PostGIS database.
func openPool(ctx context.Context, c *config.Config) (*pgxpool.Pool, error) {
	if c.Store.DatabaseURL == "" {
		return nil, eris.New("store.database_url is required")
	}
	return db.Open(ctx, c.Store.DatabaseURL, &db.PoolConfig{
		MaxConns: c.Store.MaxConns,
		MinConns: c.Store.MinConns,
	})
}

// boundarySource builds the configured boundary source. The returned close
// func releases any pool it opened.
func boundarySource(ctx context.Context, c *config.Config) (boundary.Source, func(), error) {
	names := boundary.FileNames{
		Province: c.Boundaries.ProvinceFile,
		District: c.Boundaries.DistrictFile,
	}
	noop := func() {}

	switch c.Boundaries.Source {
	case "file", "":
		return &boundary.FileSource{Dir: c.Boundaries.Dir, Names: names}, noop, nil
	case "http":
		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Retry: retryConfig(c, "boundaries"),
		})
		return &boundary.HTTPSource{BaseURL: c.Boundaries.BaseURL, Names: names, Fetcher: f}, noop, nil
	case "postgis":
		pool, err := openPool(ctx, c)
		if err != nil {
			return nil, noop, err
		}
		return &boundary.PostGISSource{Pool: pool}, pool.Close, nil
	}
	return nil, noop, eris.Errorf("unknown boundary source %q", c.Boundaries.Source)
}

// newEngine builds the boundary cache and merge engine over src.
func newEngine(c *config.Config, src boundary.Source) *boundary.Engine {
	return boundary.NewEngine(boundary.NewCache(src, c.Boundaries.LoadTimeout()))
}

// scoreClient builds the score API client with its payload cache.
func scoreClient(c *config.Config) *scoreapi.Client {
	opts := []scoreapi.Option{
		scoreapi.WithToken(c.Scores.Token),
		scoreapi.WithRateLimit(c.Scores.RateLimit),
		scoreapi.WithTimeout(time.Duration(c.Scores.TimeoutSecs) * time.Second),
		scoreapi.WithRetry(retryConfig(c, "scoreapi")),
	}
	if c.Scores.CacheEntries > 0 && c.Scores.CacheTTLSecs > 0 {
		opts = append(opts, scoreapi.WithCache(
			scoreapi.NewPayloadCache(c.Scores.CacheEntries, time.Duration(c.Scores.CacheTTLSecs)*time.Second),
		))
	}
	return scoreapi.NewClient(c.Scores.BaseURL, opts...)
}

// palette returns the configured palette, or the built-in one.
func palette(c *config.Config) (*choropleth.Palette, error) {
	if c.Choropleth.PaletteFile == "" {
		return choropleth.DefaultPalette(), nil
	}
	return choropleth.LoadPalette(c.Choropleth.PaletteFile)
}

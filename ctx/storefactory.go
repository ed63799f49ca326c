package ctx

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/x2ee/c3/config"
	"github.com/x2ee/c3/dnode"
	"github.com/x2ee/c3/dpath"
	"github.com/x2ee/c3/statestore"
	"github.com/x2ee/c3/types"
)

// PgPoolCache is the "db pool map" the configuration handle owns: one
// pgxpool.Pool per distinct DSN, shared across every state service that
// names it, so two data nodes on the same Postgres database don't each
// open their own connection pool. Pool sizing, connect timeout, and
// acquire timeout are read once from the environment (spec.md §5's
// "database handle pool" ambient concern), matching the teacher's
// config.EnvConfig pattern for every other environment-sourced setting.
type PgPoolCache struct {
	mu             sync.Mutex
	pools          map[string]*pgxpool.Pool
	maxConns       int32
	connectTimeout time.Duration
	acquireTimeout time.Duration
}

// NewPgPoolCache returns an empty cache, sized from the C3_PG_MAX_CONNS,
// C3_PG_CONNECT_TIMEOUT and C3_PG_ACQUIRE_TIMEOUT environment variables
// (defaults: 10 connections, 5s connect timeout, 2s acquire timeout).
func NewPgPoolCache() *PgPoolCache {
	env := config.NewEnvConfig("C3_PG")
	return &PgPoolCache{
		pools:          make(map[string]*pgxpool.Pool),
		maxConns:       int32(env.GetInt("MAX_CONNS", 10)),
		connectTimeout: env.GetDuration("CONNECT_TIMEOUT", 5*time.Second),
		acquireTimeout: env.GetDuration("ACQUIRE_TIMEOUT", 2*time.Second),
	}
}

// Get returns the pool for dsn, creating and caching it on first use.
func (c *PgPoolCache) Get(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pool, ok := c.pools[dsn]; ok {
		return pool, nil
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("ctx: parsing postgres dsn: %w", err)
	}
	cfg.MaxConns = c.maxConns
	cfg.ConnConfig.ConnectTimeout = c.connectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ctx: connecting to postgres: %w", err)
	}
	c.pools[dsn] = pool
	return pool, nil
}

// Acquire waits up to deadline for a connection from dsn's pool (spec.md
// §5: "acquire waits up to a caller-specified deadline for an available
// handle; exhaustion raises a typed error"). A deadline expiry — every
// connection checked out and none freed in time — is reported as
// statestore.ErrPoolExhausted rather than the raw context error, so
// callers can match on the one typed error spec.md §7 names regardless
// of whether the pool was merely slow or genuinely exhausted.
func (c *PgPoolCache) Acquire(ctx context.Context, dsn string, deadline time.Duration) (*pgxpool.Conn, error) {
	pool, err := c.Get(ctx, dsn)
	if err != nil {
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	conn, err := pool.Acquire(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, statestore.ErrPoolExhausted
		}
		return nil, fmt.Errorf("ctx: acquiring postgres connection: %w", err)
	}
	return conn, nil
}

// Close closes every pool the cache has ever handed out.
func (c *PgPoolCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pool := range c.pools {
		pool.Close()
	}
}

// dsnAcquirer adapts PgPoolCache into a statestore.ConnAcquirer bound to
// one dsn and acquire deadline, so statestore.PostgresStore never needs to
// know about dsns, pool caching, or environment-sourced timeouts.
type dsnAcquirer struct {
	cache    *PgPoolCache
	dsn      string
	deadline time.Duration
}

// Acquire implements statestore.ConnAcquirer.
func (a dsnAcquirer) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	return a.cache.Acquire(ctx, a.dsn, a.deadline)
}

// NewStoreFactory returns the dnode.StoreFactory the tree builder uses to
// construct each data node's state backend, selecting between sqlite
// (the default — one file per table under sqliteDir) and postgres (when
// the node's state config names `"backend": "postgres"` and a `"dsn"`)
// via pgPools.
func NewStoreFactory(sqliteDir string, pgPools *PgPoolCache) dnode.StoreFactory {
	return func(path dpath.Path, table *types.Table, remaining map[string]any) (statestore.Store, error) {
		backend, _ := remaining["backend"].(string)
		switch backend {
		case "postgres":
			dsn, _ := remaining["dsn"].(string)
			if dsn == "" {
				return nil, fmt.Errorf("ctx: state service for %q names backend=postgres without a dsn", path.String())
			}
			if _, err := pgPools.Get(context.Background(), dsn); err != nil {
				return nil, err
			}
			acquirer := dsnAcquirer{cache: pgPools, dsn: dsn, deadline: pgPools.acquireTimeout}
			return statestore.NewPostgresStore(acquirer, table), nil
		case "", "sqlite":
			return statestore.OpenSQLiteStore(filepath.Join(sqliteDir, table.Name()+".db"), table)
		default:
			return nil, fmt.Errorf("ctx: unknown state backend %q for %q", backend, path.String())
		}
	}
}

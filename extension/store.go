package extension

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/xraph/stepwise/store"
	bunstore "github.com/xraph/stepwise/store/bun"
	"github.com/xraph/stepwise/store/memory"
	pgstore "github.com/xraph/stepwise/store/postgres"
	redisstore "github.com/xraph/stepwise/store/redis"
)

// openStore opens the configured backend. The returned close func releases
// the underlying connection and is never nil.
func openStore(ctx context.Context, cfg StoreConfig, logger *slog.Logger) (store.Store, func() error, error) {
	switch cfg.Driver {
	case DriverMemory:
		s := memory.New()
		return s, s.Close, nil

	case DriverPostgres:
		s, err := pgstore.New(ctx, cfg.PostgresDSN, pgstore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case DriverBun:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.PostgresDSN)))
		db := bun.NewDB(sqldb, pgdialect.New())
		return bunstore.New(db, bunstore.WithLogger(logger)), db.Close, nil

	case DriverRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return redisstore.New(client, redisstore.WithLogger(logger)), client.Close, nil

	default:
		return nil, nil, fmt.Errorf("stepwise: unknown store driver %q", cfg.Driver)
	}
}

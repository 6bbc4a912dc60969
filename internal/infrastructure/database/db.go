package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Beep206/CyberVPN-sub003/pkg/config"
	"github.com/Beep206/CyberVPN-sub003/pkg/db"
)

type DBManager struct {
	Pool *pgxpool.Pool
}

func New(cfg *config.DatabaseConfig) (*DBManager, error) {
	poolCfg, err := pgxpool.ParseConfig(db.GetDBDSN(cfg))
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime != "" {
		lifetime, err := time.ParseDuration(cfg.ConnMaxLifetime)
		if err != nil {
			return nil, err
		}
		poolCfg.MaxConnLifetime = lifetime
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &DBManager{
		Pool: pool,
	}, nil
}

func (dm *DBManager) ShutDown() {
	if dm.Pool != nil {
		dm.Pool.Close()
	}
}

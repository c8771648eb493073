package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Options selects and configures a backend.
type Options struct {
	Backend       string // memory, redis, postgres, sqlite or mongo
	DatabaseURL   string
	SQLitePath    string
	RedisAddr     string
	RedisPrefix   string
	MongoURI      string
	MongoDatabase string
}

// OpenBackend connects the configured backend.
func OpenBackend(ctx context.Context, o Options) (Backend, error) {
	switch strings.ToLower(o.Backend) {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		r := NewRedis(o.RedisAddr, o.RedisPrefix)
		if !r.Healthy(ctx) {
			_ = r.Close()
			return nil, errors.New("redis not reachable at " + o.RedisAddr)
		}
		return r, nil
	case "postgres":
		db, err := NewDB(ctx, o.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return db, nil
	case "sqlite":
		db, err := NewSQLite(ctx, o.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite open: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite migrate: %w", err)
		}
		return db, nil
	case "mongo":
		m, err := NewMongo(ctx, o.MongoURI, o.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", o.Backend)
	}
}

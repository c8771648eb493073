package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores each collection as a hash with "data" and "version" fields.
type Redis struct {
	Client *redis.Client
	prefix string
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr, prefix string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return NewRedisFromClient(client, prefix)
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "volunteerhub"
	}
	return &Redis{Client: client, prefix: prefix}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

func (r *Redis) key(name string) string { return r.prefix + ":" + name }

// Load reads the collection hash.
func (r *Redis) Load(ctx context.Context, name string) (Blob, error) {
	vals, err := r.Client.HGetAll(ctx, r.key(name)).Result()
	if err != nil {
		return Blob{}, err
	}
	if len(vals) == 0 {
		return Blob{}, nil
	}
	v, err := strconv.ParseInt(vals["version"], 10, 64)
	if err != nil {
		return Blob{}, err
	}
	return Blob{Data: []byte(vals["data"]), Version: v}, nil
}

// Commit WATCHes every key, checks versions and writes in one MULTI.
func (r *Redis) Commit(ctx context.Context, writes []Write) error {
	keys := make([]string, len(writes))
	for i, w := range writes {
		keys[i] = r.key(w.Name)
	}

	txf := func(tx *redis.Tx) error {
		for i, w := range writes {
			cur, err := tx.HGet(ctx, keys[i], "version").Int64()
			if errors.Is(err, redis.Nil) {
				cur = 0
			} else if err != nil {
				return err
			}
			if cur != w.Version {
				return ErrConflict
			}
		}
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for i, w := range writes {
				p.HSet(ctx, keys[i], "data", w.Data, "version", w.Version+1)
			}
			return nil
		})
		return err
	}

	err := r.Client.Watch(ctx, txf, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

// Close closes the client.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/newthinker/verdict/internal/core"
	"github.com/newthinker/verdict/internal/storage/archive"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key holding the ledger document.
const DefaultRedisKey = "verdict:ledger"

// RedisStore keeps the ledger under one key and guards writes with
// WATCH/MULTI. Versions are content hashes.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore creates a ledger stored at key.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (r *RedisStore) Load(ctx context.Context) (*Document, Version, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		doc, _ := Decode(nil)
		return doc, "", nil
	}
	if err != nil {
		return nil, "", core.WrapError(core.ErrLedgerRead, err)
	}

	doc, err := Decode(data)
	if err != nil {
		return nil, "", err
	}
	return doc, Version(archive.ContentVersion(data)), nil
}

var errStaleVersion = errors.New("stored version changed")

func (r *RedisStore) Save(ctx context.Context, doc *Document, expected Version) (Version, error) {
	data, err := Encode(doc)
	if err != nil {
		return "", err
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, r.key).Bytes()
		var version Version
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			version = Version(archive.ContentVersion(current))
		}
		if version != expected {
			return errStaleVersion
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, data, 0)
			return nil
		})
		return err
	}, r.key)

	switch {
	case err == nil:
		return Version(archive.ContentVersion(data)), nil
	case errors.Is(err, errStaleVersion), errors.Is(err, redis.TxFailedErr):
		return "", core.WrapError(core.ErrLedgerConflict, err)
	default:
		return "", core.WrapError(core.ErrLedgerWrite, fmt.Errorf("redis save: %w", err))
	}
}

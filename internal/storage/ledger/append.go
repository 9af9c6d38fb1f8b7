package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/newthinker/verdict/internal/core"
	"github.com/newthinker/verdict/internal/stats"
)

// DefaultAppendRetries bounds conflict retries in Append.
const DefaultAppendRetries = 5

// Append inserts a new call with a read-modify-write against store, retrying
// the whole read on version conflicts. A call whose id is already present
// fails with core.ErrInvalidRequest.
func Append(ctx context.Context, store Store, call core.Call, now time.Time) error {
	op := func() error {
		doc, version, err := store.Load(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		for _, existing := range doc.Signals {
			if existing.ID == call.ID {
				return backoff.Permanent(core.WrapError(core.ErrInvalidRequest,
					fmt.Errorf("call %q already exists", call.ID)))
			}
		}

		doc.Signals = append(doc.Signals, call)
		doc.LastUpdated = now
		doc.Stats = stats.Compute(doc.Signals, now)

		_, err = store.Save(ctx, doc, version)
		if err != nil && !errors.Is(err, core.ErrLedgerConflict) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(b, DefaultAppendRetries), ctx)
	return backoff.Retry(op, policy)
}

package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/newthinker/verdict/internal/core"
)

// MemoryStore is an in-memory ledger. Documents are stored encoded so callers
// never share state with the store.
type MemoryStore struct {
	mu      sync.Mutex
	data    []byte
	version Version
	counter int64
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (*Document, Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := Decode(m.data)
	if err != nil {
		return nil, "", err
	}
	return doc, m.version, nil
}

func (m *MemoryStore) Save(ctx context.Context, doc *Document, expected Version) (Version, error) {
	data, err := Encode(doc)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if expected != m.version {
		return "", core.WrapError(core.ErrLedgerConflict,
			fmt.Errorf("expected version %q, found %q", expected, m.version))
	}

	m.counter++
	m.data = data
	m.version = Version(fmt.Sprintf("mem-%d", m.counter))
	return m.version, nil
}

// Raw returns the stored JSON.
func (m *MemoryStore) Raw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// Package ledger persists the call ledger as a single JSON document with
// optimistic, version-checked writes.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/newthinker/verdict/internal/core"
)

// Version is an opaque token identifying one stored revision of the ledger.
// The empty Version means the ledger has never been written.
type Version string

// Document is the persisted ledger.
type Document struct {
	LastUpdated time.Time          `json:"lastUpdated"`
	Signals     []core.Call        `json:"signals"`
	Stats       core.StatsSnapshot `json:"stats"`
}

// Store loads and saves the ledger document.
type Store interface {
	// Load returns the current document and its version. A ledger that does
	// not exist yet loads as an empty document with the empty version.
	Load(ctx context.Context) (*Document, Version, error)

	// Save replaces the document if the stored version still equals expected,
	// otherwise it fails with core.ErrLedgerConflict.
	Save(ctx context.Context, doc *Document, expected Version) (Version, error)
}

// Encode renders a document in its on-disk JSON form.
func Encode(doc *Document) ([]byte, error) {
	if doc == nil {
		doc = &Document{}
	}
	out := *doc
	if out.Signals == nil {
		out.Signals = []core.Call{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, core.WrapError(core.ErrLedgerWrite, fmt.Errorf("encoding ledger: %w", err))
	}
	return data, nil
}

// Decode parses a stored document. Empty input yields an empty document.
func Decode(data []byte) (*Document, error) {
	doc := &Document{}
	if len(data) == 0 {
		doc.Signals = []core.Call{}
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, core.WrapError(core.ErrLedgerRead, fmt.Errorf("decoding ledger: %w", err))
	}
	if doc.Signals == nil {
		doc.Signals = []core.Call{}
	}
	return doc, nil
}

package ledger

import (
	"context"
	"errors"

	"github.com/newthinker/verdict/internal/core"
	"github.com/newthinker/verdict/internal/storage/archive"
)

// DefaultPath is the object path of the ledger inside a blob backend.
const DefaultPath = "signals.json"

// BlobStore keeps the ledger as one object in a versioned blob backend
// (local filesystem or S3).
type BlobStore struct {
	backend archive.Versioned
	path    string
}

// NewBlobStore creates a ledger stored at path in backend.
func NewBlobStore(backend archive.Versioned, path string) *BlobStore {
	if path == "" {
		path = DefaultPath
	}
	return &BlobStore{backend: backend, path: path}
}

func (b *BlobStore) Load(ctx context.Context) (*Document, Version, error) {
	data, version, err := b.backend.ReadVersion(ctx, b.path)
	if errors.Is(err, archive.ErrNotExist) {
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
	return doc, Version(version), nil
}

func (b *BlobStore) Save(ctx context.Context, doc *Document, expected Version) (Version, error) {
	data, err := Encode(doc)
	if err != nil {
		return "", err
	}

	version, err := b.backend.WriteIfMatch(ctx, b.path, data, string(expected))
	if errors.Is(err, archive.ErrVersionMismatch) {
		return "", core.WrapError(core.ErrLedgerConflict, err)
	}
	if err != nil {
		return "", core.WrapError(core.ErrLedgerWrite, err)
	}
	return Version(version), nil
}

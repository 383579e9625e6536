// Package ledger persists the set of dispatched marketplace task identifiers.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/erp/shipsync/internal/domain/fulfillment"
)

const (
	// processedKey is the top-level field holding the processed task ids
	processedKey = "processed"

	// defaultFileMode applies to a ledger file created from scratch
	defaultFileMode os.FileMode = 0o644
)

// Options configures how a ledger file is opened
type Options struct {
	// CreateIfMissing writes an empty ledger when the file does not exist.
	// Without it a missing file is an error.
	CreateIfMissing bool
}

// FileLedger implements fulfillment.Ledger on top of a single JSON file.
// The file is read once on Open and rewritten atomically on every MarkProcessed.
// Only one process may use a ledger file at a time.
type FileLedger struct {
	path string

	mu        sync.RWMutex
	processed []fulfillment.TaskID
	index     map[fulfillment.TaskID]struct{}
	// extra keeps unknown top-level fields so a rewrite does not drop them
	extra map[string]json.RawMessage
}

// Open loads the ledger stored at path
func Open(path string, opts Options) (*FileLedger, error) {
	l := &FileLedger{
		path:  path,
		index: make(map[fulfillment.TaskID]struct{}),
		extra: make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && opts.CreateIfMissing {
		if err := l.write(nil); err != nil {
			return nil, err
		}
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", fulfillment.ErrPersistence, path, err)
	}

	if err := l.decode(data); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", fulfillment.ErrPersistence, path, err)
	}
	return l, nil
}

func (l *FileLedger) decode(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc == nil {
		return errors.New("ledger document must be a JSON object")
	}

	var ids []fulfillment.TaskID
	if raw, ok := doc[processedKey]; ok {
		if err := json.Unmarshal(raw, &ids); err != nil {
			return fmt.Errorf("field %q: %w", processedKey, err)
		}
		delete(doc, processedKey)
	}

	for _, id := range ids {
		if _, dup := l.index[id]; dup {
			continue
		}
		l.index[id] = struct{}{}
		l.processed = append(l.processed, id)
	}
	l.extra = doc
	return nil
}

// Path returns the ledger file location
func (l *FileLedger) Path() string {
	return l.path
}

// Len returns the number of recorded task ids
func (l *FileLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.processed)
}

// IsProcessed reports whether id has been recorded
func (l *FileLedger) IsProcessed(id fulfillment.TaskID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.index[id]
	return ok
}

// MarkProcessed appends ids to the ledger and flushes it to disk.
// The in-memory set changes only after the file was replaced successfully.
func (l *FileLedger) MarkProcessed(ctx context.Context, ids []fulfillment.TaskID) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", fulfillment.ErrPersistence, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	added := make([]fulfillment.TaskID, 0, len(ids))
	pending := make(map[fulfillment.TaskID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := l.index[id]; ok {
			continue
		}
		if _, ok := pending[id]; ok {
			continue
		}
		pending[id] = struct{}{}
		added = append(added, id)
	}
	if len(added) == 0 {
		return nil
	}

	next := make([]fulfillment.TaskID, 0, len(l.processed)+len(added))
	next = append(next, l.processed...)
	next = append(next, added...)

	if err := l.write(next); err != nil {
		return err
	}

	l.processed = next
	for _, id := range added {
		l.index[id] = struct{}{}
	}
	return nil
}

// write replaces the ledger file with processed plus the preserved fields.
// The file is swapped in by an atomic rename and keeps its existing mode.
func (l *FileLedger) write(processed []fulfillment.TaskID) error {
	doc := make(map[string]any, len(l.extra)+1)
	for k, v := range l.extra {
		doc[k] = v
	}
	if processed == nil {
		processed = []fulfillment.TaskID{}
	}
	doc[processedKey] = processed

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("%w: encode: %v", fulfillment.ErrPersistence, err)
	}

	if err := renameio.WriteFile(l.path, buf.Bytes(), defaultFileMode, renameio.WithExistingPermissions()); err != nil {
		return fmt.Errorf("%w: replace %s: %v", fulfillment.ErrPersistence, l.path, err)
	}

	syncDir(filepath.Dir(l.path))
	return nil
}

// syncDir flushes the directory entry after a rename; not every platform supports it
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// Ensure FileLedger implements the Ledger port
var _ fulfillment.Ledger = (*FileLedger)(nil)

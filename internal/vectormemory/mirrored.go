package vectormemory

import (
	"context"
	"fmt"
	"time"
)

// MirroredStore wraps a Store so every Put also lands in a RawMirror,
// keeping a byte-exact copy (including the raw embedding) alongside the ANN
// index. The archival worker reads only through the mirror so it never
// round-trips an embedding through Qdrant's payload value types, which are
// not guaranteed to preserve float32 bit patterns.
type MirroredStore struct {
	*Store
	mirror *RawMirror
}

// NewMirroredStore pairs an ANN Store with its raw-field mirror.
func NewMirroredStore(store *Store, mirror *RawMirror) *MirroredStore {
	return &MirroredStore{Store: store, mirror: mirror}
}

// Put writes rec to the ANN index and the raw mirror. Both must succeed:
// a mirror failure is treated the same as a store failure so the scoring
// worker retries the whole entry rather than leaving a record indexed for
// search but unreachable to the archival worker.
func (m *MirroredStore) Put(ctx context.Context, rec Record) error {
	if err := m.Store.Put(ctx, rec); err != nil {
		return err
	}
	if err := m.mirror.Put(ctx, rec.ID, rec, time.Now().Unix()); err != nil {
		return fmt.Errorf("vectormemory: mirror put: %w", err)
	}
	return nil
}

// Delete removes rec from both the ANN index and the raw mirror.
func (m *MirroredStore) Delete(ctx context.Context, id string) error {
	if err := m.Store.Delete(ctx, id); err != nil {
		return err
	}
	return m.mirror.Delete(ctx, id)
}

// Mirror exposes the underlying RawMirror for callers (the archival worker)
// that need byte-exact reads rather than ANN search results.
func (m *MirroredStore) Mirror() *RawMirror { return m.mirror }

package snapshot

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hyperjump/kusuri/internal/metrics"
	"github.com/hyperjump/kusuri/pkg/utils"
)

// LoadFunc produces a new snapshot, typically (*Loader).Load.
type LoadFunc func() (*Snapshot, error)

// Holder owns the snapshot currently being served. Readers never block; reloads are
// serialized and only publish fully built snapshots.
type Holder struct {
	current atomic.Pointer[Snapshot]
	load    LoadFunc
	reload  sync.Mutex
	logger  *zap.Logger
}

// Option configures a Holder.
type Option func(*Holder)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Holder) {
		h.logger = l
	}
}

// NewHolder returns an empty holder. Call Reload (or Swap) before serving.
func NewHolder(load LoadFunc, opts ...Option) *Holder {
	h := &Holder{load: load}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = utils.OrNop(h.logger)
	return h
}

// Current returns the snapshot being served, or nil before the first load.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Swap publishes s and returns the snapshot it replaced.
func (h *Holder) Swap(s *Snapshot) *Snapshot {
	old := h.current.Swap(s)
	if s != nil {
		metrics.SnapshotRecords.Set(float64(s.Records.Len()))
	}
	return old
}

// Reload loads a new snapshot and publishes it. On failure the current snapshot stays
// in place and the error is returned.
//
// Replaced snapshots are not closed: requests that pinned them may still be running,
// and their in-memory indexes are released by the garbage collector.
func (h *Holder) Reload() (*Snapshot, error) {
	h.reload.Lock()
	defer h.reload.Unlock()

	s, err := h.load()
	if err != nil {
		metrics.RecordSnapshotLoad(0, err)
		h.logger.Error("snapshot load failed, keeping current snapshot", zap.Error(err))
		return nil, err
	}
	metrics.RecordSnapshotLoad(s.Records.Len(), nil)
	old := h.Swap(s)

	fields := []zap.Field{
		zap.String("version", s.Version),
		zap.Int("records", s.Records.Len()),
	}
	if old != nil {
		fields = append(fields, zap.String("previous_version", old.Version))
	}
	h.logger.Info("snapshot loaded", fields...)
	return s, nil
}

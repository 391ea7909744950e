package savegame

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tycoon.ai/internal/persistence/kv"
	"tycoon.ai/internal/persistence/snapshot"
)

const writeTimeout = 5 * time.Second

// Writer saves snapshots off the engine goroutine. Only the newest pending
// snapshot is kept; a failed write is logged and never retried.
type Writer struct {
	store kv.Store
	key   string
	log   *zap.Logger

	mu     sync.Mutex
	closed bool
	ch     chan snapshot.Snapshot
	wg     sync.WaitGroup

	saved     atomic.Uint64
	failed    atomic.Uint64
	coalesced atomic.Uint64

	onResult func(err error)
}

type WriterStats struct {
	Saved     uint64 `json:"saved"`
	Failed    uint64 `json:"failed"`
	Coalesced uint64 `json:"coalesced"`
}

func NewWriter(store kv.Store, key string, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Writer{
		store: store,
		key:   key,
		log:   log,
		ch:    make(chan snapshot.Snapshot, 1),
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop()
	}()
	return w
}

// OnResult registers a callback invoked from the writer goroutine after
// every write attempt. Must be set before the first Enqueue.
func (w *Writer) OnResult(fn func(err error)) { w.onResult = fn }

// Enqueue never blocks. It replaces any snapshot still waiting to be written
// and reports false once the writer is closed.
func (w *Writer) Enqueue(snap snapshot.Snapshot) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	for {
		select {
		case w.ch <- snap:
			return true
		default:
		}
		select {
		case <-w.ch:
			w.coalesced.Add(1)
		default:
		}
	}
}

// Close writes whatever is pending and stops the writer goroutine.
func (w *Writer) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Writer) Stats() WriterStats {
	return WriterStats{
		Saved:     w.saved.Load(),
		Failed:    w.failed.Load(),
		Coalesced: w.coalesced.Load(),
	}
}

func (w *Writer) loop() {
	for snap := range w.ch {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := Save(ctx, w.store, w.key, snap)
		cancel()
		if err != nil {
			w.failed.Add(1)
			w.log.Warn("save failed", zap.String("key", w.key), zap.Error(err))
		} else {
			w.saved.Add(1)
		}
		if w.onResult != nil {
			w.onResult(err)
		}
	}
}

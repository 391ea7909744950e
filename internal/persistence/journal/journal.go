// Package journal appends economic events to zstd-compressed JSONL files,
// one file per UTC day.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"tycoon.ai/internal/sim/game"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu     sync.Mutex
	curDay string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := w.now().UTC().Format("2006-01-02")
	if day != w.curDay {
		if err := w.rotateLocked(day); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	// Emit a complete block so readers see the entry before the frame closes.
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(day string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	// Each rotation appends a new zstd frame; readers decode concatenated frames.
	f, err := os.OpenFile(w.pathForDay(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curDay = day
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curDay = ""
	return err1
}

func (w *JSONLZstdWriter) pathForDay(day string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, day))
}

// ErrLedgerFull is returned when the ledger queue cannot take another entry.
var ErrLedgerFull = errors.New("ledger queue full")

const ledgerQueue = 4096

// Ledger records game.LedgerEntry values under <dataDir>/ledger. Entries are
// queued and written by a single goroutine; WriteEntry never blocks.
type Ledger struct {
	w   *JSONLZstdWriter
	log *zap.Logger

	mu     sync.Mutex
	closed bool
	ch     chan game.LedgerEntry
	wg     sync.WaitGroup

	written atomic.Uint64
	dropped atomic.Uint64
}

func NewLedger(dataDir string, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Ledger{
		w:   NewJSONLZstdWriter(filepath.Join(dataDir, "ledger"), "ledger"),
		log: log,
		ch:  make(chan game.LedgerEntry, ledgerQueue),
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for e := range l.ch {
			if err := l.w.Write(e); err != nil {
				l.dropped.Add(1)
				l.log.Warn("ledger write failed", zap.String("entry", e.ID), zap.Error(err))
				continue
			}
			l.written.Add(1)
		}
	}()
	return l
}

func (l *Ledger) WriteEntry(e game.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLedgerFull
	}
	select {
	case l.ch <- e:
		return nil
	default:
		l.dropped.Add(1)
		return ErrLedgerFull
	}
}

// Close flushes queued entries and closes the current file.
func (l *Ledger) Close() error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
	l.mu.Unlock()
	l.wg.Wait()
	return l.w.Close()
}

func (l *Ledger) Written() uint64 { return l.written.Load() }
func (l *Ledger) Dropped() uint64 { return l.dropped.Load() }

// ReadLedger decodes every entry under <dataDir>/ledger in file-name order.
// The newest file may still be open for writing or cut short by a crash; its
// entries are returned up to the first undecodable byte.
func ReadLedger(dataDir string) ([]game.LedgerEntry, error) {
	dir := filepath.Join(dataDir, "ledger")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl.zst") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	var out []game.LedgerEntry
	for i, p := range files {
		got, err := readFile(p)
		out = append(out, got...)
		if err != nil && i < len(files)-1 {
			return out, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
	}
	return out, nil
}

func readFile(path string) ([]game.LedgerEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []game.LedgerEntry
	jd := json.NewDecoder(dec)
	for {
		var e game.LedgerEntry
		if err := jd.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, e)
	}
}

// Package db is the persistence engine: a single-file SQLite store with a
// synchronized full-text index, versioned migrations applied at open, and
// a serialized-writer / concurrent-reader execution model. All public
// operations are asynchronous; completion callbacks run on the engine's
// worker goroutines and callers redispatch onto whatever context they need.
package db

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("db: not found")

// ErrClosed is delivered to the callback of any operation submitted
// after Close.
var ErrClosed = errors.New("db: engine closed")

// Change is emitted on the Changes channel after every committed mutation.
type Change struct{}

// Options configures Open. Nothing in the engine reaches for ambient
// state: the clock and all paths come in here.
type Options struct {
	// Path is the store file location.
	Path string
	// SeedPath, when set, names a bundled pre-populated store that is
	// copied to Path on first run if no store exists there yet.
	SeedPath string
	// Readers is the size of the read worker pool (default 4).
	Readers int
	// Now is the clock used by time-windowed queries (default time.Now).
	Now func() time.Time
}

// Engine owns the store. One writer goroutine drains the write queue so
// mutations are totally ordered; a small pool of reader goroutines drains
// the read queue in parallel (WAL mode keeps readers on a consistent
// snapshot while a write is in flight). Queues are unbounded: operations
// are accepted without backpressure and run to completion once submitted.
type Engine struct {
	db  *sqlx.DB
	now func() time.Time

	mu     sync.Mutex
	cond   *sync.Cond
	reads  []func(rejected error)
	writes []func(rejected error)
	closed bool
	wg     sync.WaitGroup

	changes chan Change
}

// Open copies the seed store if needed, opens the file, runs all pending
// migrations, and starts the workers. No operation is accepted before the
// migration pass completes.
func Open(opts Options) (*Engine, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("db: store path is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Readers <= 0 {
		opts.Readers = 4
	}

	if opts.SeedPath != "" {
		if err := seedIfMissing(opts.Path, opts.SeedPath); err != nil {
			return nil, err
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", opts.Path)
	conn, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", opts.Path, err)
	}

	if err := migrate(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	e := &Engine{
		db:      conn,
		now:     opts.Now,
		changes: make(chan Change, 1),
	}
	e.cond = sync.NewCond(&e.mu)

	e.wg.Add(1)
	go e.writerLoop()
	for i := 0; i < opts.Readers; i++ {
		e.wg.Add(1)
		go e.readerLoop()
	}

	log.Info().Str("path", opts.Path).Msg("store opened")
	return e, nil
}

// Changes delivers a signal after each committed mutation. The channel is
// buffered and coalescing: a slow consumer sees at least one signal for
// any burst of writes, not necessarily one per write.
func (e *Engine) Changes() <-chan Change {
	return e.changes
}

// Close drains both queues, stops the workers and closes the store.
// Operations submitted after Close complete with ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()

	e.wg.Wait()
	close(e.changes)
	return e.db.Close()
}

func (e *Engine) submitRead(fn func(rejected error)) {
	e.submit(&e.reads, fn)
}

func (e *Engine) submitWrite(fn func(rejected error)) {
	e.submit(&e.writes, fn)
}

// submit enqueues an operation for a worker, which runs it with a nil
// rejection. After Close nothing may touch the store or the changes
// channel, so the operation is rejected on the spot: it sees ErrClosed
// and hands it to its callback (on the submitting goroutine) without
// executing.
func (e *Engine) submit(queue *[]func(rejected error), fn func(rejected error)) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		fn(ErrClosed)
		return
	}
	*queue = append(*queue, fn)
	e.cond.Broadcast()
	e.mu.Unlock()
}

func (e *Engine) writerLoop() {
	defer e.wg.Done()
	for {
		fn, ok := e.next(&e.writes)
		if !ok {
			return
		}
		fn(nil)
	}
}

func (e *Engine) readerLoop() {
	defer e.wg.Done()
	for {
		fn, ok := e.next(&e.reads)
		if !ok {
			return
		}
		fn(nil)
	}
}

// next blocks until the queue has work, or the engine is closed and the
// queue drained.
func (e *Engine) next(queue *[]func(rejected error)) (func(rejected error), bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(*queue) == 0 {
		if e.closed {
			return nil, false
		}
		e.cond.Wait()
	}
	fn := (*queue)[0]
	*queue = (*queue)[1:]
	return fn, true
}

func (e *Engine) signalChange() {
	select {
	case e.changes <- Change{}:
	default:
	}
}

// seedIfMissing copies a bundled store file into the writable location on
// first run. An existing store is never overwritten.
func seedIfMissing(path, seedPath string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("db: stat %s: %w", path, err)
	}

	src, err := os.Open(seedPath)
	if err != nil {
		return fmt.Errorf("db: open seed store: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("db: create store: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("db: copy seed store: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("db: copy seed store: %w", err)
	}
	log.Info().Str("path", path).Str("seed", seedPath).Msg("seeded store from bundled copy")
	return nil
}

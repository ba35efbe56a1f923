package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LoggerConfig configures batching.
type LoggerConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// Logger buffers records and writes them to a Store when the buffer reaches
// BatchSize or every FlushInterval, whichever comes first. Store failures
// are logged and the batch is dropped; they never reach the caller.
type Logger struct {
	store Store
	cfg   LoggerConfig
	log   *zap.Logger

	mu     sync.Mutex
	buf    []Record
	closed bool

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewLogger starts the flush ticker. log may be nil.
func NewLogger(store Store, cfg LoggerConfig, log *zap.Logger) *Logger {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	if store == nil {
		store = NopStore{}
	}

	l := &Logger{
		store: store,
		cfg:   cfg,
		log:   log,
		stop:  make(chan struct{}),
	}

	l.wg.Add(1)
	go l.worker()

	return l
}

// Log buffers rec, flushing inline once the batch is full. Records logged
// after Close are dropped.
func (l *Logger) Log(ctx context.Context, rec Record) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.log.Warn("audit logger closed, dropping record", zap.String("id", rec.ID))
		return
	}
	l.buf = append(l.buf, rec)
	var batch []Record
	if len(l.buf) >= l.cfg.BatchSize {
		batch = l.takeLocked()
	}
	l.mu.Unlock()

	// A cancelled request must not lose its audit batch.
	l.write(context.WithoutCancel(ctx), batch)
}

// Flush writes whatever is buffered.
func (l *Logger) Flush(ctx context.Context) {
	l.mu.Lock()
	batch := l.takeLocked()
	l.mu.Unlock()

	l.write(ctx, batch)
}

// Close stops the ticker, waits for it to exit and flushes the remainder.
// It is safe to call more than once.
func (l *Logger) Close() error {
	l.once.Do(func() {
		close(l.stop)
		l.wg.Wait()

		l.mu.Lock()
		l.closed = true
		batch := l.takeLocked()
		l.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.write(ctx, batch)
	})
	return nil
}

// Pending returns the number of buffered records.
func (l *Logger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buf)
}

func (l *Logger) worker() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			l.Flush(ctx)
			cancel()
		}
	}
}

func (l *Logger) takeLocked() []Record {
	if len(l.buf) == 0 {
		return nil
	}
	batch := l.buf
	l.buf = nil
	return batch
}

func (l *Logger) write(ctx context.Context, batch []Record) {
	if len(batch) == 0 {
		return
	}
	if err := l.store.WriteBatch(ctx, batch); err != nil {
		l.log.Error("audit flush failed", zap.Error(err), zap.Int("count", len(batch)))
	}
}

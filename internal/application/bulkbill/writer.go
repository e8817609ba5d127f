package bulkbill

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/infrastructure/logger"
)

// deadLetter is an unpaid bill the writer could not store
type deadLetter struct {
	Bill *bill.RecipientBill
	Err  error
}

// recipientWriter stores unpaid recipient bills off the settlement path.
// Settlement tasks hand bills to a bounded queue; one goroutine drains it in
// batches. A failed batch is retried row by row and rows that still fail are
// kept as dead letters. Close must be called once, after the last Enqueue.
type recipientWriter struct {
	repo      bill.RecipientBillRepository
	batchSize int
	queue     chan *bill.RecipientBill
	done      chan struct{}
	ctx       context.Context

	mu      sync.Mutex
	dead    []deadLetter
	written int
}

func newRecipientWriter(ctx context.Context, repo bill.RecipientBillRepository, batchSize, queueSize int) *recipientWriter {
	w := &recipientWriter{
		repo:      repo,
		batchSize: batchSize,
		queue:     make(chan *bill.RecipientBill, queueSize),
		done:      make(chan struct{}),
		// writes already accepted must land even if the caller goes away
		ctx: context.WithoutCancel(ctx),
	}
	go w.run()
	return w
}

// Enqueue blocks while the queue is full. It does not observe cancellation:
// once a recipient has a bill number its bill must reach the writer.
func (w *recipientWriter) Enqueue(rb *bill.RecipientBill) {
	w.queue <- rb
}

// Close flushes what is queued, waits for the writer goroutine and returns
// the dead letters
func (w *recipientWriter) Close() (written int, dead []deadLetter) {
	close(w.queue)
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written, w.dead
}

func (w *recipientWriter) run() {
	defer close(w.done)
	batch := make([]*bill.RecipientBill, 0, w.batchSize)
	for rb := range w.queue {
		batch = append(batch, rb)
		if len(batch) >= w.batchSize {
			w.flush(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		w.flush(batch)
	}
}

func (w *recipientWriter) flush(batch []*bill.RecipientBill) {
	err := w.repo.CreateBatch(w.ctx, batch)
	if err == nil {
		w.record(len(batch), nil)
		return
	}

	logger.L(w.ctx).Warn("recipient bill batch failed, retrying row by row",
		zap.Int("batch_size", len(batch)),
		zap.Error(err),
	)
	written := 0
	var dead []deadLetter
	for _, rb := range batch {
		if err := w.repo.CreateBatch(w.ctx, []*bill.RecipientBill{rb}); err != nil {
			dead = append(dead, deadLetter{Bill: rb, Err: err})
			continue
		}
		written++
	}
	w.record(written, dead)
}

func (w *recipientWriter) record(written int, dead []deadLetter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written += written
	w.dead = append(w.dead, dead...)
}

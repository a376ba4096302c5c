package audit

import (
	"sync"

	"github.com/healthspace/dlt-portal/pkg/interfaces"
	"github.com/healthspace/dlt-portal/pkg/logger"
	"github.com/healthspace/dlt-portal/pkg/monitoring"
	"github.com/healthspace/dlt-portal/pkg/types"
)

// Writer decouples appointment operations from ledger submission. Append
// never blocks the caller: events go into a bounded queue and a background
// goroutine submits them. A full queue or a failed submission drops the
// event; the durable appointment record is unaffected either way.
type Writer struct {
	ledger  interfaces.LedgerClient
	logger  *logger.Logger
	queue   chan *types.AuditEvent
	done    chan struct{}
	stopped chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewWriter creates an audit writer and starts its drain goroutine
func NewWriter(ledger interfaces.LedgerClient, queueSize int, log *logger.Logger) *Writer {
	if queueSize <= 0 {
		queueSize = 256
	}

	w := &Writer{
		ledger:  ledger,
		logger:  log,
		queue:   make(chan *types.AuditEvent, queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.drain()
	return w
}

// Append enqueues one audit event, fire and forget. Events offered after
// Close, or while the queue is full, are dropped and counted.
func (w *Writer) Append(event *types.AuditEvent) {
	if event == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		monitoring.RecordAuditEvent("dropped")
		return
	}

	select {
	case w.queue <- event:
		monitoring.SetAuditQueueDepth(len(w.queue))
	default:
		monitoring.RecordAuditEvent("dropped")
		w.logger.WithFields(map[string]interface{}{
			"appointment_id": event.AppointmentID,
			"action":         event.Action,
		}).Warn("Audit queue full, event dropped")
	}
}

// Close stops accepting events, stops the drain goroutine, and submits
// whatever is still queued before returning.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	// Wait for the drain goroutine to exit so the remainder is submitted by
	// exactly one goroutine, in queue order.
	close(w.done)
	<-w.stopped

	for {
		select {
		case event := <-w.queue:
			w.submit(event)
		default:
			monitoring.SetAuditQueueDepth(0)
			return nil
		}
	}
}

// drain runs until Close, submitting queued events in order
func (w *Writer) drain() {
	defer close(w.stopped)
	for {
		select {
		case <-w.done:
			return
		case event := <-w.queue:
			w.submit(event)
			monitoring.SetAuditQueueDepth(len(w.queue))
		}
	}
}

func (w *Writer) submit(event *types.AuditEvent) {
	if err := w.ledger.RecordTransition(event); err != nil {
		monitoring.RecordAuditEvent("failed")
		w.logger.WithError(err).WithFields(map[string]interface{}{
			"appointment_id": event.AppointmentID,
			"action":         event.Action,
		}).Error("Failed to record audit event on ledger")
		return
	}
	monitoring.RecordAuditEvent("submitted")
}

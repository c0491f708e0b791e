package alert

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Notifier delivers one rendered message to the push channel.
type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

// Alerter is the producer-side surface handed to adapters. Enqueue never
// blocks; when the buffer is full the event is dropped and counted.
type Alerter interface {
	Important(event string, fields map[string]string)
}

const (
	defaultQueueSize     = 128
	defaultRateLimit     = 20
	defaultBatchInterval = 5 * time.Second
	defaultRateWindow    = time.Minute
	sendTimeout          = 20 * time.Second
)

type ManagerOptions struct {
	QueueSize     int
	RateLimit     int           // max sends per rate window
	RateWindow    time.Duration // defaults to one minute
	BatchInterval time.Duration // fixed flush interval
}

// Manager is the single consumer between event producers and the push
// channel. It batches queued events on a fixed interval and enforces a
// sliding-window rate limit so a burst of fills cannot flood the channel.
type Manager struct {
	exchange string
	notifier Notifier
	log      *logrus.Entry

	queue chan event
	stop  chan struct{}
	done  chan struct{}

	rateLimit     int
	rateWindow    time.Duration
	batchInterval time.Duration
	sentAt        []time.Time

	droppedTotal uint64

	mu     sync.RWMutex
	closed bool
}

type event struct {
	name   string
	fields map[string]string
}

func NewManager(exchange string, notifier Notifier, log *logrus.Entry) *Manager {
	return NewManagerWithOptions(exchange, notifier, log, ManagerOptions{})
}

func NewManagerWithOptions(exchange string, notifier Notifier, log *logrus.Entry, opts ManagerOptions) *Manager {
	if notifier == nil {
		return nil
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	rateLimit := opts.RateLimit
	if rateLimit <= 0 {
		rateLimit = defaultRateLimit
	}
	rateWindow := opts.RateWindow
	if rateWindow <= 0 {
		rateWindow = defaultRateWindow
	}
	batchInterval := opts.BatchInterval
	if batchInterval <= 0 {
		batchInterval = defaultBatchInterval
	}
	m := &Manager{
		exchange:      exchange,
		notifier:      notifier,
		log:           log,
		queue:         make(chan event, queueSize),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		rateLimit:     rateLimit,
		rateWindow:    rateWindow,
		batchInterval: batchInterval,
	}
	go m.loop()
	return m
}

// Important enqueues an event for delivery. Never blocks; full buffers drop
// the event with a warning so the trading path cannot stall on a slow
// channel.
func (m *Manager) Important(name string, fields map[string]string) {
	if m == nil || m.notifier == nil {
		return
	}
	ev := event{name: name, fields: cloneFields(fields)}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- ev:
	default:
		dropped := atomic.AddUint64(&m.droppedTotal, 1)
		if m.log != nil {
			m.log.WithFields(logrus.Fields{
				"event":         name,
				"dropped_total": dropped,
				"queue_cap":     cap(m.queue),
			}).Warn("alert queue full, event dropped")
		}
	}
}

// DroppedTotal reports how many events were lost to a full buffer.
func (m *Manager) DroppedTotal() uint64 {
	if m == nil {
		return 0
	}
	return atomic.LoadUint64(&m.droppedTotal)
}

// Close flushes what the rate limit still allows and stops the consumer.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.stop)
	m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) loop() {
	defer close(m.done)
	ticker := time.NewTicker(m.batchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.flush()
		case <-m.stop:
			m.flush()
			return
		}
	}
}

// flush drains queued events up to the rate-limit allowance. Events beyond
// the allowance stay queued for the next batch window.
func (m *Manager) flush() {
	for m.allowance() > 0 {
		select {
		case ev := <-m.queue:
			m.send(ev)
		default:
			return
		}
	}
}

func (m *Manager) allowance() int {
	now := time.Now()
	kept := m.sentAt[:0]
	for _, ts := range m.sentAt {
		if now.Sub(ts) < m.rateWindow {
			kept = append(kept, ts)
		}
	}
	m.sentAt = kept
	return m.rateLimit - len(m.sentAt)
}

func (m *Manager) send(ev event) {
	msg := m.buildMessage(ev.name, ev.fields)
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := m.notifier.Notify(ctx, msg); err != nil {
		if m.log != nil {
			m.log.WithField("event", ev.name).WithError(err).Error("alert delivery failed")
		}
		return
	}
	m.sentAt = append(m.sentAt, time.Now())
}

func (m *Manager) buildMessage(name string, fields map[string]string) string {
	lines := []string{
		"[perp-gateway] " + name,
		"time: " + time.Now().UTC().Format(time.RFC3339),
		"exchange: " + m.exchange,
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, k+": "+fields[k])
	}
	return strings.Join(lines, "\n")
}

func cloneFields(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

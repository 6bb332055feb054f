// Package bus implements the Message Bus: publish/subscribe, request/
// response, and point-to-point delivery of MessageEnvelopes, with
// monotonic delivery statistics.
package bus

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/algotrade/internal/tradsyserr"
	"github.com/abdoElHodaky/algotrade/pkg/clock"
)

// outputChannelBuffer is the gochannel transport's per-topic buffer.
// Subscriber-side forwarder goroutines drain it immediately into an
// unbounded queue, so in steady operation it never fills; it exists
// only to absorb momentary scheduling delay between a Publish call and
// its forwarder goroutines being scheduled.
const outputChannelBuffer = 10_000

// Envelope is the wire format for every message carried on the bus.
type Envelope struct {
	ID            uuid.UUID
	Timestamp     clock.UnixNanos
	Sender        string
	Recipient     string
	CorrelationID uuid.UUID
	MessageType   string
	Payload       []byte
}

// NewEnvelope builds an envelope with a fresh id and current timestamp.
func NewEnvelope(sender, messageType string, payload []byte) Envelope {
	return Envelope{
		ID:          uuid.New(),
		Timestamp:   clock.Now(),
		Sender:      sender,
		MessageType: messageType,
		Payload:     payload,
	}
}

// Reply builds a response envelope whose correlation id ties back to e.
func (e Envelope) Reply(sender, messageType string, payload []byte) Envelope {
	r := NewEnvelope(sender, messageType, payload)
	r.Recipient = e.Sender
	r.CorrelationID = e.ID
	return r
}

// RequestEnvelope pairs an inbound request with the reply port a
// handler must eventually send its response on.
type RequestEnvelope struct {
	Envelope Envelope
	Reply    chan<- Envelope
}

// Statistics is an immutable snapshot of bus delivery counters.
type Statistics struct {
	TotalDelivered  uint64
	PublishCount    uint64
	AvgLatencyNanos float64
}

type counters struct {
	totalDelivered uint64
	totalPublishNs uint64
	publishCount   uint64
}

// busMetrics mirrors Statistics as prometheus collectors, labeled by bus
// instance name so multiple Buses can register against the same
// Registerer without name collisions.
type busMetrics struct {
	delivered      prometheus.Counter
	publishTotal   prometheus.Counter
	publishLatency prometheus.Histogram
}

func newBusMetrics(registerer prometheus.Registerer, name string) *busMetrics {
	if registerer == nil {
		return nil
	}
	if name == "" {
		name = "default"
	}
	labels := prometheus.Labels{"bus": name}
	m := &busMetrics{
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "bus_messages_delivered_total",
			Help:        "Number of envelopes delivered to subscribers.",
			ConstLabels: labels,
		}),
		publishTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "bus_publish_total",
			Help:        "Number of Publish calls.",
			ConstLabels: labels,
		}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "bus_publish_latency_seconds",
			Help:        "Latency of transport.Publish calls.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
	}
	registerer.MustRegister(m.delivered, m.publishTotal, m.publishLatency)
	return m
}

// Option configures optional Bus behavior.
type Option func(*busOptions)

type busOptions struct {
	name       string
	registerer prometheus.Registerer
}

// WithMetrics publishes delivery/publish counters and publish latency to
// registerer, labeled with name so several Buses can share a registry.
func WithMetrics(registerer prometheus.Registerer, name string) Option {
	return func(o *busOptions) {
		o.registerer = registerer
		o.name = name
	}
}

// Bus implements the three message patterns described in the platform
// spec: pub/sub (topic fan-out), request/response (single handler per
// target, timeout-bound), and point-to-point (single endpoint per
// target). Pub/sub fan-out is backed by watermill's gochannel
// transport; request/response and point-to-point use the unbounded
// channel directly, mirroring tokio's mpsc/oneshot pairing in the
// platform this was ported from.
type Bus struct {
	logger    *zap.Logger
	transport *gochannel.GoChannel

	reqMu       sync.RWMutex
	reqHandlers map[string]*unbounded[RequestEnvelope]

	p2pMu     sync.RWMutex
	endpoints map[string]*unbounded[Envelope]

	stats   counters
	metrics *busMetrics
}

// New creates a Bus. logger may be nil, in which case a no-op logger
// is used. Pass WithMetrics to publish delivery/publish counters to a
// prometheus.Registerer; without it, no collectors are created.
func New(logger *zap.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o busOptions
	for _, opt := range opts {
		opt(&o)
	}
	wmLogger := watermill.NewStdLoggerWithOut(zapToWatermillWriter{logger}, false, false)
	transport := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: outputChannelBuffer,
			Persistent:          false,
		},
		wmLogger,
	)
	return &Bus{
		logger:      logger,
		transport:   transport,
		reqHandlers: make(map[string]*unbounded[RequestEnvelope]),
		endpoints:   make(map[string]*unbounded[Envelope]),
		metrics:     newBusMetrics(o.registerer, o.name),
	}
}

// Close releases the underlying transport.
func (b *Bus) Close() error {
	return b.transport.Close()
}

// Subscribe returns a receiver stream for topic. Every envelope
// published to topic after this call is delivered to the returned
// channel; a slow reader never blocks other subscribers or the
// publisher, since delivery drains into an unbounded per-subscriber
// queue.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan Envelope, error) {
	raw, err := b.transport.Subscribe(ctx, topic)
	if err != nil {
		return nil, tradsyserr.Wrap(err, tradsyserr.CodeBusTimeout, "subscribe failed")
	}

	out := newUnbounded[Envelope]()
	go func() {
		for msg := range raw {
			env, decodeErr := decodeEnvelope(msg)
			if decodeErr != nil {
				b.logger.Warn("dropping undecodable message", zap.String("topic", topic), zap.Error(decodeErr))
				msg.Ack()
				continue
			}
			out.Send(env)
			atomic.AddUint64(&b.stats.totalDelivered, 1)
			if b.metrics != nil {
				b.metrics.delivered.Inc()
			}
			msg.Ack()
		}
		out.Close()
	}()
	return out.Receive(), nil
}

// Publish delivers env to every current subscriber of topic. A topic
// with no subscribers is a silent no-op; publish never fails because a
// subscriber is gone.
func (b *Bus) Publish(topic string, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return tradsyserr.Wrap(err, tradsyserr.CodeEncodeFailure, "encode envelope")
	}
	msg := message.NewMessage(env.ID.String(), payload)

	start := time.Now()
	err = b.transport.Publish(topic, msg)
	elapsed := time.Since(start)

	atomic.AddUint64(&b.stats.totalPublishNs, uint64(elapsed.Nanoseconds()))
	atomic.AddUint64(&b.stats.publishCount, 1)
	if b.metrics != nil {
		b.metrics.publishTotal.Inc()
		b.metrics.publishLatency.Observe(elapsed.Seconds())
	}

	if err != nil {
		return tradsyserr.Wrap(err, tradsyserr.CodeBusTimeout, "publish failed")
	}
	return nil
}

// RegisterHandler registers the handler for target, replacing any prior
// registration, and returns the stream of inbound (envelope, reply
// port) pairs. Only one handler is ever live per target; a displaced
// registration is closed so its run goroutine exits rather than
// leaking.
func (b *Bus) RegisterHandler(target string) <-chan RequestEnvelope {
	b.reqMu.Lock()
	defer b.reqMu.Unlock()
	if old, ok := b.reqHandlers[target]; ok {
		old.Close()
	}
	u := newUnbounded[RequestEnvelope]()
	b.reqHandlers[target] = u
	return u.Receive()
}

// Request sends env to target's registered handler and blocks for its
// reply or until timeout elapses.
func (b *Bus) Request(ctx context.Context, target string, env Envelope, timeout time.Duration) (Envelope, error) {
	b.reqMu.RLock()
	handler, ok := b.reqHandlers[target]
	b.reqMu.RUnlock()
	if !ok {
		return Envelope{}, tradsyserr.Newf(tradsyserr.CodeNoHandler, "no handler registered for target %q", target)
	}

	reply := make(chan Envelope, 1)
	handler.Send(RequestEnvelope{Envelope: env, Reply: reply})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-reply:
		return resp, nil
	case <-timer.C:
		return Envelope{}, tradsyserr.Newf(tradsyserr.CodeBusTimeout, "request to %q timed out after %s", target, timeout)
	case <-ctx.Done():
		return Envelope{}, tradsyserr.Wrap(ctx.Err(), tradsyserr.CodeBusTimeout, "request cancelled")
	}
}

// RegisterEndpoint registers the point-to-point endpoint for target,
// replacing any prior registration, and returns its receiver stream.
// As with RegisterHandler, a displaced registration is closed so its
// run goroutine exits.
func (b *Bus) RegisterEndpoint(target string) <-chan Envelope {
	b.p2pMu.Lock()
	defer b.p2pMu.Unlock()
	if old, ok := b.endpoints[target]; ok {
		old.Close()
	}
	u := newUnbounded[Envelope]()
	b.endpoints[target] = u
	return u.Receive()
}

// Send delivers env to target's registered endpoint exactly once, or
// fails if no endpoint is registered.
func (b *Bus) Send(target string, env Envelope) error {
	b.p2pMu.RLock()
	endpoint, ok := b.endpoints[target]
	b.p2pMu.RUnlock()
	if !ok {
		return tradsyserr.Newf(tradsyserr.CodeEndpointNotFound, "no endpoint registered for target %q", target)
	}
	endpoint.Send(env)
	return nil
}

// Statistics returns a snapshot of delivery counters.
func (b *Bus) Statistics() Statistics {
	delivered := atomic.LoadUint64(&b.stats.totalDelivered)
	count := atomic.LoadUint64(&b.stats.publishCount)
	totalNs := atomic.LoadUint64(&b.stats.totalPublishNs)

	var avg float64
	if count > 0 {
		avg = float64(totalNs) / float64(count)
	}
	return Statistics{TotalDelivered: delivered, PublishCount: count, AvgLatencyNanos: avg}
}

func decodeEnvelope(msg *message.Message) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return Envelope{}, tradsyserr.Wrap(err, tradsyserr.CodeDecodeFailure, "decode envelope")
	}
	return env, nil
}

// zapToWatermillWriter adapts a zap.Logger to the io.Writer watermill's
// standard logger expects.
type zapToWatermillWriter struct {
	logger *zap.Logger
}

func (w zapToWatermillWriter) Write(p []byte) (int, error) {
	w.logger.Sugar().Debug(string(p))
	return len(p), nil
}

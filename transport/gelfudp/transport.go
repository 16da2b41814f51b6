package gelfudp

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sagernet/sing/common"
	"github.com/sagernet/sing/common/atomic"
	E "github.com/sagernet/sing/common/exceptions"
	"github.com/sagernet/sing/common/logger"
	"github.com/sagernet/sing/common/x/list"

	"github.com/graywire/graywire/gelf"
	"github.com/graywire/graywire/option"
)

const (
	DefaultQueueCapacity     = 100
	DefaultDrainBatchSize    = 10
	DefaultReconnectInterval = 30 * time.Second
)

// State is the connection state of the transport. It is owned exclusively
// by the transport; nothing else reads or mutates it directly.
type State uint8

const (
	StateDisconnected State = iota
	StateConnected
	StateReconnectPending
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateReconnectPending:
		return "reconnect_pending"
	default:
		return "unknown"
	}
}

// DialFunc opens the datagram socket. Replaceable in tests.
type DialFunc func(address string) (net.Conn, error)

// Config holds the transport configuration snapshot. A transport owns its
// config; there is no ambient or global state.
type Config struct {
	// Address is the collector endpoint (host:port). Empty disables the
	// transport entirely: no socket is ever opened.
	Address           string
	Mapper            gelf.Mapper
	QueueCapacity     int
	DrainBatchSize    int
	ReconnectInterval time.Duration
	Dial              DialFunc
	ErrorLogger       logger.Logger
}

// ParseConfig builds a Config from options, applying defaults.
func ParseConfig(options *option.GelfOptions, mapper gelf.Mapper) Config {
	config := Config{
		Mapper:            mapper,
		QueueCapacity:     DefaultQueueCapacity,
		DrainBatchSize:    DefaultDrainBatchSize,
		ReconnectInterval: DefaultReconnectInterval,
	}
	if !options.Enabled() {
		return config
	}
	config.Address = net.JoinHostPort(options.Host, strconv.Itoa(int(options.Port)))
	if options.QueueCapacity > 0 {
		config.QueueCapacity = options.QueueCapacity
	}
	if options.DrainBatchSize > 0 {
		config.DrainBatchSize = options.DrainBatchSize
	}
	if options.ReconnectInterval > 0 {
		config.ReconnectInterval = time.Duration(options.ReconnectInterval)
	}
	return config
}

type pendingDelivery struct {
	record gelf.Record
	// done, when non-nil, receives the outcome of the first transmission
	// attempt. It is signaled at most once.
	done chan<- error
}

// Transport delivers records to a remote collector over a connectionless
// datagram socket, asynchronously with respect to the caller. Records
// submitted while the collector is unreachable are buffered in a bounded
// FIFO queue and drained in batches after reconnecting. Delivery is
// best-effort: no acknowledgements, no retransmission.
type Transport struct {
	address           string
	mapper            gelf.Mapper
	queueCapacity     int
	drainBatchSize    int
	reconnectInterval time.Duration
	dial              DialFunc
	errorLogger       logger.Logger

	access         sync.Mutex
	state          State
	conn           net.Conn
	queue          list.List[pendingDelivery]
	reconnectTimer *time.Timer
	drainTimer     *time.Timer
	closed         bool
	dropped        atomic.Uint64
}

// NewTransport creates a transport from config. Call Start to open the
// socket; a transport with an empty address is permanently disabled and
// every operation on it is a no-op.
func NewTransport(config Config) *Transport {
	transport := &Transport{
		address:           config.Address,
		mapper:            config.Mapper,
		queueCapacity:     config.QueueCapacity,
		drainBatchSize:    config.DrainBatchSize,
		reconnectInterval: config.ReconnectInterval,
		dial:              config.Dial,
		errorLogger:       config.ErrorLogger,
	}
	if transport.queueCapacity <= 0 {
		transport.queueCapacity = DefaultQueueCapacity
	}
	if transport.drainBatchSize <= 0 {
		transport.drainBatchSize = DefaultDrainBatchSize
	}
	if transport.reconnectInterval <= 0 {
		transport.reconnectInterval = DefaultReconnectInterval
	}
	if transport.dial == nil {
		transport.dial = func(address string) (net.Conn, error) {
			return net.Dial("udp", address)
		}
	}
	if transport.errorLogger == nil {
		transport.errorLogger = newStderrLogger()
	}
	return transport
}

// Enabled reports whether a collector endpoint is configured.
func (t *Transport) Enabled() bool {
	return t.address != ""
}

// Start attempts the initial socket open. A failed attempt is not an
// error: the transport arms its reconnect timer and recovers on its own.
func (t *Transport) Start() error {
	if !t.Enabled() {
		return nil
	}
	t.access.Lock()
	defer t.access.Unlock()
	if t.closed || t.state != StateDisconnected {
		return nil
	}
	t.connectLocked()
	return nil
}

// Submit offers a record for delivery. It never blocks the caller and
// never fails: transport trouble is absorbed by the state machine, and at
// worst the oldest queued record is evicted to make room.
func (t *Transport) Submit(record gelf.Record) {
	t.submit(record, nil)
}

// Write implements the log output contract over Submit.
func (t *Transport) Write(record gelf.Record) error {
	t.Submit(record)
	return nil
}

func (t *Transport) submit(record gelf.Record, done chan<- error) {
	if !t.Enabled() {
		signal(done, E.New("gelf: transport disabled"))
		return
	}
	t.access.Lock()
	defer t.access.Unlock()
	if t.closed {
		signal(done, E.New("gelf: transport closed"))
		return
	}
	t.submitLocked(record, done)
}

// submitLocked either transmits directly or enqueues, reporting which
// path the record took. Only the connected state transmits directly, and
// only when no drain is in flight, so queued records keep their
// submission order. A send attempted while a reconnect is pending always
// goes to the queue.
func (t *Transport) submitLocked(record gelf.Record, done chan<- error) (direct bool) {
	if t.state != StateConnected || t.queue.Len() > 0 {
		t.enqueueLocked(pendingDelivery{record: record, done: done})
		return false
	}
	err := t.transmitLocked(record)
	signal(done, err)
	if err != nil {
		// Not dropped: the record re-enters the queue and goes out with
		// the next successful reconnect.
		t.enqueueLocked(pendingDelivery{record: record})
		t.downLocked(err)
	}
	return true
}

// transmitLocked encodes and sends one record. A serialization failure is
// consumed per-record: it is reported locally and returns nil so it never
// disturbs transport state or the rest of the queue.
func (t *Transport) transmitLocked(record gelf.Record) error {
	payload, err := gelf.Marshal(record)
	if err != nil {
		t.errorLogger.Error("drop unencodable record: ", err)
		return nil
	}
	_, err = t.conn.Write(payload)
	return err
}

// enqueueLocked appends to the bounded FIFO queue, evicting the oldest
// entry when at capacity. Losing old data is preferred over losing new.
func (t *Transport) enqueueLocked(delivery pendingDelivery) {
	for t.queue.Len() >= t.queueCapacity {
		evicted := t.queue.Remove(t.queue.Front())
		t.dropped.Add(1)
		signal(evicted.done, E.New("gelf: evicted from delivery queue"))
	}
	t.queue.PushBack(delivery)
}

// connectLocked attempts to open the socket, entering Connected on success
// or arming the reconnect timer on failure.
func (t *Transport) connectLocked() {
	conn, err := t.dial(t.address)
	if err != nil {
		t.errorLogger.Error("open socket to ", t.address, ": ", err)
		t.armReconnectLocked()
		return
	}
	t.conn = conn
	t.state = StateConnected
	t.scheduleDrainLocked()
}

// downLocked handles a socket error: release the connection and arm
// exactly one reconnect timer. Socket construction failure and mid-send
// failure land here identically.
func (t *Transport) downLocked(cause error) {
	t.errorLogger.Error("collector ", t.address, " unavailable: ", cause)
	common.Close(t.conn)
	t.conn = nil
	t.state = StateDisconnected
	t.armReconnectLocked()
}

func (t *Transport) armReconnectLocked() {
	if t.closed || t.reconnectTimer != nil {
		return
	}
	t.state = StateReconnectPending
	t.reconnectTimer = time.AfterFunc(t.reconnectInterval, t.onReconnectTimer)
}

func (t *Transport) onReconnectTimer() {
	t.access.Lock()
	defer t.access.Unlock()
	if t.closed {
		return
	}
	t.reconnectTimer = nil
	t.state = StateDisconnected
	t.connectLocked()
}

// scheduleDrainLocked arms the drain continuation. Draining runs in
// bounded batches and reschedules itself instead of looping, so a large
// backlog never monopolizes the scheduler.
func (t *Transport) scheduleDrainLocked() {
	if t.closed || t.drainTimer != nil || t.queue.Len() == 0 {
		return
	}
	t.drainTimer = time.AfterFunc(0, t.drainBatch)
}

func (t *Transport) drainBatch() {
	t.access.Lock()
	defer t.access.Unlock()
	t.drainTimer = nil
	if t.closed || t.state != StateConnected {
		return
	}
	for sent := 0; sent < t.drainBatchSize; sent++ {
		front := t.queue.Front()
		if front == nil {
			return
		}
		delivery := front.Value
		err := t.transmitLocked(delivery.record)
		signal(delivery.done, err)
		if err != nil {
			// Leave the record at the front of the queue; it already
			// received its first-attempt outcome.
			front.Value.done = nil
			t.downLocked(err)
			return
		}
		t.queue.Remove(front)
	}
	t.scheduleDrainLocked()
}

// TestConnectivity submits a synthetic probe record. Success means the
// local network stack accepted the datagram for transmission; with no
// acknowledgements on this transport, remote receipt is never confirmed.
func (t *Transport) TestConnectivity() (bool, string) {
	if !t.Enabled() {
		return false, "disabled"
	}
	probe := t.mapper.Normalize(7, "graywire connectivity probe", map[string]any{"probe": true}, time.Now())
	done := make(chan error, 1)

	// The branch decision and the submission share one lock acquisition,
	// so the probe always takes the path it reports.
	t.access.Lock()
	if t.closed {
		t.access.Unlock()
		return false, "closed"
	}
	direct := t.submitLocked(probe, done)
	t.access.Unlock()

	if !direct {
		return false, "collector " + t.address + " not connected, probe queued for delivery"
	}
	if err := <-done; err != nil {
		return false, "probe send failed: " + err.Error()
	}
	return true, "probe accepted by local stack for " + t.address + " (datagram delivery is not acknowledged by the collector)"
}

// Stats is a point-in-time observation of the transport.
type Stats struct {
	State       State
	QueueLength int
	Dropped     uint64
}

// Stats reports the current state, queue length and the number of records
// evicted from the queue since the transport was created.
func (t *Transport) Stats() Stats {
	t.access.Lock()
	defer t.access.Unlock()
	return Stats{
		State:       t.state,
		QueueLength: t.queue.Len(),
		Dropped:     t.dropped.Load(),
	}
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.access.Lock()
	defer t.access.Unlock()
	return t.state
}

// Close shuts the transport down: the reconnect timer and any pending
// drain are cancelled, the socket is released and queued undelivered
// records are discarded without flushing. Closing twice has no additional
// effect.
func (t *Transport) Close() error {
	t.access.Lock()
	defer t.access.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.reconnectTimer != nil {
		t.reconnectTimer.Stop()
		t.reconnectTimer = nil
	}
	if t.drainTimer != nil {
		t.drainTimer.Stop()
		t.drainTimer = nil
	}
	err := common.Close(t.conn)
	t.conn = nil
	for t.queue.Len() > 0 {
		discarded := t.queue.Remove(t.queue.Front())
		signal(discarded.done, E.New("gelf: transport closed"))
	}
	t.state = StateDisconnected
	return err
}

func signal(done chan<- error, err error) {
	if done == nil {
		return
	}
	select {
	case done <- err:
	default:
	}
}

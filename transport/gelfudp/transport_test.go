package gelfudp

import (
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graywire/graywire/gelf"
	"github.com/graywire/graywire/option"
)

var errWriteRefused = errors.New("write refused")

// fakeConn records datagram payloads instead of sending them.
type fakeConn struct {
	mu         sync.Mutex
	writes     [][]byte
	failWrites bool
	closeCount int
}

func (c *fakeConn) Write(payload []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return 0, errWriteRefused
	}
	buffered := make([]byte, len(payload))
	copy(buffered, payload)
	c.writes = append(c.writes, buffered)
	return len(payload), nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCount++
	return nil
}

func (c *fakeConn) setFailWrites(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWrites = fail
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *fakeConn) shortMessages(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	messages := make([]string, 0, len(c.writes))
	for _, payload := range c.writes {
		var doc map[string]any
		require.NoError(t, json.Unmarshal(payload, &doc))
		message, _ := doc[gelf.FieldShortMessage].(string)
		messages = append(messages, message)
	}
	return messages
}

func (c *fakeConn) Read([]byte) (int, error)         { return 0, nil }
func (c *fakeConn) LocalAddr() net.Addr              { return nil }
func (c *fakeConn) RemoteAddr() net.Addr             { return nil }
func (c *fakeConn) SetDeadline(time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

// fakeDialer fails a configurable number of times before handing out
// fresh fake connections.
type fakeDialer struct {
	mu                sync.Mutex
	failuresRemaining int
	dialCount         int
	conns             []*fakeConn
}

func (d *fakeDialer) dial(string) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialCount++
	if d.failuresRemaining > 0 {
		d.failuresRemaining--
		return nil, errors.New("network unreachable")
	}
	conn := &fakeConn{}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dialCount
}

func (d *fakeDialer) conn(index int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[index]
}

func testMapper() gelf.Mapper {
	return gelf.Mapper{Host: "test-host", AppName: "test-app"}
}

func testConfig(dialer *fakeDialer, reconnect time.Duration) Config {
	return Config{
		Address:           "collector.test:12201",
		Mapper:            testMapper(),
		QueueCapacity:     DefaultQueueCapacity,
		DrainBatchSize:    DefaultDrainBatchSize,
		ReconnectInterval: reconnect,
		Dial:              dialer.dial,
		ErrorLogger:       nopLogger{},
	}
}

type nopLogger struct{}

func (nopLogger) Trace(args ...any) {}
func (nopLogger) Debug(args ...any) {}
func (nopLogger) Info(args ...any)  {}
func (nopLogger) Warn(args ...any)  {}
func (nopLogger) Error(args ...any) {}
func (nopLogger) Fatal(args ...any) {}
func (nopLogger) Panic(args ...any) {}

func makeRecord(message string) gelf.Record {
	return testMapper().Normalize(6, message, nil, time.Now())
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSubmitWhileConnected(t *testing.T) {
	dialer := &fakeDialer{}
	transport := NewTransport(testConfig(dialer, time.Hour))
	defer transport.Close()
	require.NoError(t, transport.Start())
	require.Equal(t, StateConnected, transport.State())

	transport.Submit(makeRecord("one"))
	transport.Submit(makeRecord("two"))
	transport.Submit(makeRecord("three"))

	conn := dialer.conn(0)
	assert.Equal(t, 3, conn.writeCount())
	assert.Equal(t, []string{"one", "two", "three"}, conn.shortMessages(t))
	assert.Equal(t, 0, transport.Stats().QueueLength)
}

func TestSubmitWhileDisconnectedQueues(t *testing.T) {
	dialer := &fakeDialer{failuresRemaining: 1}
	transport := NewTransport(testConfig(dialer, time.Hour))
	defer transport.Close()
	require.NoError(t, transport.Start())
	require.Equal(t, StateReconnectPending, transport.State())

	transport.Submit(makeRecord("queued"))
	stats := transport.Stats()
	assert.Equal(t, 1, stats.QueueLength)
	assert.Equal(t, uint64(0), stats.Dropped)
	assert.Equal(t, 1, dialer.dials())
}

func TestQueueEvictsOldestAtCapacity(t *testing.T) {
	dialer := &fakeDialer{failuresRemaining: 1}
	config := testConfig(dialer, 50*time.Millisecond)
	transport := NewTransport(config)
	defer transport.Close()
	require.NoError(t, transport.Start())

	for i := 1; i <= 150; i++ {
		transport.Submit(makeRecord("record-" + strconv.Itoa(i)))
	}
	stats := transport.Stats()
	require.Equal(t, 100, stats.QueueLength)
	require.Equal(t, uint64(50), stats.Dropped)

	// The reconnect timer fires, the dial succeeds and the queue drains
	// in submission order: the 100 most recent records survive.
	waitFor(t, func() bool {
		return dialer.dials() >= 2 && dialer.conn(0).writeCount() == 100
	})
	messages := dialer.conn(0).shortMessages(t)
	require.Len(t, messages, 100)
	assert.Equal(t, "record-51", messages[0])
	assert.Equal(t, "record-150", messages[99])
	assert.Equal(t, 0, transport.Stats().QueueLength)
}

func TestDrainPreservesFIFOWithSmallBatches(t *testing.T) {
	dialer := &fakeDialer{failuresRemaining: 1}
	config := testConfig(dialer, 20*time.Millisecond)
	config.DrainBatchSize = 3
	transport := NewTransport(config)
	defer transport.Close()
	require.NoError(t, transport.Start())

	expected := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		message := "m" + strconv.Itoa(i)
		expected = append(expected, message)
		transport.Submit(makeRecord(message))
	}
	waitFor(t, func() bool {
		return dialer.dials() >= 2 && dialer.conn(0).writeCount() == 10
	})
	assert.Equal(t, expected, dialer.conn(0).shortMessages(t))
}

func TestSendFailureRequeuesAndArmsReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	interval := 80 * time.Millisecond
	transport := NewTransport(testConfig(dialer, interval))
	defer transport.Close()
	require.NoError(t, transport.Start())

	dialer.conn(0).setFailWrites(true)
	transport.Submit(makeRecord("survivor"))

	require.Equal(t, StateReconnectPending, transport.State())
	require.Equal(t, 1, transport.Stats().QueueLength)

	// No reconnect attempt before the interval elapses.
	time.Sleep(interval / 2)
	assert.Equal(t, 1, dialer.dials())

	// Exactly one attempt at/after the interval, then the record drains.
	waitFor(t, func() bool { return dialer.dials() == 2 })
	waitFor(t, func() bool { return dialer.conn(1).writeCount() == 1 })
	assert.Equal(t, []string{"survivor"}, dialer.conn(1).shortMessages(t))
	assert.Equal(t, StateConnected, transport.State())
}

func TestSubmitDuringReconnectPendingNeverSendsDirectly(t *testing.T) {
	dialer := &fakeDialer{}
	transport := NewTransport(testConfig(dialer, time.Hour))
	defer transport.Close()
	require.NoError(t, transport.Start())

	dialer.conn(0).setFailWrites(true)
	transport.Submit(makeRecord("first"))
	require.Equal(t, StateReconnectPending, transport.State())

	dialer.conn(0).setFailWrites(false)
	transport.Submit(makeRecord("second"))
	assert.Equal(t, 0, dialer.conn(0).writeCount())
	assert.Equal(t, 2, transport.Stats().QueueLength)
}

func TestSerializationFailureIsPerRecord(t *testing.T) {
	dialer := &fakeDialer{}
	transport := NewTransport(testConfig(dialer, time.Hour))
	defer transport.Close()
	require.NoError(t, transport.Start())

	poisoned := makeRecord("poisoned")
	poisoned.Extra = map[string]any{"bad": make(chan int)}
	transport.Submit(poisoned)
	transport.Submit(makeRecord("healthy"))

	assert.Equal(t, StateConnected, transport.State())
	assert.Equal(t, []string{"healthy"}, dialer.conn(0).shortMessages(t))
}

func TestCloseIsIdempotent(t *testing.T) {
	dialer := &fakeDialer{}
	transport := NewTransport(testConfig(dialer, time.Hour))
	require.NoError(t, transport.Start())
	transport.Submit(makeRecord("before close"))

	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())
	assert.Equal(t, 1, dialer.conn(0).closeCount)

	// Submissions after close are swallowed.
	transport.Submit(makeRecord("after close"))
	assert.Equal(t, 0, transport.Stats().QueueLength)
	assert.Equal(t, 1, dialer.conn(0).writeCount())
}

func TestCloseDiscardsQueueAndCancelsReconnect(t *testing.T) {
	dialer := &fakeDialer{failuresRemaining: 10}
	interval := 30 * time.Millisecond
	transport := NewTransport(testConfig(dialer, interval))
	require.NoError(t, transport.Start())
	transport.Submit(makeRecord("doomed"))
	require.Equal(t, 1, transport.Stats().QueueLength)

	require.NoError(t, transport.Close())
	assert.Equal(t, 0, transport.Stats().QueueLength)

	// The pending reconnect never fires after Close returns.
	dials := dialer.dials()
	time.Sleep(3 * interval)
	assert.Equal(t, dials, dialer.dials())
}

func TestDisabledTransportIsNoOp(t *testing.T) {
	config := ParseConfig(&option.GelfOptions{}, testMapper())
	config.Dial = func(string) (net.Conn, error) {
		t.Fatal("disabled transport must not open a socket")
		return nil, nil
	}
	transport := NewTransport(config)
	defer transport.Close()

	require.False(t, transport.Enabled())
	require.NoError(t, transport.Start())
	transport.Submit(makeRecord("nowhere"))
	assert.Equal(t, 0, transport.Stats().QueueLength)

	success, detail := transport.TestConnectivity()
	assert.False(t, success)
	assert.Equal(t, "disabled", detail)
}

func TestConnectivityProbe(t *testing.T) {
	dialer := &fakeDialer{}
	transport := NewTransport(testConfig(dialer, time.Hour))
	defer transport.Close()
	require.NoError(t, transport.Start())

	success, detail := transport.TestConnectivity()
	assert.True(t, success)
	assert.Contains(t, detail, "not acknowledged")
	assert.Equal(t, 1, dialer.conn(0).writeCount())
}

func TestConnectivityProbeSendFailure(t *testing.T) {
	dialer := &fakeDialer{}
	transport := NewTransport(testConfig(dialer, time.Hour))
	defer transport.Close()
	require.NoError(t, transport.Start())

	dialer.conn(0).setFailWrites(true)
	success, detail := transport.TestConnectivity()
	assert.False(t, success)
	assert.Contains(t, detail, "probe send failed")

	// The failed probe re-enters the queue and the transport arms its
	// reconnect timer, same as any other send failure.
	assert.Equal(t, StateReconnectPending, transport.State())
	assert.Equal(t, 1, transport.Stats().QueueLength)
}

func TestConnectivityProbeWhileDisconnected(t *testing.T) {
	dialer := &fakeDialer{failuresRemaining: 1}
	transport := NewTransport(testConfig(dialer, time.Hour))
	defer transport.Close()
	require.NoError(t, transport.Start())

	success, detail := transport.TestConnectivity()
	assert.False(t, success)
	assert.Contains(t, detail, "not connected")
	assert.Equal(t, 1, transport.Stats().QueueLength)
}

func TestParseConfigDefaults(t *testing.T) {
	config := ParseConfig(&option.GelfOptions{Host: "collector", Port: 12201}, testMapper())
	assert.Equal(t, "collector:12201", config.Address)
	assert.Equal(t, DefaultQueueCapacity, config.QueueCapacity)
	assert.Equal(t, DefaultDrainBatchSize, config.DrainBatchSize)
	assert.Equal(t, DefaultReconnectInterval, config.ReconnectInterval)
}

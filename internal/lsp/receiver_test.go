package lsp

import (
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semtok/internal/process"
)

type receiverHarness struct {
	conn   *Conn
	recv   *Receiver
	poller *process.Poller
	r      *os.File
	w      *os.File // server side: frames written here reach the receiver
}

func newReceiverHarness(t *testing.T) *receiverHarness {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	poller, err := process.NewPoller(r)
	require.NoError(t, err)

	h := &receiverHarness{conn: NewConn(io.Discard), poller: poller, r: r, w: w}
	h.recv = StartReceiver(h.conn, r, poller, WithPollInterval(10*time.Millisecond))
	t.Cleanup(func() {
		h.recv.Stop()
		poller.Close()
		r.Close()
		w.Close()
	})
	return h
}

func waitDone(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}

func TestReceiver_DispatchesFrames(t *testing.T) {
	h := newReceiverHarness(t)

	p1, err := h.conn.Request("a", nil)
	require.NoError(t, err)
	p2, err := h.conn.Request("b", nil)
	require.NoError(t, err)

	// Two frames, split across writes at awkward boundaries.
	data := frame(`{"jsonrpc":"2.0","id":1,"result":"one"}`) + frame(`{"jsonrpc":"2.0","id":2,"result":"two"}`)
	for _, chunk := range []string{data[:7], data[7:30], data[30:]} {
		_, err := h.w.WriteString(chunk)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	waitDone(t, p1.Done())
	waitDone(t, p2.Done())
	raw, err := p2.Result()
	require.NoError(t, err)
	assert.Equal(t, `"two"`, string(raw))
}

func TestReceiver_EOFFailsPending(t *testing.T) {
	h := newReceiverHarness(t)

	p, err := h.conn.Request("initialize", nil)
	require.NoError(t, err)

	require.NoError(t, h.w.Close())
	waitDone(t, h.recv.Done())

	_, err = p.Result()
	assert.ErrorIs(t, err, ErrServerExited)
	assert.ErrorIs(t, h.recv.Err(), ErrServerExited)
}

func TestReceiver_TruncatedFrame(t *testing.T) {
	h := newReceiverHarness(t)

	p, err := h.conn.Request("initialize", nil)
	require.NoError(t, err)

	_, err = h.w.WriteString("Content-Length: 100\r\n\r\n{\"id\":1")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, p.Ready())

	require.NoError(t, h.w.Close())
	waitDone(t, h.recv.Done())

	_, err = p.Result()
	var fe *FramingError
	assert.ErrorAs(t, err, &fe)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestReceiver_MalformedHeaderStopsLoop(t *testing.T) {
	h := newReceiverHarness(t)

	p, err := h.conn.Request("x", nil)
	require.NoError(t, err)

	_, err = h.w.WriteString("Content-Length: nope\r\n\r\n")
	require.NoError(t, err)
	waitDone(t, h.recv.Done())

	_, err = p.Result()
	var fe *FramingError
	assert.ErrorAs(t, err, &fe)
	var fe2 *FramingError
	assert.ErrorAs(t, h.conn.Err(), &fe2)
}

func TestReceiver_StopJoinsBeforeClose(t *testing.T) {
	h := newReceiverHarness(t)

	start := time.Now()
	require.NoError(t, h.recv.Stop())
	assert.Less(t, time.Since(start), time.Second)

	select {
	case <-h.recv.Done():
	default:
		t.Fatal("Stop returned before the loop exited")
	}

	// The reader is idle now; closing it must not disturb anything.
	require.NoError(t, h.r.Close())
	require.NoError(t, h.recv.Stop())
	assert.NoError(t, h.conn.Err())
}

func TestReceiver_StopIsPromptWithLongInterval(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()
	poller, err := process.NewPoller(r)
	require.NoError(t, err)
	defer poller.Close()

	recv := StartReceiver(NewConn(io.Discard), r, poller, WithPollInterval(time.Hour))
	time.Sleep(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		recv.Stop()
		close(done)
	}()
	waitDone(t, done)
}

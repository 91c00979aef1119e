package connectivity

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignal_StartsOffline(t *testing.T) {
	s := NewSignal()
	assert.False(t, s.Online())
}

func TestSignal_EdgesOnly(t *testing.T) {
	s := NewSignal()
	ch := s.Subscribe()

	s.Set(true)
	s.Set(true) // no edge, no event
	s.Set(false)

	assert.True(t, <-ch)
	assert.False(t, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra edge: %v", v)
	default:
	}
}

func TestSignal_BecameOnlineFiresOnUpEdgeOnly(t *testing.T) {
	s := NewSignal()
	up := s.BecameOnline()

	s.Set(false) // already offline, no edge
	select {
	case <-up:
		t.Fatal("became-online fired without an up edge")
	default:
	}

	s.Set(true)
	select {
	case <-up:
	case <-time.After(time.Second):
		t.Fatal("became-online did not fire on up edge")
	}

	s.Set(false)
	select {
	case <-up:
		t.Fatal("became-online fired on down edge")
	default:
	}
}

func TestSignal_BecameOnlineCoalesces(t *testing.T) {
	s := NewSignal()
	up := s.BecameOnline()

	// Three reconnects before anyone drains: one wakeup.
	for i := 0; i < 3; i++ {
		s.Set(true)
		s.Set(false)
	}
	s.Set(true)

	<-up
	select {
	case <-up:
		t.Fatal("up edges were not coalesced")
	default:
	}
}

// fakeConn scripts the watcher's view of an AMQP connection.
type fakeConn struct {
	closed chan *amqp.Error
}

func (c *fakeConn) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	go func() {
		if err, ok := <-c.closed; ok {
			receiver <- err
		}
	}()
	return receiver
}

func (c *fakeConn) Close() error { return nil }

func TestWatcher_FlipsSignalOnConnectAndLoss(t *testing.T) {
	sig := NewSignal()
	w := NewWatcher("amqp://unused", sig)
	w.delay = time.Millisecond

	conn := &fakeConn{closed: make(chan *amqp.Error, 1)}
	dials := make(chan struct{}, 16)
	w.dial = func(string) (amqpConn, error) {
		dials <- struct{}{}
		return conn, nil
	}

	edges := sig.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	<-dials
	assert.True(t, <-edges, "connect must raise the up edge")
	assert.True(t, sig.Online())

	// Drop the connection: signal goes offline, watcher redials.
	conn.closed <- &amqp.Error{Code: 320, Reason: "connection closed"}
	assert.False(t, <-edges)

	select {
	case <-dials:
	case <-time.After(time.Second):
		t.Fatal("watcher did not redial after loss")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, sig.Online(), "watcher must leave the signal offline")
}

func TestWatcher_KeepsRedialingWhileUnreachable(t *testing.T) {
	sig := NewSignal()
	w := NewWatcher("amqp://unused", sig)
	w.delay = time.Millisecond

	attempts := make(chan struct{}, 16)
	w.dial = func(string) (amqpConn, error) {
		attempts <- struct{}{}
		return nil, errors.New("connection refused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 3; i++ {
		select {
		case <-attempts:
		case <-time.After(time.Second):
			t.Fatalf("watcher stopped dialing after %d attempts", i)
		}
	}
	assert.False(t, sig.Online())

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

package mac

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// fakeRadio is a minimal Radio double for sender/receiver unit tests that
// don't need a full simulated medium: Transmit succeeds in full unless an
// onTx hook is set, and Receive serves whatever bytes are pushed onto inbox.
type fakeRadio struct {
	mu      sync.Mutex
	tx      atomic.Int32
	inUse   bool
	idle    time.Duration
	inbox   chan []byte
	onTx    func(data []byte) (int, error)
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{inbox: make(chan []byte, 16)}
}

func (r *fakeRadio) Transmit(data []byte) (int, error) {
	r.tx.Add(1)
	r.mu.Lock()
	onTx := r.onTx
	r.mu.Unlock()
	if onTx != nil {
		return onTx(data)
	}
	return len(data), nil
}

func (r *fakeRadio) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-r.inbox:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *fakeRadio) InUse() bool { return r.inUse }

func (r *fakeRadio) IdleTime() time.Duration { return r.idle }

func (r *fakeRadio) Clock() time.Duration { return time.Duration(time.Now().UnixNano()) }

func (r *fakeRadio) txCount() int { return int(r.tx.Load()) }

func (r *fakeRadio) deliver(data []byte) {
	r.inbox <- data
}

func (r *fakeRadio) setOnTransmit(f func(data []byte) (int, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTx = f
}

// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

import (
	"sync"
	"sync/atomic"
)

// fakeBroker is a configurable AccessBroker used across this package's
// tests. Its zero value acknowledges every command/load/saveflush with
// success, which is enough for the pass-through and happy-path scenarios;
// individual tests override the *Func fields to inject failures.
type fakeBroker struct {
	mu sync.Mutex

	sendFunc func(cmd *Tpm2Command) (*Tpm2Response, ResponseCode)
	loadFunc func(ctx []byte) (Handle, ResponseCode)
	saveFunc func(phandle Handle) ([]byte, ResponseCode)

	sendCalls int
	loadCalls int
	saveCalls int

	nextPhandle Handle

	// inFlight detects a caller violating the single-threaded-TPM
	// assumption scenario 8 exercises: no two of SendCommand/ContextLoad/
	// ContextSaveFlush may run concurrently.
	inFlight  int32
	reentered int32
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{nextPhandle: Handle(uint32(HandleTypeTransient)<<24 | 1)}
}

func (b *fakeBroker) enter() func() {
	if atomic.AddInt32(&b.inFlight, 1) != 1 {
		atomic.StoreInt32(&b.reentered, 1)
	}
	return func() { atomic.AddInt32(&b.inFlight, -1) }
}

func (b *fakeBroker) sawReentrancy() bool {
	return atomic.LoadInt32(&b.reentered) != 0
}

func (b *fakeBroker) SendCommand(cmd *Tpm2Command) (*Tpm2Response, ResponseCode) {
	defer b.enter()()
	b.mu.Lock()
	b.sendCalls++
	fn := b.sendFunc
	b.mu.Unlock()

	if fn != nil {
		return fn(cmd)
	}
	return NewResponseRC(cmd.Connection(), cmd.CommandCode(), Success), Success
}

func (b *fakeBroker) ContextLoad(ctx []byte) (Handle, ResponseCode) {
	defer b.enter()()
	b.mu.Lock()
	b.loadCalls++
	fn := b.loadFunc
	b.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	b.mu.Lock()
	b.nextPhandle++
	p := b.nextPhandle
	b.mu.Unlock()
	return p, Success
}

func (b *fakeBroker) ContextSaveFlush(phandle Handle) ([]byte, ResponseCode) {
	defer b.enter()()
	b.mu.Lock()
	b.saveCalls++
	fn := b.saveFunc
	b.mu.Unlock()

	if fn != nil {
		return fn(phandle)
	}
	return []byte{0x01}, Success
}

// fakeSink records every response enqueued to it.
type fakeSink struct {
	mu        sync.Mutex
	responses []*Tpm2Response
}

func (s *fakeSink) Enqueue(resp *Tpm2Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, resp)
}

func (s *fakeSink) last() *Tpm2Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responses) == 0 {
		return nil
	}
	return s.responses[len(s.responses)-1]
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

import (
	"context"
	"sync"
	"testing"
	"time"
)

func startTestDispatcher(t *testing.T, broker AccessBroker) (*ResourceManager, *fakeSink, func()) {
	t.Helper()
	sink := &fakeSink{}
	rm := New(broker, Config{QueueDepth: 16}, WithSink(sink))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		rm.Run(ctx)
	}()
	return rm, sink, func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
		defer shutdownCancel()
		_ = rm.Shutdown(shutdownCtx)
		cancel()
		<-done
	}
}

func waitForCount(t *testing.T, sink *fakeSink, want int) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if sink.count() >= want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d responses, got %d", want, sink.count())
		case <-time.After(time.Millisecond):
		}
	}
}

// TestDispatcherCreatePrimaryThenUse covers SPEC_FULL.md scenario 1.
func TestDispatcherCreatePrimaryThenUse(t *testing.T) {
	broker := newFakeBroker()
	phandle := Handle(uint32(HandleTypeTransient)<<24 | 0x01)
	broker.sendFunc = func(cmd *Tpm2Command) (*Tpm2Response, ResponseCode) {
		if cmd.CommandCode() == CommandCreatePrimary {
			return NewTpm2Response(cmd.Connection(), TagNoSessions, cmd.CommandCode(), Success, phandle, nil), Success
		}
		return NewResponseRC(cmd.Connection(), cmd.CommandCode(), Success), Success
	}

	rm, sink, stop := startTestDispatcher(t, broker)
	defer stop()

	conn := NewConnection(8)
	rm.Enqueue(NewTpm2Command(conn, TagNoSessions, CommandCreatePrimary, nil, nil))
	waitForCount(t, sink, 1)

	resp := sink.last()
	if !resp.IsSuccess() {
		t.Fatalf("expected success, got rc 0x%08x", uint32(resp.ResponseCode()))
	}
	if !resp.HasHandle() || !resp.Handle().IsTransient() {
		t.Fatalf("expected a transient vhandle in the response")
	}
	vhandle := resp.Handle()
	entry := conn.Transient().Vlookup(vhandle)
	if entry == nil {
		t.Fatalf("expected a map entry for %s", vhandle)
	}
	if entry.IsLoaded() {
		t.Errorf("expected the entry to be evicted (unloaded) after the command completes")
	}
	if len(entry.Context) == 0 {
		t.Errorf("expected a saved context after eviction")
	}

	rm.Enqueue(NewTpm2Command(conn, TagNoSessions, CommandLoad, []Handle{vhandle}, nil))
	waitForCount(t, sink, 2)
	if entry.IsLoaded() {
		t.Errorf("expected the entry to be evicted again after the second command")
	}
}

// TestDispatcherOverQuotaRejection covers SPEC_FULL.md scenario 2.
func TestDispatcherOverQuotaRejection(t *testing.T) {
	broker := newFakeBroker()
	rm, sink, stop := startTestDispatcher(t, broker)
	defer stop()

	conn := NewConnection(1)
	conn.Transient().Insert(&HandleMapEntry{Vhandle: conn.Transient().NextVhandle()})

	rm.Enqueue(NewTpm2Command(conn, TagNoSessions, CommandCreatePrimary, nil, nil))
	waitForCount(t, sink, 1)

	resp := sink.last()
	if resp.ResponseCode() != RCObjectMemory {
		t.Errorf("expected RCObjectMemory, got 0x%08x", uint32(resp.ResponseCode()))
	}
	if broker.sendCalls != 0 {
		t.Errorf("expected the broker never to be contacted")
	}
}

// TestDispatcherTwoConnectionsCrossInterleave covers SPEC_FULL.md scenario 6.
func TestDispatcherTwoConnectionsCrossInterleave(t *testing.T) {
	broker := newFakeBroker()
	rm, sink, stop := startTestDispatcher(t, broker)
	defer stop()

	connA := NewConnection(8)
	connB := NewConnection(8)
	vA := connA.Transient().NextVhandle()
	vB := connB.Transient().NextVhandle()
	connA.Transient().Insert(&HandleMapEntry{Vhandle: vA, Context: []byte{0xaa}})
	connB.Transient().Insert(&HandleMapEntry{Vhandle: vB, Context: []byte{0xbb}})

	rm.Enqueue(NewTpm2Command(connA, TagNoSessions, CommandLoad, []Handle{vA}, nil))
	rm.Enqueue(NewTpm2Command(connB, TagNoSessions, CommandLoad, []Handle{vB}, nil))
	waitForCount(t, sink, 2)

	if entry := connA.Transient().Vlookup(vA); entry.IsLoaded() {
		t.Errorf("expected connA's entry to be unloaded after its command completes")
	}
	if entry := connB.Transient().Vlookup(vB); entry.IsLoaded() {
		t.Errorf("expected connB's entry to be unloaded after its command completes")
	}
}

// TestDispatcherContextLoadFailureMidSequence covers SPEC_FULL.md scenario 7.
func TestDispatcherContextLoadFailureMidSequence(t *testing.T) {
	broker := newFakeBroker()
	calls := 0
	broker.loadFunc = func(ctx []byte) (Handle, ResponseCode) {
		calls++
		if calls == 1 {
			return 0x80000042, Success
		}
		return HandleUnassigned, RCGeneralFailure
	}

	rm, sink, stop := startTestDispatcher(t, broker)
	defer stop()

	conn := NewConnection(8)
	v1 := conn.Transient().NextVhandle()
	v2 := conn.Transient().NextVhandle()
	conn.Transient().Insert(&HandleMapEntry{Vhandle: v1, Context: []byte{0x01}})
	conn.Transient().Insert(&HandleMapEntry{Vhandle: v2, Context: []byte{0x02}})

	rm.Enqueue(NewTpm2Command(conn, TagNoSessions, CommandLoad, []Handle{v1, v2}, nil))
	waitForCount(t, sink, 1)

	resp := sink.last()
	if resp.ResponseCode() != RCGeneralFailure {
		t.Fatalf("expected RCGeneralFailure, got 0x%08x", uint32(resp.ResponseCode()))
	}
	if broker.sendCalls != 0 {
		t.Errorf("expected SendCommand never to be called after a mid-sequence load failure")
	}
	if entry := conn.Transient().Vlookup(v1); entry.IsLoaded() {
		t.Errorf("expected the first entry's physical slot to be released despite the overall failure")
	}
}

// TestDispatcherConcurrentProducersSerializeOnBroker covers SPEC_FULL.md
// scenario 8: many goroutines enqueue concurrently for distinct connections,
// and the broker must never observe two in-flight calls at once.
func TestDispatcherConcurrentProducersSerializeOnBroker(t *testing.T) {
	broker := newFakeBroker()
	rm, sink, stop := startTestDispatcher(t, broker)
	defer stop()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := NewConnection(8)
			rm.Enqueue(NewTpm2Command(conn, TagNoSessions, CommandCreatePrimary, nil, nil))
		}()
	}
	wg.Wait()
	waitForCount(t, sink, n)

	if broker.sawReentrancy() {
		t.Errorf("access broker observed two in-flight commands at once")
	}
}

func TestDispatcherFlushOnUnknownVhandle(t *testing.T) {
	broker := newFakeBroker()
	rm, sink, stop := startTestDispatcher(t, broker)
	defer stop()

	conn := NewConnection(8)
	unknown := Handle(uint32(HandleTypeTransient)<<24 | 0x00abcdef)
	rm.Enqueue(NewTpm2Command(conn, TagNoSessions, CommandFlushContext, nil, handleParam(unknown)))
	waitForCount(t, sink, 1)

	if sink.last().ResponseCode() != ErrorP1 {
		t.Errorf("expected ErrorP1, got 0x%08x", uint32(sink.last().ResponseCode()))
	}
}

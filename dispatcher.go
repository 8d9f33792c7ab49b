// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

import "context"

// defaultQueueDepth is used when Config.QueueDepth is zero.
const defaultQueueDepth = 64

// maxTouchedEntries bounds the pre-allocation of a command's touched-entry
// list: at most 3 command handles (TPM 2.0's maximum handle-area size) plus
// the single handle a response can carry. SPEC_FULL.md's redesign notes call
// out the original C implementation's off-by-one around this same bound;
// here it is just a documented capacity hint, not a load-bearing size.
const maxTouchedEntries = 4

// Config holds the options a ResourceManager is constructed with. The core
// never reads configuration from the environment or a file itself - that is
// the ambient cmd/tpm2-resourcemgrd layer's job.
type Config struct {
	// QueueDepth is the capacity of the bounded input queue. Enqueue blocks
	// the caller when it is full, which is this package's only form of
	// backpressure.
	QueueDepth int
}

// Option configures a ResourceManager at construction time.
type Option func(*ResourceManager)

// WithLogger overrides the ResourceManager's Logger. The default discards
// everything.
func WithLogger(logger Logger) Option {
	return func(rm *ResourceManager) { rm.logger = logger }
}

// WithSink configures the sink responses are enqueued to, equivalent to
// calling AddSink after construction.
func WithSink(sink Sink) Option {
	return func(rm *ResourceManager) { rm.sink = sink }
}

// ResourceManager is the Dispatcher (C8): a single worker goroutine bound to
// an MPSC input queue, serializing every command against one AccessBroker.
type ResourceManager struct {
	broker AccessBroker
	sink   Sink
	logger Logger
	queue  chan queueMessage
	done   chan struct{}
}

// New constructs a ResourceManager bound to broker. Call Run in its own
// goroutine to start the worker.
func New(broker AccessBroker, cfg Config, opts ...Option) *ResourceManager {
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	rm := &ResourceManager{
		broker: broker,
		logger: nopLogger{},
		queue:  make(chan queueMessage, depth),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rm)
	}
	return rm
}

// AddSink configures the downstream sink responses are enqueued to.
func (rm *ResourceManager) AddSink(sink Sink) {
	rm.sink = sink
}

// Enqueue submits cmd for processing. It blocks if the input queue is full.
func (rm *ResourceManager) Enqueue(cmd *Tpm2Command) {
	rm.queue <- commandMessage(cmd)
}

// Unblock wakes a worker that may be blocked on an empty queue without
// requesting shutdown, by enqueueing a CHECK_CANCEL control message. It is
// non-blocking: if the queue is momentarily full the worker is already about
// to run again anyway, so the wake-up is unnecessary.
func (rm *ResourceManager) Unblock() {
	select {
	case rm.queue <- controlMessage(controlCheckCancel):
	default:
	}
}

// Shutdown requests the worker stop after draining any in-flight command,
// and waits for it to exit or for ctx to be done, whichever comes first.
func (rm *ResourceManager) Shutdown(ctx context.Context) error {
	select {
	case rm.queue <- controlMessage(controlExit):
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-rm.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the worker's body. It dequeues messages until a controlExit message
// arrives or ctx is cancelled, running the per-command pipeline described in
// SPEC_FULL.md section 4.8 for every command it sees. Run returns when the
// worker has stopped; callers typically run it in its own goroutine.
func (rm *ResourceManager) Run(ctx context.Context) {
	defer close(rm.done)
	for {
		select {
		case msg := <-rm.queue:
			if msg.isControl() {
				if msg.control == controlExit {
					return
				}
				// controlCheckCancel: nothing to do but loop back around
				// and let the select re-evaluate ctx.Done().
				continue
			}
			rm.process(msg.cmd)
		case <-ctx.Done():
			return
		}
	}
}

// process runs the full per-command pipeline for cmd, in the order
// SPEC_FULL.md section 4.8 specifies, and always ends by enqueueing exactly
// one response to the sink.
func (rm *ResourceManager) process(cmd *Tpm2Command) {
	if resp, err := admitCommand(cmd); resp != nil {
		if err != nil {
			rm.logger.WithFields(Fields{
				"connection": cmd.Connection().ID(),
				"command":    cmd.CommandCode(),
			}).Warnf("quota gate rejected command: %v", err)
		}
		rm.sink.Enqueue(resp)
		return
	}

	if cmd.CommandCode() == CommandFlushContext {
		resp, err := routeFlush(rm.broker, cmd)
		if err != nil {
			rm.logger.WithFields(Fields{
				"connection": cmd.Connection().ID(),
				"command":    cmd.CommandCode(),
			}).Warnf("flush route failed: %v", err)
		}
		rm.sink.Enqueue(resp)
		return
	}

	touched := make([]*HandleMapEntry, 0, maxTouchedEntries)

	if cmd.HandleCount() > 0 {
		var loadFailure *Tpm2Response
		var err error
		touched, loadFailure, err = rewriteCommand(rm.broker, cmd, touched)
		if err != nil {
			rm.logger.WithFields(Fields{
				"connection": cmd.Connection().ID(),
				"command":    cmd.CommandCode(),
			}).Warnf("context load failed: %v", err)
			rm.sink.Enqueue(loadFailure)
			evictTouched(rm.broker, rm.logger, touched)
			return
		}
	}

	resp, rc := rm.broker.SendCommand(cmd)
	if resp == nil {
		err := &BrokerError{Command: cmd.CommandCode(), RC: rc}
		rm.logger.WithFields(Fields{
			"connection": cmd.Connection().ID(),
			"command":    cmd.CommandCode(),
		}).Warnf("broker send failed: %v", err)
		resp = NewResponseRC(cmd.Connection(), cmd.CommandCode(), rc)
	}

	touched = virtualizeResponse(cmd, resp, touched)

	rm.sink.Enqueue(resp)

	evictTouched(rm.broker, rm.logger, touched)
}

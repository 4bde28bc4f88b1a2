// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/yai-labs/yai/lib/clock"
	"github.com/yai-labs/yai/lib/envelope"
)

// RetryInterval is how often Exchange and WaitProcessed re-check the
// slot.
const RetryInterval = 5 * time.Millisecond

// seqlockAttempts bounds how long PendingCommand spins on an odd
// generation before reporting nothing pending.
const seqlockAttempts = 1000

// Command is one mailbox entry as seen by the owner.
type Command struct {
	Seq     uint32
	ID      envelope.CommandID
	Payload []byte
}

// Submit deposits a command in the mailbox and returns its sequence
// number. It fails with ErrSlotBusy when another producer holds the
// guard or the previous command has not been processed yet.
func (v *Vault) Submit(command envelope.CommandID, payload []byte) (uint32, error) {
	if len(payload) > PayloadSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrPayloadTooBig, len(payload))
	}
	if !v.acquire() {
		return 0, ErrSlotBusy
	}
	defer v.release()
	return v.deposit(command, payload)
}

// acquire takes the producer guard.
func (v *Vault) acquire() bool {
	return atomic.CompareAndSwapUint32(v.u32(offsetProducerGuard), 0, uint32(os.Getpid()))
}

func (v *Vault) release() {
	atomic.StoreUint32(v.u32(offsetProducerGuard), 0)
}

// deposit writes the command under the generation seqlock and publishes
// command_seq last. The caller holds the producer guard.
func (v *Vault) deposit(command envelope.CommandID, payload []byte) (uint32, error) {
	seq := atomic.LoadUint32(v.u32(offsetCommandSeq))
	if seq != atomic.LoadUint32(v.u32(offsetLastProcessedSeq)) {
		return 0, ErrSlotBusy
	}

	generation := v.u32(offsetCommandGeneration)
	atomic.AddUint32(generation, 1)
	atomic.StoreUint32(v.u32(offsetLastCommandID), uint32(command))
	n := copy(v.data[offsetPayload:offsetPayload+PayloadSize], payload)
	clear(v.data[offsetPayload+n : offsetPayload+PayloadSize])
	atomic.StoreUint32(v.u32(offsetPayloadLen), uint32(n))
	atomic.AddUint32(generation, 1)

	next := seq + 1
	atomic.StoreUint32(v.u32(offsetCommandSeq), next)
	return next, nil
}

// Outcome is the owner's result for one mailbox command, read while no
// other producer could have deposited a newer one.
type Outcome struct {
	Seq      uint32
	Result   uint32
	Status   Status
	Response string
	Error    string
}

// OK reports whether the owner marked the command successful.
func (o Outcome) OK() bool { return o.Result == 1 }

// Exchange submits command, waits for the owner to process it and
// reads its outcome, holding the producer guard for the whole round
// trip. Other producers see ErrSlotBusy until the outcome has been
// read, so the fields returned always belong to this command. If ctx
// ends first the guard is released and the command stays pending.
func (v *Vault) Exchange(ctx context.Context, clk clock.Clock, command envelope.CommandID, payload []byte) (Outcome, error) {
	if len(payload) > PayloadSize {
		return Outcome{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooBig, len(payload))
	}

	var seq uint32
	for {
		if v.acquire() {
			var err error
			seq, err = v.deposit(command, payload)
			if err == nil {
				break
			}
			v.release()
			if !errors.Is(err, ErrSlotBusy) {
				return Outcome{}, err
			}
		}
		select {
		case <-ctx.Done():
			return Outcome{}, fmt.Errorf("vault: waiting for command slot: %w", ctx.Err())
		case <-clk.After(RetryInterval):
		}
	}
	defer v.release()

	if err := v.WaitProcessed(ctx, clk, seq); err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Seq:      seq,
		Result:   v.LastResult(),
		Status:   v.Status(),
		Response: v.Response(),
		Error:    v.LastError(),
	}, nil
}

// AdvanceCommand submits a command without payload.
func (v *Vault) AdvanceCommand(command envelope.CommandID) (uint32, error) {
	return v.Submit(command, nil)
}

// WaitProcessed blocks until last_processed_seq reaches seq or ctx
// ends.
func (v *Vault) WaitProcessed(ctx context.Context, clk clock.Clock, seq uint32) error {
	for {
		if reached(v.LastProcessedSeq(), seq) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("vault: waiting for command %d: %w", seq, ctx.Err())
		case <-clk.After(RetryInterval):
		}
	}
}

// reached compares sequence numbers modulo 2^32.
func reached(current, target uint32) bool {
	return int32(current-target) >= 0
}

// PendingCommand returns the mailbox command when command_seq differs
// from lastSeen. ok is false when nothing new is pending or a producer
// is mid-write.
func (v *Vault) PendingCommand(lastSeen uint32) (command Command, ok bool) {
	seq := atomic.LoadUint32(v.u32(offsetCommandSeq))
	if seq == lastSeen {
		return Command{}, false
	}

	generation := v.u32(offsetCommandGeneration)
	for attempt := 0; attempt < seqlockAttempts; attempt++ {
		before := atomic.LoadUint32(generation)
		if before&1 == 1 {
			runtime.Gosched()
			continue
		}
		id := atomic.LoadUint32(v.u32(offsetLastCommandID))
		length := min(atomic.LoadUint32(v.u32(offsetPayloadLen)), PayloadSize)
		payload := make([]byte, length)
		copy(payload, v.data[offsetPayload:])
		if atomic.LoadUint32(generation) == before {
			return Command{Seq: seq, ID: envelope.CommandID(id), Payload: payload}, true
		}
	}
	return Command{}, false
}

// MarkProcessed advances last_processed_seq. The owner calls it only
// after the command's outcome has been written.
func (v *Vault) MarkProcessed(seq uint32) {
	atomic.StoreUint32(v.u32(offsetLastProcessedSeq), seq)
}

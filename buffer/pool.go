package buffer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowlight0/simpledb-go/file"
	"github.com/flowlight0/simpledb-go/wal"
	"github.com/rs/zerolog"
)

// ErrBufferAbort is returned by Pin when no buffer becomes available
// within the configured wait budget — a retryable abort per spec §7.
var ErrBufferAbort = errors.New("buffer: timed out waiting for a free buffer")

// DefaultPinWait is the spec §6 default buffer_pin_wait_ms.
const DefaultPinWait = 5000 * time.Millisecond

// Pool is the fixed-size collection of Buffer slots, one mutex guarding
// the slice (spec §5) with a condition variable signalling availability.
type Pool struct {
	fm *file.Manager
	lm *wal.Manager

	mu        sync.Mutex
	cond      *sync.Cond
	buffers   []*Buffer
	available int
	pinWait   time.Duration
	log       zerolog.Logger
}

// NewPool allocates numBuffers slots over fm/lm.
func NewPool(fm *file.Manager, lm *wal.Manager, numBuffers int, pinWait time.Duration, logger zerolog.Logger) *Pool {
	if pinWait <= 0 {
		pinWait = DefaultPinWait
	}
	p := &Pool{
		fm:        fm,
		lm:        lm,
		buffers:   make([]*Buffer, numBuffers),
		available: numBuffers,
		pinWait:   pinWait,
		log:       logger,
	}
	p.cond = sync.NewCond(&p.mu)
	for i := range p.buffers {
		p.buffers[i] = newBuffer(fm)
	}
	return p
}

// Available returns the number of currently unpinned buffers.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

func (p *Pool) findExisting(block file.BlockID) *Buffer {
	for _, b := range p.buffers {
		if bb, ok := b.Block(); ok && bb == block {
			return b
		}
	}
	return nil
}

func (p *Pool) chooseUnpinned() *Buffer {
	for _, b := range p.buffers {
		if !b.IsPinned() {
			return b
		}
	}
	return nil
}

func (p *Pool) tryPin(block file.BlockID) (*Buffer, error) {
	b := p.findExisting(block)
	if b == nil {
		b = p.chooseUnpinned()
		if b == nil {
			return nil, nil
		}
		if err := b.assignToBlock(block, p.lm); err != nil {
			return nil, err
		}
	}
	if !b.IsPinned() {
		p.available--
	}
	b.pin()
	return b, nil
}

// Pin returns a pinned buffer holding block, waiting up to the configured
// pin-wait budget for one to become free.
func (p *Pool) Pin(block file.BlockID) (*Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.tryPin(block)
	if err != nil {
		return nil, err
	}
	if b != nil {
		return b, nil
	}

	deadline := time.Now().Add(p.pinWait)
	for b == nil {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.log.Warn().Stringer("block", block).Msg("buffer: pin timed out")
			return nil, ErrBufferAbort
		}
		p.waitWithTimeout(remaining)
		if time.Now().After(deadline) {
			p.log.Warn().Stringer("block", block).Msg("buffer: pin timed out")
			return nil, ErrBufferAbort
		}
		b, err = p.tryPin(block)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

// waitWithTimeout blocks on the pool condition variable for at most d,
// releasing p.mu while parked (sync.Cond's usual contract) and
// re-acquiring it before returning. A background timer wakes every
// waiter once d elapses even if no Unpin ever arrives.
func (p *Pool) waitWithTimeout(d time.Duration) {
	timer := time.AfterFunc(d, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer timer.Stop()
	p.cond.Wait()
}

// Unpin releases one pin on buf, notifying waiters once it reaches zero.
func (p *Pool) Unpin(buf *Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf.unpin()
	if !buf.IsPinned() {
		p.available++
		p.cond.Broadcast()
	}
}

// FlushAll force-flushes every buffer last modified by txID, clearing
// their dirty flag.
func (p *Pool) FlushAll(txID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range p.buffers {
		if tid, dirty := b.ModifyingTx(); dirty && tid == txID {
			if err := b.flush(p.lm); err != nil {
				return fmt.Errorf("buffer: flush_all(%d): %w", txID, err)
			}
		}
	}
	return nil
}

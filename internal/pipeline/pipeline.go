// Package pipeline implements the coordination core: parallel producer and
// consumer goroutines exchanging strip records through a bounded ring
// buffer, guaranteeing every fragment in [0, N) is fetched exactly once and
// that exactly one raster slot receives each fragment's inflated output.
package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ece252-project/stripassemble/internal/arena"
	"github.com/ece252-project/stripassemble/internal/codec"
	"github.com/ece252-project/stripassemble/internal/fetch"
	"github.com/ece252-project/stripassemble/internal/ring"
)

// DefaultTotalFragments is N in the specification: the fixed number of
// strips that make up one image.
const DefaultTotalFragments = 50

// Fetcher is the subset of *fetch.Client's behavior the pipeline depends on,
// so tests can substitute a mock fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, imageNum, partNum int) (fetch.Fragment, error)
}

// Config parametrizes one assembly run. BufferSize, Producers, and Consumers
// must be validated by the caller against their documented ranges before
// constructing a Coordinator (see Validate).
type Config struct {
	BufferSize     int
	Producers      int
	Consumers      int
	ConsumerDelay  time.Duration
	ImageNum       int
	TotalFragments int // defaults to DefaultTotalFragments when zero
}

// Validate checks Config's fields against the documented ranges: buffer
// size in [1,50], producers and consumers in [1,20], consumer delay in
// [0,1000]ms, and image number in [1,3].
func (c Config) Validate() error {
	if c.BufferSize < 1 || c.BufferSize > 50 {
		return codec.NewError(codec.General, "buffer size %d out of range [1,50]", c.BufferSize)
	}
	if c.Producers < 1 || c.Producers > 20 {
		return codec.NewError(codec.General, "producer count %d out of range [1,20]", c.Producers)
	}
	if c.Consumers < 1 || c.Consumers > 20 {
		return codec.NewError(codec.General, "consumer count %d out of range [1,20]", c.Consumers)
	}
	if c.ConsumerDelay < 0 || c.ConsumerDelay > 1000*time.Millisecond {
		return codec.NewError(codec.General, "consumer delay %v out of range [0,1000ms]", c.ConsumerDelay)
	}
	if c.ImageNum < 1 || c.ImageNum > 3 {
		return codec.NewError(codec.General, "image number %d out of range [1,3]", c.ImageNum)
	}
	return nil
}

// Report summarizes a completed (or failed) run for logging and assembly.
type Report struct {
	Produced        int
	Consumed        int
	NextSequence    int
	Elapsed         time.Duration
	FragmentsFailed []int
}

// Coordinator owns the ring buffer, the raster arena, the shared counters,
// and the two channel-based counting semaphores ("empty"/"filled") that
// gate producer and consumer progress. The ring buffer's own mutex guards
// the buffer; mu below is a separate mutex that guards the three
// coordination counters and the failed list. The counters are not read or
// written under the ring buffer's mutex.
type Coordinator struct {
	cfg     Config
	fetcher Fetcher

	buf    *ring.Buffer
	ar     *arena.Arena
	empty  chan struct{}
	filled chan struct{}

	mu           sync.Mutex
	produced     int
	consumed     int
	nextSequence int
	failed       []int
}

// New builds a Coordinator ready to Run. cfg must already have passed
// Validate.
func New(cfg Config, fetcher Fetcher) *Coordinator {
	total := cfg.TotalFragments
	if total == 0 {
		total = DefaultTotalFragments
	}
	cfg.TotalFragments = total

	empty := make(chan struct{}, cfg.BufferSize)
	for i := 0; i < cfg.BufferSize; i++ {
		empty <- struct{}{}
	}

	return &Coordinator{
		cfg:     cfg,
		fetcher: fetcher,
		buf:     ring.New(cfg.BufferSize),
		ar:      arena.New(total),
		empty:   empty,
		// filled is sized total+consumers so every consumer's terminal
		// "wake a sibling" post (see consumer step 1) can always complete
		// without blocking, even though none of those posts correspond to
		// a dequeue-able item.
		filled: make(chan struct{}, total+cfg.Consumers),
	}
}

// Arena exposes the raster arena for the driver to deflate once Run returns.
func (co *Coordinator) Arena() *arena.Arena {
	return co.ar
}

// Run spawns Producers producer goroutines and Consumers consumer
// goroutines, waits for all of them to finish, and returns a Report. ctx is
// threaded through to HTTP fetches only; there is no mid-run cancellation of
// the producer/consumer protocol itself (workers self-terminate purely by
// observing the shared counters).
func (co *Coordinator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	g := new(errgroup.Group)
	for i := 0; i < co.cfg.Producers; i++ {
		id := i
		g.Go(func() error { return co.producerLoop(ctx, id) })
	}
	for i := 0; i < co.cfg.Consumers; i++ {
		id := i
		g.Go(func() error { return co.consumerLoop(id) })
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	co.mu.Lock()
	report := &Report{
		Produced:        co.produced,
		Consumed:        co.consumed,
		NextSequence:    co.nextSequence,
		Elapsed:         time.Since(start),
		FragmentsFailed: append([]int(nil), co.failed...),
	}
	co.mu.Unlock()
	return report, nil
}

// producerLoop implements the producer protocol of §4.6: claim a sequence
// number, fetch it, wait for a free ring-buffer slot, and enqueue.
func (co *Coordinator) producerLoop(ctx context.Context, id int) error {
	for {
		co.mu.Lock()
		if co.produced >= co.cfg.TotalFragments {
			co.mu.Unlock()
			return nil
		}
		k := co.nextSequence
		co.nextSequence++
		co.produced++
		co.mu.Unlock()

		frag, err := co.fetcher.Fetch(ctx, co.cfg.ImageNum, k)

		<-co.empty // acquire a slot credit

		if err != nil || frag.Sequence != k {
			log.Printf("producer %d: failed to fetch fragment %d: %v", id, k, err)
			co.mu.Lock()
			co.failed = append(co.failed, k)
			co.mu.Unlock()
			// Still enqueue a (bodyless) record for this sequence number so a
			// consumer dequeues it, fails to parse it, and — per the safer
			// policy — counts it toward consumed with its slot left zeroed,
			// rather than letting consumed permanently fall short of total.
			co.buf.Enqueue(ring.Record{Sequence: k, Data: nil})
			co.filled <- struct{}{}
			continue
		}

		co.buf.Enqueue(ring.Record{Sequence: k, Data: frag.Body})
		co.filled <- struct{}{} // signal an item is available
	}
}

// consumerLoop implements the consumer protocol of §4.6, including the
// resolved Open Question: a PNG parse failure still increments consumed
// (with the slot left zeroed) rather than stalling assembly.
func (co *Coordinator) consumerLoop(id int) error {
	for {
		co.mu.Lock()
		if co.consumed >= co.cfg.TotalFragments {
			co.mu.Unlock()
			co.filled <- struct{}{} // wake a sibling still waiting on filled
			return nil
		}
		co.mu.Unlock()

		<-co.filled // acquire an item credit

		rec, ok := co.buf.Dequeue()
		if !ok {
			// The credit was a terminating sibling's wake-up post, which has
			// no item behind it. No slot was freed, so no slot credit is
			// returned; loop back and re-check the counters.
			log.Printf("consumer %d: woken with an empty buffer, re-checking counters", id)
			continue
		}
		co.empty <- struct{}{} // return the slot credit

		if co.cfg.ConsumerDelay > 0 {
			time.Sleep(co.cfg.ConsumerDelay)
		}

		co.process(id, rec)

		co.mu.Lock()
		co.consumed++
		co.mu.Unlock()
	}
}

// process parses rec as a PNG and inflates its IDAT into the arena slot for
// rec.Sequence, logging (but not failing the run on) any corruption.
func (co *Coordinator) process(id int, rec ring.Record) {
	png, err := codec.Parse(rec.Data)
	if err != nil {
		if cerr, ok := err.(*codec.Error); !ok || cerr.Code != codec.CrcMismatch {
			log.Printf("consumer %d: failed to parse strip %d: %v", id, rec.Sequence, err)
			return
		}
		log.Printf("consumer %d: CRC mismatch in strip %d, continuing: %v", id, rec.Sequence, err)
	}
	if png == nil || len(png.IDAT) == 0 {
		return
	}

	slot := co.ar.Slot(rec.Sequence)
	if slot == nil {
		log.Printf("consumer %d: sequence %d out of arena bounds, skipping", id, rec.Sequence)
		return
	}
	if _, err := codec.Inflate(slot, png.IDAT); err != nil {
		log.Printf("consumer %d: inflate failed for strip %d: %v", id, rec.Sequence, err)
	}
}

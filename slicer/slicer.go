// Package slicer implements the concurrent producer/consumer extractor of
// spec.md §4.7: pulling slices out of a sequential-only source that must be
// read exactly once, front-to-back, no matter how many recipes need
// different windows of it. Each worker guards its slot table (requested and
// produced windows alike) with one mutex and its run state with another;
// the Slicer's own mutex guards the map of workers.
package slicer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/n-peugnet/diffkitchen/dkerr"
	"github.com/n-peugnet/diffkitchen/hashutil"
	"github.com/n-peugnet/diffkitchen/item"
	dkio "github.com/n-peugnet/diffkitchen/ioutil"
	"github.com/n-peugnet/diffkitchen/logger"
	"github.com/n-peugnet/diffkitchen/prepared"
)

type runState int

const (
	stateRunning runState = iota
	statePaused
	stateCancelled
)

// Slicer owns one background worker per sequential-only parent item it has
// been asked to extract from.
type Slicer struct {
	mu      sync.Mutex
	workers map[prepared.Item]*worker
}

// New returns an empty Slicer.
func New() *Slicer {
	return &Slicer{workers: make(map[prepared.Item]*worker)}
}

// slot is one distinct (offset, length) window of a parent being tracked
// by a worker, from the moment it is first requested until its refcount
// drops to zero. Duplicate requests for the same window (spec.md §4.7,
// "duplicate requests for the same slice item increment a refcount") reuse
// this slot instead of re-extracting.
type slot struct {
	offset, length int64
	def            *item.Definition
	refcount       int
	ready          chan struct{} // closed once item/err is set
	item           prepared.Item
	err            error
}

type worker struct {
	parent prepared.Item

	// reqMu guards the slot table: requested windows waiting to be
	// serviced or already produced, keyed by offset so the run loop always
	// advances monotonically through the source and so a repeat request at
	// the same offset finds (and refcounts) the existing slot.
	reqMu   sync.Mutex
	slots   map[int64]*slot
	pending []*slot // not yet dispatched to the run loop, sorted by offset

	// stateMu (with stateCond) guards the run/paused/cancelled state
	// machine the run loop blocks on between requests.
	stateMu   sync.Mutex
	stateCond *sync.Cond
	state     runState
	started   bool

	ctx    context.Context
	cancel context.CancelFunc
	src    dkio.SequentialReader
	pos    int64
}

func (s *Slicer) workerFor(parent prepared.Item) *worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[parent]
	if ok {
		return w
	}
	ctx, cancel := context.WithCancel(context.Background())
	w = &worker{
		parent: parent,
		slots:  make(map[int64]*slot),
		ctx:    ctx,
		cancel: cancel,
	}
	w.stateCond = sync.NewCond(&w.stateMu)
	s.workers[parent] = w
	return w
}

// RequestSlice registers interest in [offset, offset+length) of parent and
// returns a fetch-slice prepared item (spec.md §3): resolving it — via
// MakeReader/MakeSequentialReader — is the fetch_slice operation, which
// blocks until the worker's sequential scan reaches and verifies that
// window, then decrements the slot's refcount, freeing the buffered bytes
// once every registered fetch has claimed them (spec.md §4.7).
func (s *Slicer) RequestSlice(parent prepared.Item, offset, length int64, def *item.Definition) (prepared.Item, error) {
	w := s.workerFor(parent)

	w.reqMu.Lock()
	sl, ok := w.slots[offset]
	switch {
	case ok && sl.length == length:
		sl.refcount++
	case ok:
		w.reqMu.Unlock()
		return nil, dkerr.New(dkerr.SlicingRequestOverlap, "slice [%d,%d) overlaps existing request at offset %d with length %d", offset, offset+length, offset, sl.length)
	default:
		for _, other := range w.slots {
			if overlaps(other.offset, other.length, offset, length) {
				w.reqMu.Unlock()
				return nil, dkerr.New(dkerr.SlicingRequestOverlap, "slice [%d,%d) overlaps pending request [%d,%d)", offset, offset+length, other.offset, other.offset+other.length)
			}
		}
		sl = &slot{offset: offset, length: length, def: def, refcount: 1, ready: make(chan struct{})}
		w.slots[offset] = sl
		w.pending = append(w.pending, sl)
		sort.Slice(w.pending, func(i, j int) bool { return w.pending[i].offset < w.pending[j].offset })
	}
	w.reqMu.Unlock()

	w.ensureRunning()

	return prepared.FetchSlice(length, func() (prepared.Item, error) {
		return w.fetchSlice(offset)
	}), nil
}

// fetchSlice blocks until the slot at offset is produced, then decrements
// its refcount and drops it from the table once no registered fetch still
// needs it. Once the worker has been cancelled it fails with
// dkerr.SlicingInvalidState, even if the slot was already produced.
func (w *worker) fetchSlice(offset int64) (prepared.Item, error) {
	w.reqMu.Lock()
	sl, ok := w.slots[offset]
	w.reqMu.Unlock()
	if !ok {
		return nil, dkerr.New(dkerr.SlicingInvalidState, "fetch_slice: no request registered at offset %d", offset)
	}

	select {
	case <-sl.ready:
	case <-w.ctx.Done():
	}
	if w.ctx.Err() != nil {
		return nil, dkerr.New(dkerr.SlicingInvalidState, "slicing cancelled before request [%d,%d) was fetched", offset, offset+sl.length)
	}

	w.reqMu.Lock()
	sl.refcount--
	if sl.refcount <= 0 {
		delete(w.slots, offset)
	}
	w.reqMu.Unlock()

	if sl.err != nil {
		return nil, sl.err
	}
	return sl.item, nil
}

// ResumeSlicing resumes a paused worker over parent.
func (s *Slicer) ResumeSlicing(parent prepared.Item) {
	s.mu.Lock()
	w, ok := s.workers[parent]
	s.mu.Unlock()
	if !ok {
		return
	}
	w.stateMu.Lock()
	if w.state == statePaused {
		w.state = stateRunning
		w.stateCond.Broadcast()
	}
	w.stateMu.Unlock()
}

// CancelSlicing aborts a worker's extraction, failing every pending and
// future request over parent.
func (s *Slicer) CancelSlicing(parent prepared.Item) {
	s.mu.Lock()
	w, ok := s.workers[parent]
	s.mu.Unlock()
	if !ok {
		return
	}
	w.stateMu.Lock()
	w.state = stateCancelled
	w.stateCond.Broadcast()
	w.stateMu.Unlock()
	w.cancel()
}

func (w *worker) ensureRunning() {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	if w.started {
		if w.state != stateCancelled {
			w.state = stateRunning
			w.stateCond.Broadcast()
		}
		return
	}
	w.started = true
	w.state = stateRunning
	go w.run()
}

func (w *worker) run() {
	for {
		w.stateMu.Lock()
		for w.state == statePaused {
			w.stateCond.Wait()
		}
		if w.state == stateCancelled {
			w.stateMu.Unlock()
			w.failAllPending(dkerr.New(dkerr.SlicingInvalidState, "slicing cancelled"))
			return
		}
		w.stateMu.Unlock()

		sl := w.nextPending()
		if sl == nil {
			w.stateMu.Lock()
			if w.state == stateRunning {
				w.state = statePaused
			}
			w.stateMu.Unlock()
			// Block until a new request arrives or we're cancelled.
			w.stateMu.Lock()
			for w.state == statePaused {
				w.stateCond.Wait()
			}
			w.stateMu.Unlock()
			continue
		}

		w.produce(sl)
	}
}

func (w *worker) produce(sl *slot) {
	fail := func(err error) {
		sl.err = err
		close(sl.ready)
	}

	if err := w.ensureSource(); err != nil {
		fail(err)
		return
	}
	if sl.offset < w.pos {
		fail(fmt.Errorf("slicer: request offset %d is behind current position %d", sl.offset, w.pos))
		return
	}
	if sl.offset > w.pos {
		if err := w.src.Skip(sl.offset - w.pos); err != nil {
			fail(err)
			return
		}
		w.pos = sl.offset
	}
	buf := make([]byte, sl.length)
	if err := readFull(w.src, buf); err != nil {
		fail(err)
		return
	}
	w.pos += sl.length

	if sl.def != nil {
		hasher, err := hashutil.NewHasher(item.SHA256)
		if err != nil {
			fail(err)
			return
		}
		hasher.HashData(buf)
		actual, err := item.New(sl.length, hasher.GetHash())
		if err != nil {
			fail(err)
			return
		}
		if verr := hashutil.VerifyHashesMatch(actual, sl.def); verr != nil {
			fail(dkerr.New(dkerr.SlicingProducedHashMismatch, "slice [%d,%d): %s", sl.offset, sl.offset+sl.length, verr))
			return
		}
	}

	sl.item = prepared.FromReaderFactory(sl.length, func() (dkio.Reader, error) {
		return dkio.NewBytesReader(buf), nil
	})
	logger.Debugf("slicer: extracted [%d,%d) from parent", sl.offset, sl.offset+sl.length)
	close(sl.ready)
}

func (w *worker) nextPending() *slot {
	w.reqMu.Lock()
	defer w.reqMu.Unlock()
	if len(w.pending) == 0 {
		return nil
	}
	sl := w.pending[0]
	w.pending = w.pending[1:]
	return sl
}

func (w *worker) failAllPending(err error) {
	w.reqMu.Lock()
	pending := w.pending
	w.pending = nil
	w.reqMu.Unlock()
	for _, sl := range pending {
		sl.err = err
		close(sl.ready)
	}
}

func (w *worker) ensureSource() error {
	if w.src != nil {
		return nil
	}
	sr, err := w.parent.MakeSequentialReader()
	if err != nil {
		return err
	}
	w.src = sr
	return nil
}

func overlaps(aOff, aLen, bOff, bLen int64) bool {
	return aOff < bOff+bLen && bOff < aOff+aLen
}

func readFull(r dkio.SequentialReader, buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := r.ReadSome(buf[read:])
		read += n
		if err != nil {
			if read == len(buf) {
				return nil
			}
			return fmt.Errorf("slicer: read failed after %d/%d bytes: %w", read, len(buf), err)
		}
	}
	return nil
}

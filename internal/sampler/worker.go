// Package sampler runs the periodic sensor reads and records their outcome.
package sampler

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/sweeney/dht-exporter/internal/dht"
)

// ErrClosed is returned by Worker.Read after Close.
var ErrClosed = errors.New("sampler: worker closed")

// Reader performs one blocking sensor read.
type Reader interface {
	Read() (dht.Reading, time.Duration, error)
}

type result struct {
	reading dht.Reading
	took    time.Duration
	err     error
}

// Worker serializes reads onto a single goroutine locked to its own OS
// thread. The busy-poll capture then never shares a thread with the HTTP
// server or the scheduler.
type Worker struct {
	reqs chan chan result
	done chan struct{}
	once sync.Once
}

// NewWorker starts a worker that owns r. Call Close to stop it.
func NewWorker(r Reader) *Worker {
	w := &Worker{
		reqs: make(chan chan result),
		done: make(chan struct{}),
	}
	go w.serve(r)
	return w
}

func (w *Worker) serve(r Reader) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case reply := <-w.reqs:
			reading, took, err := r.Read()
			reply <- result{reading: reading, took: took, err: err}
		case <-w.done:
			return
		}
	}
}

// Read hands one read to the worker thread and waits for it to finish.
// A read that has started always runs to completion.
func (w *Worker) Read() (dht.Reading, time.Duration, error) {
	reply := make(chan result, 1)
	select {
	case w.reqs <- reply:
	case <-w.done:
		return dht.Reading{}, 0, ErrClosed
	}
	res := <-reply
	return res.reading, res.took, res.err
}

// Close stops the worker. It is safe to call more than once.
func (w *Worker) Close() error {
	w.once.Do(func() { close(w.done) })
	return nil
}

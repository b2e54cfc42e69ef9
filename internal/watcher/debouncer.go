package watcher

import (
	"sync"
	"time"
)

// Debouncer groups rapid file changes together. A batch is emitted once no
// event has arrived for the delay; within a batch each path appears once,
// in the order it was first seen.
type Debouncer struct {
	delay   time.Duration
	output  chan []ChangeEvent
	done    <-chan struct{}
	timer   *time.Timer
	pending []ChangeEvent
	index   map[string]int
	mutex   sync.Mutex
}

// NewDebouncer creates a debouncer. Pending sends are abandoned once done
// is closed.
func NewDebouncer(delay time.Duration, done <-chan struct{}) *Debouncer {
	return &Debouncer{
		delay:  delay,
		output: make(chan []ChangeEvent, 16),
		done:   done,
		index:  make(map[string]int),
	}
}

// Output returns the channel batches are delivered on.
func (d *Debouncer) Output() <-chan []ChangeEvent {
	return d.output
}

// Add records an event and restarts the quiet period.
func (d *Debouncer) Add(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if i, ok := d.index[event.Path]; ok {
		d.pending[i].Type = merge(d.pending[i].Type, event.Type)
	} else {
		d.index[event.Path] = len(d.pending)
		d.pending = append(d.pending, event)
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

// merge folds a later event into an earlier one for the same path. A file
// created and then written is still new.
func merge(earlier, later EventType) EventType {
	if earlier == EventAdd && later == EventChange {
		return EventAdd
	}
	return later
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	if len(d.pending) == 0 {
		d.mutex.Unlock()
		return
	}
	events := d.pending
	d.pending = nil
	d.index = make(map[string]int)
	d.mutex.Unlock()

	select {
	case d.output <- events:
	case <-d.done:
	}
}

// Stop cancels a pending flush.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

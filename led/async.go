package led

import (
	"sync"

	"github.com/RyanBlaney/sonido-coach/logging"
	"github.com/RyanBlaney/sonido-coach/trainer"
)

// DefaultQueueSize bounds the pending command queue
const DefaultQueueSize = 64

// Async forwards controller calls to a worker goroutine so the analysis loop
// never waits on the serial link. When the queue is full commands are dropped.
type Async struct {
	next  trainer.LEDController
	queue chan func(trainer.LEDController)
	done  chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int64

	logger logging.Logger
}

var _ trainer.LEDController = (*Async)(nil)

// NewAsync starts the worker over next
func NewAsync(next trainer.LEDController, size int) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	a := &Async{
		next:  next,
		queue: make(chan func(trainer.LEDController), size),
		done:  make(chan struct{}),
		logger: logging.WithFields(logging.Fields{
			"component": "led_async",
		}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for cmd := range a.queue {
		cmd(a.next)
	}
}

func (a *Async) enqueue(cmd func(trainer.LEDController)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	select {
	case a.queue <- cmd:
	default:
		a.dropped++
		a.logger.Debug("LED queue full, command dropped", logging.Fields{
			"dropped": a.dropped,
		})
	}
}

func (a *Async) TurnOnLED(led int, noteType trainer.NoteType) {
	a.enqueue(func(c trainer.LEDController) { c.TurnOnLED(led, noteType) })
}

func (a *Async) TurnOnLEDSolo(led int, on bool) {
	a.enqueue(func(c trainer.LEDController) { c.TurnOnLEDSolo(led, on) })
}

func (a *Async) StartSequence(led int) {
	a.enqueue(func(c trainer.LEDController) { c.StartSequence(led) })
}

func (a *Async) EndSequence() {
	a.enqueue(func(c trainer.LEDController) { c.EndSequence() })
}

// Dropped returns the number of commands lost to a full queue
func (a *Async) Dropped() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Close stops accepting commands and waits for queued ones to run
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	return nil
}

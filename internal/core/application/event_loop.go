package application

// EventLoop serializes all core state mutations on a single goroutine, the
// UI-affine context. Background workers never touch shared state directly,
// they post a closure instead.
type EventLoop struct {
	tasks chan func()
	quit  chan struct{}
}

func NewEventLoop() *EventLoop {
	return &EventLoop{
		tasks: make(chan func(), 64),
		quit:  make(chan struct{}),
	}
}

// Start spawns the loop goroutine. It must be called exactly once.
func (l *EventLoop) Start() {
	go l.run()
}

// Post schedules fn on the loop. Closures run in submission order. Posting
// after Stop silently drops the task.
func (l *EventLoop) Post(fn func()) {
	select {
	case <-l.quit:
	case l.tasks <- fn:
	}
}

// Stop terminates the loop. Pending tasks are discarded.
func (l *EventLoop) Stop() {
	close(l.quit)
}

func (l *EventLoop) run() {
	for {
		select {
		case <-l.quit:
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

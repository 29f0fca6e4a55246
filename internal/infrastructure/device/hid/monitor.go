package hid

import (
	"time"
)

const pollInterval = time.Second

// Monitor polls for plug and unplug transitions of the signing device and
// reports them through a callback. The callback runs on the monitor
// goroutine, only on actual transitions.
type Monitor struct {
	transport *Transport
	onChange  func(connected bool)
	quit      chan struct{}
}

func NewMonitor(transport *Transport, onChange func(connected bool)) *Monitor {
	return &Monitor{
		transport: transport,
		onChange:  onChange,
		quit:      make(chan struct{}),
	}
}

func (m *Monitor) Start() {
	go m.run()
}

func (m *Monitor) Stop() {
	close(m.quit)
}

func (m *Monitor) run() {
	connected := m.transport.IsConnected()
	if connected {
		m.onChange(true)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			now := m.transport.IsConnected()
			if now != connected {
				connected = now
				m.onChange(now)
			}
		}
	}
}

package application

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/shiftdevices/bitboxd/internal/core/ports"
)

// CommandDispatcher forwards device commands to the transport one at a
// time. At most one command is in flight, a submission while busy is
// refused immediately and never queued. The transport call runs on a
// background worker, the continuation always runs on the event loop.
type CommandDispatcher struct {
	transport   ports.DeviceTransport
	credentials *SessionCredentials
	notifier    ports.Notifier
	loop        *EventLoop

	lock     *sync.Mutex
	inFlight bool
}

func NewCommandDispatcher(
	transport ports.DeviceTransport, credentials *SessionCredentials,
	notifier ports.Notifier, loop *EventLoop,
) *CommandDispatcher {
	return &CommandDispatcher{
		transport:   transport,
		credentials: credentials,
		notifier:    notifier,
		loop:        loop,
		lock:        &sync.Mutex{},
	}
}

// Busy reports whether a command is currently in flight.
func (d *CommandDispatcher) Busy() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.inFlight
}

// Submit dispatches the command and returns whether it was accepted. On
// acceptance the continuation is invoked exactly once on the event loop
// with the parsed outcome, whatever the transport verdict.
func (d *CommandDispatcher) Submit(cmd Command, continuation Continuation) bool {
	d.lock.Lock()
	if d.inFlight {
		d.lock.Unlock()
		log.WithField("tag", cmd.Tag.String()).Debug("dispatcher busy, command refused")
		return false
	}
	d.inFlight = true
	d.lock.Unlock()

	d.notifier.LoadingStateChanged(true)
	if cmd.RequiresTouch {
		d.notifier.AwaitingDeviceConfirmation(true)
	}

	credential := d.credentials.Get()
	go func() {
		raw, status := d.transport.Execute(cmd.Payload, credential)
		response := ParseDeviceResponse(raw)
		d.loop.Post(func() {
			d.lock.Lock()
			d.inFlight = false
			d.lock.Unlock()

			d.notifier.LoadingStateChanged(false)
			if cmd.RequiresTouch {
				d.notifier.AwaitingDeviceConfirmation(false)
			}
			if continuation != nil {
				continuation(CommandOutcome{
					Response: response,
					Status:   status,
					Tag:      cmd.Tag,
					Subtag:   cmd.Subtag,
				})
			}
		})
	}()
	return true
}

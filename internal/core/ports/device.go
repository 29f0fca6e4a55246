package ports

// ExecutionStatus is the transport-level verdict of a device command
// execution. It is produced exactly once per submitted command.
type ExecutionStatus int

const (
	ExecutionOK ExecutionStatus = iota
	ExecutionTimeout
	ExecutionTouchDenied
	ExecutionTransportError
)

func (s ExecutionStatus) String() string {
	switch s {
	case ExecutionOK:
		return "ok"
	case ExecutionTimeout:
		return "timeout"
	case ExecutionTouchDenied:
		return "touch denied"
	case ExecutionTransportError:
		return "transport error"
	}
	return "unknown"
}

// DeviceTransport abstracts the USB signing device. Execute is synchronous
// from the caller's perspective and is always invoked on a background
// worker, never on the UI-affine context. Framing and encryption of the
// payload are the transport's own business.
type DeviceTransport interface {
	// IsConnected reports whether a device is currently plugged.
	IsConnected() bool
	// Execute forwards one command payload to the device under the given
	// session credential and returns the raw result with its status. It is
	// never retried automatically on timeout or transport error.
	Execute(payload, sessionCredential string) (string, ExecutionStatus)
}

package application

import (
	log "github.com/sirupsen/logrus"

	"github.com/shiftdevices/bitboxd/internal/core/ports"
)

// TagHandler consumes a routed command outcome.
type TagHandler func(outcome CommandOutcome)

// ResponseRouter classifies command outcomes and dispatches them to the
// handler registered for their tag. Classification runs on the event loop,
// like every handler.
//
// The order is fixed: touch advisory first, then transport verdict, then
// the error envelope with its recovery codes, then the tag handler. An
// error envelope always short-circuits the tag handler so no state mutates
// on a failed command.
type ResponseRouter struct {
	notifier    ports.Notifier
	credentials *SessionCredentials
	handlers    map[ResponseTag]TagHandler

	// recovery hooks for credential-related envelope codes
	onWrongPassword    func()
	onPasswordRequired func()
}

func NewResponseRouter(
	notifier ports.Notifier, credentials *SessionCredentials,
) *ResponseRouter {
	return &ResponseRouter{
		notifier:    notifier,
		credentials: credentials,
		handlers:    make(map[ResponseTag]TagHandler),
	}
}

// RegisterHandler binds a tag to its handler. Re-registering a tag
// replaces the previous handler.
func (r *ResponseRouter) RegisterHandler(tag ResponseTag, handler TagHandler) {
	if _, ok := r.handlers[tag]; ok {
		log.WithField("tag", tag.String()).Warn("response handler replaced")
	}
	r.handlers[tag] = handler
}

// SetRecoveryHooks installs the flows triggered by the wrong-password and
// password-required envelope codes.
func (r *ResponseRouter) SetRecoveryHooks(onWrongPassword, onPasswordRequired func()) {
	r.onWrongPassword = onWrongPassword
	r.onPasswordRequired = onPasswordRequired
}

// Route is the default continuation for submitted commands.
func (r *ResponseRouter) Route(outcome CommandOutcome) {
	resp := outcome.Response

	touchNoticed := false
	if resp.TouchButton != nil {
		if resp.TouchButton.Info != "" {
			r.notifier.UserNotice(ports.NoticeInfo, resp.TouchButton.Info)
			touchNoticed = true
		}
		if resp.TouchButton.Err != "" {
			r.notifier.UserNotice(ports.NoticeWarning, resp.TouchButton.Err)
			touchNoticed = true
		}
	}

	// the password handler must still see non-ok outcomes: a successful
	// password change makes the response undecryptable under the old
	// credential, which the transport reports as a failure
	if outcome.Status != ports.ExecutionOK && outcome.Tag != TagPassword {
		if !touchNoticed {
			r.notifier.UserNotice(
				ports.NoticeWarning,
				"Device communication failed ("+outcome.Status.String()+")",
			)
		}
		return
	}

	if resp.Error != nil {
		r.routeError(resp.Error, touchNoticed)
		return
	}

	handler, ok := r.handlers[outcome.Tag]
	if !ok {
		log.WithField("tag", outcome.Tag.String()).Debug("no handler for response tag")
		return
	}
	handler(outcome)
}

func (r *ResponseRouter) routeError(envelope *ErrorEnvelope, touchNoticed bool) {
	switch envelope.Code {
	case ErrCodeWrongPassword:
		r.credentials.Clear()
		r.notifier.UserNotice(ports.NoticeWarning, envelope.Message)
		if r.onWrongPassword != nil {
			r.onWrongPassword()
		}
	case ErrCodeDeviceReset:
		// too many wrong attempts wiped the device, no point re-prompting
		r.credentials.Clear()
		r.notifier.UserNotice(ports.NoticeCritical, envelope.Message)
	case ErrCodePasswordRequired:
		r.credentials.Clear()
		r.notifier.UserNotice(ports.NoticeWarning, envelope.Message)
		if r.onPasswordRequired != nil {
			r.onPasswordRequired()
		}
	default:
		// the touch advisory already told the user what went wrong
		if !touchNoticed {
			r.notifier.UserNotice(ports.NoticeWarning, envelope.Message)
		}
	}
}

package application

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/shiftdevices/bitboxd/internal/core/ports"
)

// ResponseTag tells the response router how a completed command outcome is
// interpreted. A tag maps to exactly one deterministic handler.
type ResponseTag int

const (
	TagUnknown ResponseTag = iota
	TagDeviceInfo
	TagCreateWallet
	TagPassword
	TagXPubMaster
	TagXPubRequest
	TagErase
	TagLEDBlink
	TagDeviceLock
	TagRandomNumber
	TagBackupList
	TagBackupAdd
	TagBackupErase
	TagProposalSign
)

func (t ResponseTag) String() string {
	switch t {
	case TagDeviceInfo:
		return "device info"
	case TagCreateWallet:
		return "create wallet"
	case TagPassword:
		return "password"
	case TagXPubMaster:
		return "xpub master"
	case TagXPubRequest:
		return "xpub request"
	case TagErase:
		return "erase"
	case TagLEDBlink:
		return "led blink"
	case TagDeviceLock:
		return "device lock"
	case TagRandomNumber:
		return "random number"
	case TagBackupList:
		return "backup list"
	case TagBackupAdd:
		return "backup add"
	case TagBackupErase:
		return "backup erase"
	case TagProposalSign:
		return "proposal sign"
	}
	return "unknown"
}

// Command is one request for the device: an opaque payload, the tag its
// response will be classified under and an optional subtag carrying caller
// context like the wallet index. Commands are ephemeral, one per user
// action, never persisted.
type Command struct {
	Payload       string
	Tag           ResponseTag
	Subtag        int
	RequiresTouch bool
}

// CommandOutcome is produced exactly once per submitted Command. Tag and
// Subtag are threaded back unchanged from the command.
type CommandOutcome struct {
	Response *DeviceResponse
	Status   ports.ExecutionStatus
	Tag      ResponseTag
	Subtag   int
}

// Continuation consumes a command outcome on the UI-affine context.
type Continuation func(outcome CommandOutcome)

// Error envelope codes with a dedicated recovery flow.
const (
	ErrCodePasswordRequired = 101
	ErrCodeWrongPassword    = 108
	ErrCodeDeviceReset      = 110
)

// ErrorEnvelope is the generic device error object.
type ErrorEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// TouchButton is the on-device confirmation advisory. The device reports it
// either as a plain string or as an object carrying an error message.
type TouchButton struct {
	Info string
	Err  string
}

func (t *TouchButton) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.Info = s
		return nil
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	t.Err = obj.Error
	return nil
}

// StringOrError models device fields that hold either a value or a nested
// {"error": ...} object, like the xpub export result.
type StringOrError struct {
	Value string
	Err   string
}

func (v *StringOrError) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.Value = s
		return nil
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	v.Err = obj.Error
	return nil
}

// BackupField models the device backup result: a status string for add and
// erase, a filename array for list.
type BackupField struct {
	Status string
	Files  []string
}

func (b *BackupField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.Status = s
		return nil
	}
	var files []string
	if err := json.Unmarshal(data, &files); err != nil {
		return err
	}
	b.Files = files
	return nil
}

// DeviceInfo is the payload of a device info response.
type DeviceInfo struct {
	Version string `json:"version"`
	Name    string `json:"name"`
	Seeded  bool   `json:"seeded"`
	Lock    bool   `json:"lock"`
}

// SignatureEntry is one element of the signature array in a sign response.
// Entries are consumed in device order.
type SignatureEntry struct {
	Sig    string `json:"sig"`
	PubKey string `json:"pubkey"`
}

// DeviceResponse is the structured form of a raw device result. Only the
// fields addressed by the outcome's tag are meaningful, everything else
// stays at its zero value.
type DeviceResponse struct {
	Error       *ErrorEnvelope   `json:"error,omitempty"`
	TouchButton *TouchButton     `json:"touchbutton,omitempty"`
	Device      *DeviceInfo      `json:"device,omitempty"`
	Seed        string           `json:"seed,omitempty"`
	Password    string           `json:"password,omitempty"`
	XPub        *StringOrError   `json:"xpub,omitempty"`
	Reset       string           `json:"reset,omitempty"`
	Backup      *BackupField     `json:"backup,omitempty"`
	Random      string           `json:"random,omitempty"`
	Echo        string           `json:"echo,omitempty"`
	Sign        []SignatureEntry `json:"sign,omitempty"`
}

// ParseDeviceResponse converts a raw device result into its structured
// form. A result that cannot be parsed yields an empty document rather
// than a dropped outcome, the continuation always fires.
func ParseDeviceResponse(raw string) *DeviceResponse {
	resp := &DeviceResponse{}
	if err := json.Unmarshal([]byte(raw), resp); err != nil {
		return &DeviceResponse{}
	}
	return resp
}

var satoshisPerBit = decimal.NewFromInt(100)

// FormatBits renders an amount of the smallest currency unit as bits.
func FormatBits(satoshis int64) string {
	return decimal.NewFromInt(satoshis).DivRound(satoshisPerBit, 2).String() + " bits"
}

// BuildInfo groups the daemon build details set at compile time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

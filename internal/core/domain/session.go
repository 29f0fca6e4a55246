package domain

import (
	"fmt"
)

// PairingState tracks the per-wallet device pairing protocol: two
// sequential extended-public-key exports seed the session with its master
// and request keys.
type PairingState int

const (
	Unseeded PairingState = iota
	MasterKeyRequested
	MasterKeySet
	RequestKeyRequested
	Ready
)

func (s PairingState) String() string {
	switch s {
	case Unseeded:
		return "unseeded"
	case MasterKeyRequested:
		return "master key requested"
	case MasterKeySet:
		return "master key set"
	case RequestKeyRequested:
		return "request key requested"
	case Ready:
		return "ready"
	}
	return "unknown"
}

var (
	ErrSessionNotUnseeded    = fmt.Errorf("session already holds key material")
	ErrSessionNoExportActive = fmt.Errorf("no key export in progress")
	ErrSessionMissingMaster  = fmt.Errorf("master key must be set before the request key export")
	ErrSessionMissingKey     = fmt.Errorf("missing extended public key")
)

const (
	// derivation branches below the base key path, fixed by the wallet
	// service protocol
	masterKeyBranch  = "/45'"
	requestKeyBranch = "/1'/0"
)

// MultisigSession is the per-wallet persistent identity: participant name,
// key-derivation base path, exported key material and the cached remote
// wallet state, including the pending proposal set. Instances are shared
// between the UI-affine context and the background sync worker and must
// only be touched while holding the session lock owned by the application
// layer.
type MultisigSession struct {
	LocalDataKey     string
	ParticipantName  string
	BaseKeyPath      string
	MasterXPub       string
	RequestXPub      string
	CopayerID        string
	WalletRemoteName string
	WalletM          int
	WalletN          int
	AvailableBalance int64
	LastKnownAddress string
	PublicKeyRing    []string

	Proposals *ProposalStore

	pairing PairingState
}

// NewMultisigSession returns an unseeded session. LocalDataKey is the
// namespace the persistence layer files this session under.
func NewMultisigSession(
	localDataKey, participantName, baseKeyPath string,
) *MultisigSession {
	return &MultisigSession{
		LocalDataKey:    localDataKey,
		ParticipantName: participantName,
		BaseKeyPath:     baseKeyPath,
		Proposals:       NewProposalStore(),
	}
}

// RestorePairing recomputes the pairing state from loaded key material,
// used after reading a persisted session.
func (s *MultisigSession) RestorePairing() {
	switch {
	case s.MasterXPub != "" && s.RequestXPub != "":
		s.pairing = Ready
	case s.MasterXPub != "":
		s.pairing = MasterKeySet
	default:
		s.pairing = Unseeded
	}
	if s.Proposals == nil {
		s.Proposals = NewProposalStore()
	}
}

func (s *MultisigSession) PairingState() PairingState {
	return s.pairing
}

// IsSeeded reports whether both the master and request keys are available.
func (s *MultisigSession) IsSeeded() bool {
	return s.pairing == Ready
}

// MasterKeyExportPath is the device key path of the first pairing export.
func (s *MultisigSession) MasterKeyExportPath() string {
	return s.BaseKeyPath + masterKeyBranch
}

// RequestKeyExportPath is the device key path of the second pairing export.
func (s *MultisigSession) RequestKeyExportPath() string {
	return s.BaseKeyPath + requestKeyBranch
}

// SigningKeyPath expands a proposal input suffix into the full device key
// path below the signing branch.
func (s *MultisigSession) SigningKeyPath(suffix string) string {
	return s.BaseKeyPath + masterKeyBranch + "/" + suffix
}

// BeginMasterKeyExport enters the first pairing step.
func (s *MultisigSession) BeginMasterKeyExport() error {
	if s.pairing != Unseeded {
		return ErrSessionNotUnseeded
	}
	s.pairing = MasterKeyRequested
	return nil
}

// SetMasterKey stores the exported master key and advances the pairing.
func (s *MultisigSession) SetMasterKey(xPub string) error {
	if s.pairing != MasterKeyRequested {
		return ErrSessionNoExportActive
	}
	if xPub == "" {
		return ErrSessionMissingKey
	}
	s.MasterXPub = xPub
	s.pairing = MasterKeySet
	return nil
}

// BeginRequestKeyExport enters the second pairing step.
func (s *MultisigSession) BeginRequestKeyExport() error {
	if s.pairing != MasterKeySet {
		return ErrSessionMissingMaster
	}
	s.pairing = RequestKeyRequested
	return nil
}

// SetRequestKey stores the exported request key, the session is Ready.
func (s *MultisigSession) SetRequestKey(xPub string) error {
	if s.pairing != RequestKeyRequested {
		return ErrSessionNoExportActive
	}
	if xPub == "" {
		return ErrSessionMissingKey
	}
	s.RequestXPub = xPub
	s.pairing = Ready
	return nil
}

// AbortKeyExport reverts a failed export step to its prior state. No
// partial key material is retained.
func (s *MultisigSession) AbortKeyExport() {
	switch s.pairing {
	case MasterKeyRequested:
		s.pairing = Unseeded
	case RequestKeyRequested:
		s.pairing = MasterKeySet
	}
}

// ResetLocalData wipes all key material and cached remote wallet state,
// used when the device is erased.
func (s *MultisigSession) ResetLocalData() {
	s.MasterXPub = ""
	s.RequestXPub = ""
	s.CopayerID = ""
	s.WalletRemoteName = ""
	s.WalletM = 0
	s.WalletN = 0
	s.AvailableBalance = 0
	s.LastKnownAddress = ""
	s.PublicKeyRing = nil
	s.Proposals = NewProposalStore()
	s.pairing = Unseeded
}

// DisplayName renders the cached wallet name with its m-of-n descriptor.
func (s *MultisigSession) DisplayName() string {
	if s.WalletM > 0 && s.WalletN > 0 {
		return fmt.Sprintf("%s (%d of %d)", s.WalletRemoteName, s.WalletM, s.WalletN)
	}
	return s.WalletRemoteName
}

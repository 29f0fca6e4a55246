package application

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"

	"github.com/shiftdevices/bitboxd/internal/core/domain"
	"github.com/shiftdevices/bitboxd/internal/core/ports"
	"github.com/shiftdevices/bitboxd/pkg/wallet/xpub"
)

// ProposalActionType is the participant decision forwarded to the wallet
// service.
type ProposalActionType int

const (
	ActionSign ProposalActionType = iota
	ActionReject
)

var (
	ErrProposalNoInputs   = fmt.Errorf("proposal has no inputs")
	ErrProposalBadInput   = fmt.Errorf("proposal input is malformed")
	ErrProposalBadAddress = fmt.Errorf("proposal address is malformed")
	ErrProposalNoKeyRing  = fmt.Errorf("missing wallet public key ring")
)

// SigningService drives proposal display, navigation and the accept/reject
// flows. Signing rebuilds the draft transaction locally, asks the device
// for one signature per input and posts them back in input order.
//
// All methods must be called on the event loop.
type SigningService struct {
	dispatcher  *CommandDispatcher
	sessions    *SessionManager
	copayClient ports.CopayService
	syncService *SyncService
	notifier    ports.Notifier
	prompter    ports.Prompter
	loop        *EventLoop
	serviceNet  *chaincfg.Params
	walletIndex int
}

func NewSigningService(
	dispatcher *CommandDispatcher, sessions *SessionManager,
	copayClient ports.CopayService, syncService *SyncService,
	notifier ports.Notifier, prompter ports.Prompter, loop *EventLoop,
	serviceNet *chaincfg.Params, walletIndex int,
) *SigningService {
	return &SigningService{
		dispatcher:  dispatcher,
		sessions:    sessions,
		copayClient: copayClient,
		syncService: syncService,
		notifier:    notifier,
		prompter:    prompter,
		loop:        loop,
		serviceNet:  serviceNet,
		walletIndex: walletIndex,
	}
}

// RefreshDisplay re-resolves the shown proposal against the current set:
// the previous selection if it survived the last sync, otherwise the first
// pending proposal, otherwise a cleared display.
func (s *SigningService) RefreshDisplay() {
	targetID := ""
	s.sessions.WithSession(s.walletIndex, func(session *domain.MultisigSession) {
		if current := session.Proposals.Current(); current != nil {
			targetID = current.ID
		} else if session.Proposals.Len() > 0 {
			targetID = session.Proposals.List()[0].ID
		}
	})
	s.ShowProposal(targetID)
}

// ShowProposal selects and displays the proposal with the given id. A miss
// clears both the selection and the display.
func (s *SigningService) ShowProposal(id string) bool {
	var shown *domain.Proposal
	hasPrev, hasNext := false, false
	s.sessions.WithSession(s.walletIndex, func(session *domain.MultisigSession) {
		shown = session.Proposals.Select(id)
		if shown != nil {
			prevID, nextID := session.Proposals.Neighbors(id)
			hasPrev, hasNext = prevID != "", nextID != ""
		}
	})
	s.notifier.ProposalDisplayed(shown, hasPrev, hasNext)
	return shown != nil
}

// ShowNext moves the display to the positional successor of the current
// proposal.
func (s *SigningService) ShowNext() bool {
	return s.showNeighbor(false)
}

// ShowPrev moves the display to the positional predecessor of the current
// proposal.
func (s *SigningService) ShowPrev() bool {
	return s.showNeighbor(true)
}

func (s *SigningService) showNeighbor(backwards bool) bool {
	targetID := ""
	s.sessions.WithSession(s.walletIndex, func(session *domain.MultisigSession) {
		current := session.Proposals.Current()
		if current == nil {
			return
		}
		prevID, nextID := session.Proposals.Neighbors(current.ID)
		if backwards {
			targetID = prevID
		} else {
			targetID = nextID
		}
	})
	if targetID == "" {
		return false
	}
	return s.ShowProposal(targetID)
}

// ProcessCurrent runs the given action on the currently displayed proposal.
func (s *SigningService) ProcessCurrent(action ProposalActionType) bool {
	var current *domain.Proposal
	s.sessions.WithSession(s.walletIndex, func(session *domain.MultisigSession) {
		current = session.Proposals.Current()
	})
	if current == nil {
		return false
	}
	return s.ProcessProposal(current, action)
}

// ProcessProposal signs or rejects the proposal. Rejection goes straight to
// the wallet service; signing first asks the device for the per-input
// signatures, halting on the verification echo until the user confirms.
func (s *SigningService) ProcessProposal(
	proposal *domain.Proposal, action ProposalActionType,
) bool {
	if action == ActionReject {
		s.reject(proposal)
		return true
	}

	var ring []string
	copayerID := ""
	baseKeyPath := ""
	s.sessions.WithSession(s.walletIndex, func(session *domain.MultisigSession) {
		ring = session.PublicKeyRing
		copayerID = session.CopayerID
		baseKeyPath = session.BaseKeyPath
	})

	if copayerID != "" && proposal.AcceptedBy(copayerID) {
		s.notifier.UserNotice(ports.NoticeInfo, "This proposal is already signed")
		return false
	}

	requests, err := buildSigningRequests(proposal, ring, s.serviceNet)
	if err != nil {
		log.WithError(err).WithField("proposal", proposal.ID).
			Warn("cannot prepare proposal for signing")
		s.notifier.UserNotice(ports.NoticeWarning, "The proposal cannot be signed: "+err.Error())
		return false
	}

	cmd := signCommand(requests, baseKeyPath)
	return s.dispatcher.Submit(cmd, func(outcome CommandOutcome) {
		s.handleSignOutcome(proposal, outcome)
	})
}

// handleSignOutcome consumes the device sign response. An echo halts the
// flow for out-of-band verification and re-submits the same proposal once
// confirmed.
func (s *SigningService) handleSignOutcome(
	proposal *domain.Proposal, outcome CommandOutcome,
) {
	resp := outcome.Response

	// the sign command carries its own continuation, so the router's touch
	// advisory handling has to be mirrored here
	touchNoticed := false
	if resp.TouchButton != nil {
		if resp.TouchButton.Info != "" {
			s.notifier.UserNotice(ports.NoticeInfo, resp.TouchButton.Info)
			touchNoticed = true
		}
		if resp.TouchButton.Err != "" {
			s.notifier.UserNotice(ports.NoticeWarning, resp.TouchButton.Err)
			touchNoticed = true
		}
	}

	if outcome.Status != ports.ExecutionOK {
		if !touchNoticed {
			s.notifier.UserNotice(
				ports.NoticeWarning,
				"Device communication failed ("+outcome.Status.String()+")",
			)
		}
		return
	}
	if resp.Error != nil {
		if !touchNoticed {
			s.notifier.UserNotice(ports.NoticeWarning, resp.Error.Message)
		}
		return
	}
	if resp.Echo != "" {
		if !s.prompter.VerifyEcho(resp.Echo) {
			s.notifier.UserNotice(ports.NoticeInfo, "Signing aborted")
			return
		}
		s.ProcessProposal(proposal, ActionSign)
		return
	}
	if len(resp.Sign) == 0 {
		if !touchNoticed {
			s.notifier.UserNotice(ports.NoticeWarning, "The device returned no signatures")
		}
		return
	}

	// device order matches input order; malformed entries are skipped
	// rather than failing the batch
	signatures := make([]string, 0, len(resp.Sign))
	for _, entry := range resp.Sign {
		if entry.Sig == "" {
			continue
		}
		if _, err := hex.DecodeString(entry.Sig); err != nil {
			continue
		}
		signatures = append(signatures, entry.Sig)
	}
	if len(signatures) == 0 {
		s.notifier.UserNotice(ports.NoticeWarning, "The device returned no usable signatures")
		return
	}
	s.postSignatures(proposal, signatures)
}

func (s *SigningService) postSignatures(proposal *domain.Proposal, signatures []string) {
	snapshot := s.sessions.Snapshot(s.walletIndex)
	go func() {
		err := s.copayClient.SubmitSignatures(
			context.Background(), snapshot, proposal, signatures,
		)
		s.loop.Post(func() {
			if err != nil {
				s.notifier.UserNotice(
					ports.NoticeWarning, "Could not post the signatures: "+err.Error(),
				)
			}
			// resync regardless, the server state is authoritative
			s.syncService.Update()
		})
	}()
}

func (s *SigningService) reject(proposal *domain.Proposal) {
	snapshot := s.sessions.Snapshot(s.walletIndex)
	go func() {
		err := s.copayClient.RejectProposal(context.Background(), snapshot, proposal)
		s.loop.Post(func() {
			if err != nil {
				s.notifier.UserNotice(
					ports.NoticeWarning, "Could not reject the proposal: "+err.Error(),
				)
			}
			s.syncService.Update()
		})
	}()
}

// buildSigningRequests rebuilds the draft transaction from the proposal and
// computes one legacy multisig sighash per input, paired with the input's
// derivation suffix.
func buildSigningRequests(
	proposal *domain.Proposal, keyRing []string, net *chaincfg.Params,
) ([]SigningRequest, error) {
	if len(proposal.Inputs) == 0 {
		return nil, ErrProposalNoInputs
	}
	if len(keyRing) == 0 {
		return nil, ErrProposalNoKeyRing
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	totalIn := int64(0)
	for _, input := range proposal.Inputs {
		prevHash, err := chainhash.NewHashFromStr(input.TxID)
		if err != nil {
			return nil, ErrProposalBadInput
		}
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(prevHash, input.Vout), nil, nil))
		totalIn += input.Satoshis
	}

	payScript, err := addressScript(proposal.ToAddress, net)
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(proposal.Amount, payScript))

	change := totalIn - proposal.Amount - proposal.Fee
	if change > 0 && proposal.ChangeAddress != "" {
		changeScript, err := addressScript(proposal.ChangeAddress, net)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(wire.NewTxOut(change, changeScript))
	}

	requests := make([]SigningRequest, 0, len(proposal.Inputs))
	for i, input := range proposal.Inputs {
		redeemScript, err := multisigRedeemScript(
			keyRing, input.Path, proposal.RequiredSignatures, net,
		)
		if err != nil {
			return nil, err
		}
		sighash, err := txscript.CalcSignatureHash(redeemScript, txscript.SigHashAll, tx, i)
		if err != nil {
			return nil, err
		}
		requests = append(requests, SigningRequest{
			HashHex: hex.EncodeToString(sighash),
			Suffix:  input.Path,
		})
	}
	return requests, nil
}

func addressScript(encoded string, net *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(encoded, net)
	if err != nil {
		return nil, ErrProposalBadAddress
	}
	return txscript.PayToAddrScript(addr)
}

// multisigRedeemScript derives every ring key along the input suffix and
// assembles the m-of-n redeem script over the lexicographically sorted
// public keys, the ordering the wallet service addresses are built with.
func multisigRedeemScript(
	keyRing []string, suffix string, required int, net *chaincfg.Params,
) ([]byte, error) {
	derived := make([][]byte, 0, len(keyRing))
	for _, strKey := range keyRing {
		child, err := xpub.DeriveSuffixFromString(strKey, suffix, net)
		if err != nil {
			return nil, err
		}
		pubKey, err := child.ECPubKey()
		if err != nil {
			return nil, err
		}
		derived = append(derived, pubKey.SerializeCompressed())
	}
	sort.Slice(derived, func(i, j int) bool {
		return bytes.Compare(derived[i], derived[j]) < 0
	})

	addrKeys := make([]*btcutil.AddressPubKey, 0, len(derived))
	for _, serialized := range derived {
		addrKey, err := btcutil.NewAddressPubKey(serialized, net)
		if err != nil {
			return nil, err
		}
		addrKeys = append(addrKeys, addrKey)
	}
	return txscript.MultiSigScript(addrKeys, required)
}

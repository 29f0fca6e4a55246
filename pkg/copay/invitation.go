package copay

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/google/uuid"
)

const (
	NetworkLive = "livenet"
	NetworkTest = "testnet"

	// length of the base58 wallet id block at the head of an invitation,
	// right-padded with '0' which never occurs in base58.
	widBlockLen = 22
)

var ErrInvalidInvitation = fmt.Errorf("invalid wallet invitation")

// Invitation is the parsed form of the shareable code used to join a shared
// wallet: the wallet id, the wallet private key authorizing the join request
// and the network the wallet lives on.
type Invitation struct {
	WalletID      string
	WalletPrivKey *btcutil.WIF
	Network       string
}

// ParseInvitation decodes an invitation code. A code with any missing or
// malformed field is rejected wholesale, there are no defaults.
func ParseInvitation(code string) (*Invitation, error) {
	code = strings.TrimSpace(code)
	if len(code) <= widBlockLen+1 {
		return nil, fmt.Errorf("%w: code too short", ErrInvalidInvitation)
	}

	widBlock := strings.ReplaceAll(code[:widBlockLen], "0", "")
	widBytes := base58.Decode(widBlock)
	if len(widBytes) != 16 {
		return nil, fmt.Errorf("%w: malformed wallet id", ErrInvalidInvitation)
	}
	walletID, err := uuid.FromBytes(widBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed wallet id", ErrInvalidInvitation)
	}

	var network string
	var net *chaincfg.Params
	switch code[len(code)-1] {
	case 'T':
		network, net = NetworkTest, &chaincfg.TestNet3Params
	case 'L':
		network, net = NetworkLive, &chaincfg.MainNetParams
	default:
		return nil, fmt.Errorf("%w: unknown network marker", ErrInvalidInvitation)
	}

	wif, err := btcutil.DecodeWIF(code[widBlockLen : len(code)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: malformed wallet key", ErrInvalidInvitation)
	}
	if !wif.IsForNet(net) {
		return nil, fmt.Errorf("%w: wallet key network mismatch", ErrInvalidInvitation)
	}

	return &Invitation{
		WalletID:      walletID.String(),
		WalletPrivKey: wif,
		Network:       network,
	}, nil
}

// Serialize re-encodes the invitation into its shareable string form.
func (inv *Invitation) Serialize() (string, error) {
	walletID, err := uuid.Parse(inv.WalletID)
	if err != nil {
		return "", fmt.Errorf("%w: malformed wallet id", ErrInvalidInvitation)
	}
	if inv.WalletPrivKey == nil {
		return "", fmt.Errorf("%w: missing wallet key", ErrInvalidInvitation)
	}

	var marker string
	switch inv.Network {
	case NetworkTest:
		marker = "T"
	case NetworkLive:
		marker = "L"
	default:
		return "", fmt.Errorf("%w: unknown network %q", ErrInvalidInvitation, inv.Network)
	}

	widBlock := base58.Encode(walletID[:])
	for len(widBlock) < widBlockLen {
		widBlock += "0"
	}

	return widBlock + inv.WalletPrivKey.String() + marker, nil
}

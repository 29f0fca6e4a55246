package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shiftdevices/bitboxd/internal/core/domain"
)

func TestSessionPairingHappyPath(t *testing.T) {
	session := domain.NewMultisigSession("copay_multisig", "bitbox", "m/131'")
	require.Equal(t, domain.Unseeded, session.PairingState())
	require.False(t, session.IsSeeded())

	require.Equal(t, "m/131'/45'", session.MasterKeyExportPath())
	require.Equal(t, "m/131'/1'/0", session.RequestKeyExportPath())
	require.Equal(t, "m/131'/45'/0/5", session.SigningKeyPath("0/5"))

	require.NoError(t, session.BeginMasterKeyExport())
	require.Equal(t, domain.MasterKeyRequested, session.PairingState())

	require.NoError(t, session.SetMasterKey("tpub-master"))
	require.Equal(t, domain.MasterKeySet, session.PairingState())

	require.NoError(t, session.BeginRequestKeyExport())
	require.NoError(t, session.SetRequestKey("tpub-request"))
	require.Equal(t, domain.Ready, session.PairingState())
	require.True(t, session.IsSeeded())
}

func TestSessionPairingInvalidTransitions(t *testing.T) {
	session := domain.NewMultisigSession("copay_multisig", "bitbox", "m/131'")

	// cannot set a key with no export in progress
	require.ErrorIs(t, session.SetMasterKey("tpub"), domain.ErrSessionNoExportActive)
	require.ErrorIs(t, session.SetRequestKey("tpub"), domain.ErrSessionNoExportActive)

	// request key export requires the master key first
	require.ErrorIs(t, session.BeginRequestKeyExport(), domain.ErrSessionMissingMaster)

	require.NoError(t, session.BeginMasterKeyExport())
	require.ErrorIs(t, session.BeginMasterKeyExport(), domain.ErrSessionNotUnseeded)

	// an empty key string never advances the pairing
	require.ErrorIs(t, session.SetMasterKey(""), domain.ErrSessionMissingKey)
	require.Equal(t, domain.MasterKeyRequested, session.PairingState())
}

func TestSessionAbortKeyExportRetainsNoPartialKey(t *testing.T) {
	session := domain.NewMultisigSession("copay_multisig", "bitbox", "m/131'")

	require.NoError(t, session.BeginMasterKeyExport())
	session.AbortKeyExport()
	require.Equal(t, domain.Unseeded, session.PairingState())
	require.Empty(t, session.MasterXPub)

	require.NoError(t, session.BeginMasterKeyExport())
	require.NoError(t, session.SetMasterKey("tpub-master"))
	require.NoError(t, session.BeginRequestKeyExport())
	session.AbortKeyExport()
	require.Equal(t, domain.MasterKeySet, session.PairingState())
	require.Equal(t, "tpub-master", session.MasterXPub)
	require.Empty(t, session.RequestXPub)
}

func TestSessionRestorePairing(t *testing.T) {
	session := &domain.MultisigSession{
		LocalDataKey: "copay_multisig",
		MasterXPub:   "tpub-master",
		RequestXPub:  "tpub-request",
	}
	session.RestorePairing()
	require.Equal(t, domain.Ready, session.PairingState())
	require.NotNil(t, session.Proposals)

	session = &domain.MultisigSession{LocalDataKey: "copay_multisig", MasterXPub: "tpub-master"}
	session.RestorePairing()
	require.Equal(t, domain.MasterKeySet, session.PairingState())

	session = &domain.MultisigSession{LocalDataKey: "copay_multisig"}
	session.RestorePairing()
	require.Equal(t, domain.Unseeded, session.PairingState())
}

func TestSessionResetLocalData(t *testing.T) {
	session := domain.NewMultisigSession("copay_multisig", "bitbox", "m/131'")
	require.NoError(t, session.BeginMasterKeyExport())
	require.NoError(t, session.SetMasterKey("tpub-master"))
	require.NoError(t, session.BeginRequestKeyExport())
	require.NoError(t, session.SetRequestKey("tpub-request"))
	session.CopayerID = "copayer"
	session.AvailableBalance = 42
	session.WalletRemoteName = "shared"
	session.Proposals.Replace([]*domain.Proposal{{ID: "p1"}})

	session.ResetLocalData()

	require.Equal(t, domain.Unseeded, session.PairingState())
	require.Empty(t, session.MasterXPub)
	require.Empty(t, session.RequestXPub)
	require.Empty(t, session.CopayerID)
	require.Zero(t, session.AvailableBalance)
	require.Zero(t, session.Proposals.Len())

	// the identity itself survives an erase
	require.Equal(t, "copay_multisig", session.LocalDataKey)
	require.Equal(t, "m/131'", session.BaseKeyPath)
}

func TestSessionDisplayName(t *testing.T) {
	session := domain.NewMultisigSession("copay_multisig", "bitbox", "m/131'")
	session.WalletRemoteName = "family"
	require.Equal(t, "family", session.DisplayName())

	session.WalletM, session.WalletN = 2, 3
	require.Equal(t, "family (2 of 3)", session.DisplayName())
}

package xpub

import (
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	path "github.com/shiftdevices/bitboxd/pkg/wallet/derivation-path"
)

// Deserialize parses an extended public key in base58 format and checks it
// against the version bytes of the given network. Private keys are refused,
// the device must never leak one.
func Deserialize(strKey string, net *chaincfg.Params) (*hdkeychain.ExtendedKey, error) {
	key, err := hdkeychain.NewKeyFromString(strKey)
	if err != nil {
		return nil, ErrMalformedKey
	}
	if key.IsPrivate() {
		return nil, ErrPrivateKey
	}
	if !key.IsForNet(net) {
		return nil, ErrMalformedKey
	}
	return key, nil
}

// ConvertVersion re-serializes an extended public key under the public key
// version bytes of the target network.
func ConvertVersion(key *hdkeychain.ExtendedKey, target *chaincfg.Params) (string, error) {
	converted, err := key.CloneWithVersion(target.HDPublicKeyID[:])
	if err != nil {
		return "", ErrMalformedKey
	}
	return converted.String(), nil
}

// DeriveSuffix derives the child extended public key along the given
// relative suffix path. Only non-hardened steps can be derived from public
// key material.
func DeriveSuffix(
	key *hdkeychain.ExtendedKey, suffix path.DerivationPath,
) (*hdkeychain.ExtendedKey, error) {
	child := key
	for _, step := range suffix {
		if step >= hdkeychain.HardenedKeyStart {
			return nil, ErrHardenedSuffix
		}
		var err error
		child, err = child.Derive(step)
		if err != nil {
			return nil, err
		}
	}
	return child, nil
}

// DeriveSuffixFromString is a convenience composing Deserialize and
// DeriveSuffix for callers holding the key and the path in string format.
func DeriveSuffixFromString(
	strKey, strSuffix string, net *chaincfg.Params,
) (*hdkeychain.ExtendedKey, error) {
	key, err := Deserialize(strKey, net)
	if err != nil {
		return nil, err
	}
	suffix, err := path.ParseRelativePath(strSuffix)
	if err != nil {
		return nil, err
	}
	return DeriveSuffix(key, suffix)
}

package path

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// DerivationPath is the data structure representing an HD path.
type DerivationPath []uint32

// ParseDerivationPath converts a derivation path in string format, absolute
// or relative, to a DerivationPath type.
func ParseDerivationPath(strPath string) (DerivationPath, error) {
	return parseDerivationPath(strPath, false)
}

// ParseBaseKeyPath parses the absolute path prefix under which all device
// keys of a wallet session are derived (eg. m/131'). Every component must be
// hardened: the device refuses to export anything above a hardened level.
func ParseBaseKeyPath(strPath string) (DerivationPath, error) {
	path, err := parseDerivationPath(strPath, true)
	if err != nil {
		return nil, err
	}
	for _, step := range path {
		if step < hdkeychain.HardenedKeyStart {
			return nil, ErrInvalidBaseKeyPath
		}
	}
	return path, nil
}

// ParseRelativePath parses a path suffix with no m/ prefix, the form used by
// payment proposals to address a signing key below the base path.
func ParseRelativePath(strPath string) (DerivationPath, error) {
	if strings.HasPrefix(strings.TrimSpace(strPath), "m") {
		return nil, ErrRequiredRelativeDerivationPath
	}
	return parseDerivationPath(strPath, false)
}

// Extend returns a new path with the given steps appended, leaving the
// receiver untouched.
func (path DerivationPath) Extend(steps ...uint32) DerivationPath {
	extended := make(DerivationPath, 0, len(path)+len(steps))
	extended = append(extended, path...)
	extended = append(extended, steps...)
	return extended
}

func (path DerivationPath) String() string {
	if len(path) <= 0 {
		return ""
	}
	return "m/" + path.RelativeString()
}

// RelativeString formats the path without the m/ prefix.
func (path DerivationPath) RelativeString() string {
	elems := make([]string, 0, len(path))
	for _, component := range path {
		var hardened bool
		if component >= hdkeychain.HardenedKeyStart {
			component -= hdkeychain.HardenedKeyStart
			hardened = true
		}
		elem := fmt.Sprintf("%d", component)
		if hardened {
			elem += "'"
		}
		elems = append(elems, elem)
	}
	return strings.Join(elems, "/")
}

func parseDerivationPath(
	strPath string, checkAbsolutePath bool,
) (DerivationPath, error) {
	if strPath == "" {
		return nil, ErrMissingDerivationPath
	}

	elems := strings.Split(strPath, "/")
	if containsEmptyString(elems) {
		return nil, ErrMalformedDerivationPath
	}
	if checkAbsolutePath {
		if strings.TrimSpace(elems[0]) != "m" {
			return nil, ErrRequiredAbsoluteDerivationPath
		}
	}
	if strings.TrimSpace(elems[0]) == "m" {
		elems = elems[1:]
	}
	if len(elems) < 1 {
		return nil, ErrMalformedDerivationPath
	}

	path := make(DerivationPath, 0, len(elems))
	for _, elem := range elems {
		elem = strings.TrimSpace(elem)
		var value uint32

		if strings.HasSuffix(elem, "'") {
			value = hdkeychain.HardenedKeyStart
			elem = strings.TrimSpace(strings.TrimSuffix(elem, "'"))
		}

		// use big int for conversion
		bigval, ok := new(big.Int).SetString(elem, 0)
		if !ok {
			return nil, fmt.Errorf("invalid elem '%s' in path", elem)
		}

		max := math.MaxUint32 - value
		if bigval.Sign() < 0 || bigval.Cmp(big.NewInt(int64(max))) > 0 {
			if value == 0 {
				return nil, fmt.Errorf("elem %v must be in range [0, %d]", bigval, max)
			}
			return nil, fmt.Errorf("elem %v must be in hardened range [0, %d]", bigval, max)
		}
		value += uint32(bigval.Uint64())

		path = append(path, value)
	}

	return path, nil
}

func containsEmptyString(composedPath []string) bool {
	for _, s := range composedPath {
		if s == "" {
			return true
		}
	}
	return false
}

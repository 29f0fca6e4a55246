package path

import (
	"fmt"
)

var (
	ErrMissingDerivationPath          = fmt.Errorf("missing derivation path")
	ErrInvalidBaseKeyPath             = fmt.Errorf("base key path must contain only hardened values")
	ErrRequiredAbsoluteDerivationPath = fmt.Errorf("path must be an absolute derivation starting with 'm/'")
	ErrRequiredRelativeDerivationPath = fmt.Errorf("path must be a relative derivation without 'm/' prefix")
	ErrMalformedDerivationPath        = fmt.Errorf("path must not start or end with a '/'")
)

package xpub

import (
	"fmt"
)

var (
	ErrMalformedKey   = fmt.Errorf("extended key cannot be deserialized under the expected version bytes")
	ErrPrivateKey     = fmt.Errorf("expected an extended public key, got a private one")
	ErrHardenedSuffix = fmt.Errorf("cannot derive a hardened child from public key material")
)

package seal

import "errors"

// Public, stable errors for callers.
var (
	ErrPassphraseMissing  = errors.New("seal passphrase missing")
	ErrPassphraseTooShort = errors.New("seal passphrase too short")
	ErrInvalidBlob        = errors.New("invalid sealed blob")
	ErrDecrypt            = errors.New("sealed blob failed authentication")
)

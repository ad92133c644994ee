// Package hashing hashes and verifies account passwords.
package hashing

import "errors"

var (
	// ErrInvalidOption is returned when a hasher is constructed with bad parameters.
	ErrInvalidOption = errors.New("hashing: invalid option")
	// ErrInvalidHash is returned when a stored hash cannot be parsed.
	ErrInvalidHash = errors.New("hashing: invalid hash")
	// ErrPasswordTooLong is returned for passwords bcrypt would silently truncate.
	ErrPasswordTooLong = errors.New("hashing: password exceeds 72 bytes")
)

// Hasher produces and verifies salted password hashes.
type Hasher interface {
	// Make returns a salted hash of password.
	Make(password string) (string, error)
	// Check reports whether password matches hash. A mismatch is (false, nil).
	Check(password, hash string) (bool, error)
	// NeedsRehash reports whether hash was produced with different parameters.
	NeedsRehash(hash string) (bool, error)
}

// Package validation checks client-supplied input before it reaches the store.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"blogapi/internal/hashing"
)

// MaxUsernameLength matches the users.username column size.
const MaxUsernameLength = 150

// ValidateUsername checks presence and length. Usernames are stored as sent,
// so " alice" and "alice" are different accounts.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
	}
	if strings.ContainsAny(username, "\x00\r\n\t") {
		return fmt.Errorf("username contains invalid characters")
	}
	return nil
}

// ValidatePassword checks presence and length. Passwords are never trimmed.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) > hashing.MaxPasswordBytes {
		return fmt.Errorf("password must not exceed %d bytes", hashing.MaxPasswordBytes)
	}
	return nil
}

// ValidateCredentials runs both checks, username first.
func ValidateCredentials(username, password string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	return ValidatePassword(password)
}

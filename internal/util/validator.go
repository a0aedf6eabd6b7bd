package util

import (
	"fmt"
	"net/mail"
	"regexp"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.@-]+$`)

// ValidateUsername checks length (3-64) and the allowed characters.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username is empty")
	}
	if len(username) < 3 || len(username) > 64 {
		return fmt.Errorf("username must be 3 to 64 characters")
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("username may only contain letters, digits and _ . @ -")
	}
	return nil
}

// ValidatePassword checks the password length (6-128).
func ValidatePassword(password string) error {
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	if len(password) > 128 {
		return fmt.Errorf("password too long, max 128 characters")
	}
	return nil
}

// ValidateEmail accepts an empty address, since email is optional.
func ValidateEmail(email string) error {
	if email == "" {
		return nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email %q", email)
	}
	return nil
}

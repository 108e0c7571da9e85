package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced to the presentation layer.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidCredentials covers unknown email, wrong password, and the
	// provider's combined "invalid login credentials" answer.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailExists indicates sign-up with an email that already has an account.
	ErrEmailExists = errors.New("email already in use")

	// ErrInvalidEmail indicates a malformed email address.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrPopupClosed indicates the user dismissed the federated sign-in consent
	// screen. It is not shown to the user.
	ErrPopupClosed = errors.New("federated sign-in dismissed")

	// ErrPasswordMismatch indicates the sign-up confirmation does not match.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrPasswordTooShort indicates a password below MinPasswordLength.
	ErrPasswordTooShort = errors.New("password too short")

	// ErrFederatedUnavailable indicates no federated provider is configured.
	ErrFederatedUnavailable = errors.New("federated sign-in not configured")

	// ErrNotSignedIn indicates an operation that needs a user was called without one.
	ErrNotSignedIn = errors.New("not signed in")
)

// MinPasswordLength is the shortest password accepted by the sign-in form.
const MinPasswordLength = 6

// ProviderError is an identity-provider failure with no dedicated sentinel.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// providerError maps a provider error code to a sentinel where one exists.
// The raw message looks like "WEAK_PASSWORD : Password should be at least 6 characters".
func providerError(raw string) error {
	code, _, _ := strings.Cut(raw, " : ")
	code = strings.TrimSpace(code)

	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, code)
	case "EMAIL_EXISTS":
		return fmt.Errorf("%w: %s", ErrEmailExists, code)
	case "INVALID_EMAIL":
		return fmt.Errorf("%w: %s", ErrInvalidEmail, code)
	default:
		return &ProviderError{Code: code, Message: raw}
	}
}

// ValidateSignIn checks the sign-in form before contacting the provider.
func ValidateSignIn(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// ValidateSignUp checks the sign-up form before contacting the provider.
// A confirmation mismatch is reported before a short password.
func ValidateSignUp(password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	return ValidateSignIn(password)
}

// UserMessage returns the text to show for an identity error.
// silent is true when nothing should be shown at all.
func UserMessage(err error) (msg string, silent bool) {
	return userMessage(err, "Something went wrong")
}

// FederatedUserMessage is UserMessage for the Google sign-in flow.
func FederatedUserMessage(err error) (msg string, silent bool) {
	return userMessage(err, "Google sign-in failed")
}

func userMessage(err error, fallback string) (string, bool) {
	switch {
	case err == nil:
		return "", true
	case errors.Is(err, ErrPopupClosed):
		return "", true
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password", false
	case errors.Is(err, ErrEmailExists):
		return "An account with this email already exists", false
	case errors.Is(err, ErrInvalidEmail):
		return "Invalid email address", false
	case errors.Is(err, ErrPasswordMismatch):
		return "Passwords do not match", false
	case errors.Is(err, ErrPasswordTooShort):
		return fmt.Sprintf("Password must be at least %d characters", MinPasswordLength), false
	}
	if msg := err.Error(); msg != "" {
		return msg, false
	}
	return fallback, false
}

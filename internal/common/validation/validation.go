package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "bookworm/internal/common/errors"
)

const (
	MaxTitleLength    = 200
	MaxCaptionLength  = 1000
	MinUsernameLength = 3
	MaxUsernameLength = 32
	MinPasswordLength = 6
	MinRating         = 1
	MaxRating         = 5
)

var (
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
	dataURLRegex  = regexp.MustCompile(`^data:[a-zA-Z0-9.+-]+/[a-zA-Z0-9.+-]+;base64,.+`)
)

// Required rejects empty or whitespace-only values.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.NewValidationError(field, "is required")
	}
	return nil
}

func ValidateUsername(username string) error {
	if err := Required("username", username); err != nil {
		return err
	}
	username = strings.TrimSpace(username)
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return apperrors.NewValidationError("username", "must be between 3 and 32 characters")
	}
	if !usernameRegex.MatchString(username) {
		return apperrors.NewValidationError("username", "may contain only letters, digits, '.', '-' and '_'")
	}
	return nil
}

func ValidateEmail(email string) error {
	if err := Required("email", email); err != nil {
		return err
	}
	if !emailRegex.MatchString(strings.TrimSpace(email)) {
		return apperrors.NewValidationError("email", "is not a valid address")
	}
	return nil
}

func ValidatePassword(password string) error {
	if password == "" {
		return apperrors.NewValidationError("password", "is required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperrors.NewValidationError("password", "must be at least 6 characters long")
	}
	return nil
}

// ValidateRegistration applies the full signup rules the server enforces.
func ValidateRegistration(username, email, password string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}
	return ValidatePassword(password)
}

// ValidateSignupPresence only demands that every signup field is filled in.
func ValidateSignupPresence(username, email, password string) error {
	if err := Required("username", username); err != nil {
		return err
	}
	if err := Required("email", email); err != nil {
		return err
	}
	if password == "" {
		return apperrors.NewValidationError("password", "is required")
	}
	return nil
}

// ValidateCredentials only demands presence; the server is the judge of the rest.
func ValidateCredentials(email, password string) error {
	if err := Required("email", email); err != nil {
		return err
	}
	if password == "" {
		return apperrors.NewValidationError("password", "is required")
	}
	return nil
}

func ValidateTitle(title string) error {
	if err := Required("title", title); err != nil {
		return err
	}
	if utf8.RuneCountInString(strings.TrimSpace(title)) > MaxTitleLength {
		return apperrors.NewValidationError("title", "cannot exceed 200 characters")
	}
	return nil
}

func ValidateCaption(caption string) error {
	if err := Required("caption", caption); err != nil {
		return err
	}
	if utf8.RuneCountInString(strings.TrimSpace(caption)) > MaxCaptionLength {
		return apperrors.NewValidationError("caption", "cannot exceed 1000 characters")
	}
	return nil
}

func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return apperrors.NewValidationError("rating", "must be between 1 and 5")
	}
	return nil
}

// ValidateImageDataURL expects "data:<mime>;base64,<payload>".
func ValidateImageDataURL(image string) error {
	if image == "" {
		return apperrors.NewValidationError("image", "is required")
	}
	if !dataURLRegex.MatchString(image) {
		return apperrors.NewValidationError("image", "must be a base64 data URL")
	}
	return nil
}

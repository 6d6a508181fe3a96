package auth

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

const (
	maxNameLength       = 100
	maxAddressLength    = 255
	maxCityLength       = 100
	maxCountryLength    = 100
	maxPostalCodeLength = 20
)

// validatePassword enforces the length bounds bcrypt and the service accept
func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	if len(password) > MaxPasswordBytes {
		return wrapError(ErrValidationFailed, nil).WithMetadata(map[string]any{
			"password": "password must be at most 72 bytes",
		})
	}
	return nil
}

// Validate checks field lengths. Phone numbers are checked separately by
// normalizeProfileUpdate since they need the default region.
func (p ProfileUpdate) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, maxNameLength)),
		validation.Field(&p.Address, validation.Length(0, maxAddressLength)),
		validation.Field(&p.City, validation.Length(0, maxCityLength)),
		validation.Field(&p.Country, validation.Length(0, maxCountryLength)),
		validation.Field(&p.PostalCode, validation.Length(0, maxPostalCodeLength)),
	)
}

// normalizeProfileUpdate trims every set field, validates lengths and
// rewrites the phone number to E.164. An empty phone clears the stored one.
func normalizeProfileUpdate(update ProfileUpdate, region string) (ProfileUpdate, error) {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		s := strings.TrimSpace(*v)
		return &s
	}

	update.Name = trim(update.Name)
	update.Phone = trim(update.Phone)
	update.Address = trim(update.Address)
	update.City = trim(update.City)
	update.Country = trim(update.Country)
	update.PostalCode = trim(update.PostalCode)

	if err := update.Validate(); err != nil {
		return update, validationError(err)
	}

	if update.Phone != nil && *update.Phone != "" {
		phone, err := NormalizePhone(*update.Phone, region)
		if err != nil {
			return update, wrapError(ErrValidationFailed, err).WithMetadata(map[string]any{
				"phone": err.Error(),
			})
		}
		update.Phone = &phone
	}

	return update, nil
}

// NormalizePhone parses number using region for national formats and
// returns it in E.164 form
func NormalizePhone(number, region string) (string, error) {
	if region == "" {
		region = DefaultPhoneRegion
	}

	parsed, err := phonenumbers.Parse(number, strings.ToUpper(region))
	if err != nil {
		return "", err
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return "", goerrors.New("invalid phone number", goerrors.CategoryValidation)
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// validationError turns ozzo errors into ErrValidationFailed with per field messages
func validationError(err error) error {
	if err == nil {
		return nil
	}

	var errs validation.Errors
	if goerrors.As(err, &errs) {
		richErr := wrapError(ErrValidationFailed, err)
		fields := make(map[string]any, len(errs))
		for field, fieldErr := range errs {
			fields[field] = fieldErr.Error()
			richErr.ValidationErrors = append(richErr.ValidationErrors, goerrors.FieldError{
				Field:   field,
				Message: fieldErr.Error(),
			})
		}
		return richErr.WithMetadata(fields)
	}

	return wrapError(ErrValidationFailed, err)
}

// Package validation checks wire payloads with go-playground/validator
// before they reach the protocol layer.
package validation

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"duet/internal/crypto"
	"duet/internal/domain"
)

// Validator wraps go-playground/validator with the duet-specific tags.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the "suite" tag registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("suite", validSuite); err != nil {
		panic(err)
	}
	return &Validator{v: v}
}

func validSuite(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if id == "" {
		return false
	}
	_, err := crypto.LookupSuite(domain.SuiteID(id))
	return err == nil
}

// Struct validates payload. Failures wrap domain.ErrInvalidMessage.
func (v *Validator) Struct(payload any) error {
	if err := v.v.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", domain.ErrInvalidMessage, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}
	return nil
}

// RelayMessage validates msg and checks that exactly one payload is set.
func (v *Validator) RelayMessage(msg domain.RelayMessage) error {
	if (msg.Handshake == nil) == (msg.Envelope == nil) {
		return fmt.Errorf("%w: exactly one of handshake and envelope must be set", domain.ErrInvalidMessage)
	}
	return v.Struct(msg)
}

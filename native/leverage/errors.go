package leverage

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("leverage: validation failed")
	ErrUnauthorized        = errors.New("leverage: unauthorized")
	ErrArithmeticUnderflow = errors.New("leverage: arithmetic underflow")
	ErrConfigExists        = errors.New("leverage: config already stored")
	ErrNotInstantiated     = errors.New("leverage: config not found")
	ErrInvalidConfig       = errors.New("leverage: invalid config")
	ErrUnknownCommand      = errors.New("leverage: unknown command")
	ErrUnknownQuery        = errors.New("leverage: unknown query")
)

func depositValidationError() error {
	return fmt.Errorf("%w: exactly one coin of denomination %s required", ErrValidation, AcceptedDenom)
}

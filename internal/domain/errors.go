package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTransport      = errors.New("transport error")
	ErrMalformedData  = errors.New("malformed data")
	ErrValidation     = errors.New("validation error")
	ErrStoreOperation = errors.New("store operation failed")

	ErrMissingField    = fmt.Errorf("%w: missing required field", ErrValidation)
	ErrInvalidDate     = fmt.Errorf("%w: invalid date", ErrMalformedData)
	ErrPayloadTooLarge = fmt.Errorf("%w: payload exceeds size limit", ErrTransport)
)

// SPDX-License-Identifier: GPL-2.0-or-later

package studio

import (
	"fmt"

	"github.com/pkg/errors"

	"modelguy/mstream"
)

var (
	ErrMalformedHeader         = errors.New("malformed header")
	ErrOutOfBounds             = mstream.ErrOutOfBounds
	ErrInvalidCrossReference   = errors.New("invalid cross reference")
	ErrMalformedStream         = errors.New("malformed stream")
	ErrUnsupportedExternalData = errors.New("unsupported external data")
)

// ValidationError names the substructure that failed a check.
type ValidationError struct {
	Kind   error
	Where  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Where, e.Kind)
	}
	return fmt.Sprintf("%s: %v (%s)", e.Where, e.Kind, e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func verr(kind error, where string, format string, v ...interface{}) error {
	return &ValidationError{
		Kind:   kind,
		Where:  where,
		Detail: fmt.Sprintf(format, v...),
	}
}

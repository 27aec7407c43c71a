// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "errors"

// TransientError marks infrastructure failures that are retried on a later cycle.
type TransientError struct {
	Err error
}

func (t *TransientError) Error() string {
	return "transient: " + t.Err.Error()
}

func (t *TransientError) Unwrap() error {
	return t.Err
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

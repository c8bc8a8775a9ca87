/*
Copyright 2026 The Lodestone Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package lderrors provides the error type used throughout the driver.
//
// Every error carries a Code. Codes are wire-stable: the proxy reports
// failures as integer codes inside the response envelope, and the driver
// surfaces them unchanged. Use New or Errorf to create an error with a
// code, Wrap/Wrapf to add context while preserving the code of the cause,
// and CodeOf to recover the code from any error in the chain.
package lderrors

import (
	"errors"
	"fmt"
)

type fundamental struct {
	code Code
	msg  string
}

func (f *fundamental) Error() string   { return f.msg }
func (f *fundamental) ErrorCode() Code { return f.code }

type wrapping struct {
	code Code
	err  error
	msg  string
}

func (w *wrapping) Error() string   { return w.msg + ": " + w.err.Error() }
func (w *wrapping) ErrorCode() Code { return w.code }
func (w *wrapping) Unwrap() error   { return w.err }

// New returns an error with the given code and message.
func New(code Code, msg string) error {
	return &fundamental{code: code, msg: msg}
}

// Errorf formats according to a format specifier and returns an error
// with the given code.
func Errorf(code Code, format string, args ...any) error {
	return &fundamental{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an error annotating err with msg. The code of err is
// preserved. If err is nil, Wrap returns nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrapping{code: CodeOf(err), err: err, msg: msg}
}

// Wrapf is Wrap with a format specifier.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrapping{code: CodeOf(err), err: err, msg: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code carried by err or the nearest cause that has
// one. Errors without a code report UnknownError.
func CodeOf(err error) Code {
	for err != nil {
		if coded, ok := err.(interface{ ErrorCode() Code }); ok {
			return coded.ErrorCode()
		}
		err = errors.Unwrap(err)
	}
	return UnknownError
}

// FromInt converts an integer code received on the wire into an error.
// Unrecognized integers map to UnknownError.
func FromInt(code int, msg string) error {
	c := Code(code)
	if c.known() {
		return New(c, msg)
	}
	return Errorf(UnknownError, "invalid integer error code %d: %s", code, msg)
}

// IsRetryable reports whether the operation that produced err may
// succeed if retried. Throttling codes and transient server codes are
// retryable; user errors and hard server failures are not.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ReadLimitExceeded, WriteLimitExceeded, OperationLimitExceeded,
		ServerError, ServiceUnavailable, TableBusy,
		SecurityInfoUnavailable, RetryAuthentication, InternalRetry:
		return true
	}
	return false
}

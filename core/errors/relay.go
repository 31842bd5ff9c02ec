// Package errors defines the relay's abort errors. Every user-visible failure
// carries a stable short code so external tooling can classify aborts without
// matching message strings.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is a stable machine-readable error class.
type Code string

const (
	CodeNotOwner               Code = "ERR_NOT_OWNER"
	CodeNotFounder             Code = "ERR_NOT_FOUNDER"
	CodeNotSelf                Code = "ERR_NOT_SELF"
	CodeAlreadyInitialized     Code = "ERR_ALREADY_INITIALIZED"
	CodeInvalidStatus          Code = "ERR_INVALID_STATUS"
	CodeDuplicateAppchain      Code = "ERR_DUPLICATE_APPCHAIN"
	CodeDuplicateValidator     Code = "ERR_DUPLICATE_VALIDATOR"
	CodeDuplicateBridgeToken   Code = "ERR_DUPLICATE_BRIDGE_TOKEN"
	CodeDuplicateNativeToken   Code = "ERR_DUPLICATE_NATIVE_TOKEN"
	CodeInsufficientStake      Code = "ERR_INSUFFICIENT_STAKE"
	CodeInsufficientValidators Code = "ERR_INSUFFICIENT_VALIDATORS"
	CodeInsufficientDeposit    Code = "ERR_INSUFFICIENT_DEPOSIT"
	CodeInsufficientLocked     Code = "ERR_INSUFFICIENT_LOCKED"
	CodeBadMessage             Code = "ERR_BAD_MESSAGE"
	CodeAppchainNotFound       Code = "ERR_APPCHAIN_NOT_FOUND"
	CodeValidatorNotFound      Code = "ERR_VALIDATOR_NOT_FOUND"
	CodeBridgeTokenNotFound    Code = "ERR_BRIDGE_TOKEN_NOT_FOUND"
	CodeNativeTokenNotFound    Code = "ERR_NATIVE_TOKEN_NOT_FOUND"
	CodeBridgeNotActive        Code = "ERR_BRIDGE_NOT_ACTIVE"
	CodeCommitmentMismatch     Code = "ERR_COMMITMENT_MISMATCH"
	CodeProofInvalid           Code = "ERR_PROOF_INVALID"
	CodeDecode                 Code = "ERR_DECODE"
	CodeExternalFailure        Code = "ERR_EXTERNAL_FAILURE"
	CodeLimitExceeded          Code = "ERR_LIMIT_EXCEEDED"
	CodeMigration              Code = "ERR_MIGRATION"
	CodeInternal               Code = "ERR_INTERNAL"
)

// Error is an abort with a stable code and a human-readable message.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Msg
}

// New builds a coded error.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code from an error chain. Errors that did not originate
// from this package classify as ERR_INTERNAL.
func CodeOf(err error) Code {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// HasCode reports whether the error chain carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

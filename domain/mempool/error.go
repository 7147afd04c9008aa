// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"

	"github.com/pkg/errors"
)

// RuleError identifies a rule violation. It is used to indicate that
// processing of a transaction failed due to one of the mempool rules. The
// caller can use errors.As to determine if a failure was specifically due to
// a rule violation and use the Err field to access the underlying TxRuleError.
type RuleError struct {
	Err error
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	if e.Err == nil {
		return "<nil>"
	}
	return e.Err.Error()
}

// RejectCode represents a numeric value by which a transaction was rejected
type RejectCode uint8

// These constants define the various supported reject codes.
const (
	RejectMalformed   RejectCode = 0x01
	RejectDuplicate   RejectCode = 0x12
	RejectDoubleSpend RejectCode = 0x13
	RejectPoolFull    RejectCode = 0x14
)

var rejectCodeStrings = map[RejectCode]string{
	RejectMalformed:   "REJECT_MALFORMED",
	RejectDuplicate:   "REJECT_DUPLICATE",
	RejectDoubleSpend: "REJECT_DOUBLESPEND",
	RejectPoolFull:    "REJECT_POOLFULL",
}

// String returns the RejectCode in human-readable form.
func (code RejectCode) String() string {
	if s, ok := rejectCodeStrings[code]; ok {
		return s
	}

	return fmt.Sprintf("Unknown RejectCode (%d)", uint8(code))
}

// TxRuleError identifies a rule violation. The RejectCode field tells the
// specific reason for the rejection.
type TxRuleError struct {
	RejectCode  RejectCode // The code to send with reject messages
	Description string     // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e TxRuleError) Error() string {
	return e.Description
}

func txRuleError(c RejectCode, desc string) RuleError {
	return RuleError{
		Err: TxRuleError{RejectCode: c, Description: desc},
	}
}

// ExtractRejectCode returns the reject code carried by err, if any
func ExtractRejectCode(err error) (RejectCode, bool) {
	var trErr TxRuleError
	if errors.As(err, &trErr) {
		return trErr.RejectCode, true
	}
	return RejectMalformed, false
}

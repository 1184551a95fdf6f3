package storage

import "errors"

// ErrInsufficientBalance is returned when an append would leave the account balance negative.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrBalanceOverflow is returned when an append would push the balance or total spend past its storable range.
var ErrBalanceOverflow = errors.New("balance overflow")

// ErrVersionConflict is returned when the account changed between read and append.
var ErrVersionConflict = errors.New("account version conflict")

// ErrDuplicateOperation is returned when the idempotency key was already committed for the account.
var ErrDuplicateOperation = errors.New("operation already committed")

// ErrAccountNotFound is returned when no account matches the lookup.
var ErrAccountNotFound = errors.New("account not found")

// ErrAccountExists is returned when an account already exists for the user or public code.
var ErrAccountExists = errors.New("account already exists")

// ErrRulesetNotFound is returned when no ruleset is effective at the requested instant.
var ErrRulesetNotFound = errors.New("ruleset not found")

// ErrRulesetExists is returned when a ruleset with the same effectiveFrom already exists.
var ErrRulesetExists = errors.New("ruleset already exists")

// ErrOperationNotFound is returned when no idempotency record exists for the key.
var ErrOperationNotFound = errors.New("operation not found")

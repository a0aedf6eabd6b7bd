package ledger

import "errors"

var (
	// ErrInvalidAmount means the amount is missing or not a number.
	ErrInvalidAmount = errors.New("amount is not a valid number")

	// ErrNegativeAmount means the amount is below zero.
	ErrNegativeAmount = errors.New("amount must not be negative")

	// ErrInvalidDate means the declared date is not a calendar date.
	ErrInvalidDate = errors.New("date is not a valid calendar date")

	// ErrUnknownType means the type is not deposit, withdrawal or expense.
	ErrUnknownType = errors.New("unknown transaction type")

	// ErrInsufficientBalance marks a debit that was stored but not applied.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrUnreadableBatch means the batch source could not be decoded at all.
	ErrUnreadableBatch = errors.New("unreadable transaction batch")
)

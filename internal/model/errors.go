package model

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrNotAuthorized         = errors.New("not authorized")
	ErrInvalidState          = errors.New("invalid state")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidInput          = errors.New("invalid input")
)

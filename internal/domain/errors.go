package domain

import "errors"

var (
	ErrSerializationFailure   = errors.New("serialization failure")
	ErrNotFound               = errors.New("not found")
	ErrInvalidInput           = errors.New("invalid input")
	ErrEventNotFound          = errors.New("event not found")
	ErrEventEnded             = errors.New("event already ended")
	ErrTicketNotSellable      = errors.New("ticket type not sellable")
	ErrSaleClosed             = errors.New("sale window closed")
	ErrInsufficientInventory  = errors.New("insufficient inventory")
	ErrBookingNotFound        = errors.New("booking not found")
	ErrAlreadyConfirmed       = errors.New("booking already confirmed")
	ErrInvalidTransition      = errors.New("invalid booking transition")
	ErrRetryNotAllowed        = errors.New("retry not allowed from current state")
	ErrInvalidSignature       = errors.New("invalid webhook signature")
	ErrGatewayAuth            = errors.New("gateway authentication failed")
	ErrGatewayOrder           = errors.New("gateway order creation failed")
)

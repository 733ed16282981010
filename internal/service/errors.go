package service

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTicket   = errors.New("unknown ticket")
	ErrKeyNotFound     = errors.New("key not found")
	ErrDuplicateKey    = errors.New("key already issued")
	ErrDuplicateTicket = errors.New("ticket already registered")
	ErrTicketRedeemed  = errors.New("ticket already redeemed")
	ErrTicketNotActive = errors.New("ticket is not in a renderable state")

	// ErrStorageUnavailable marks transient infrastructure faults. It is the
	// only condition callers should retry; every other error here is a
	// terminal business answer.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

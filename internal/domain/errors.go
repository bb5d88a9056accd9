package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrDataIntegrity    = errors.New("data integrity violation")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrPermissionDenied = errors.New("permission denied")
	ErrStatusConflict   = errors.New("status changed concurrently")
	ErrRateLimited      = errors.New("rate limited")
	ErrLockHeld         = errors.New("lock already held")
)

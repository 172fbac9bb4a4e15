package app

import "errors"

// Expected, recoverable conditions returned by the dispatch services.
// Infrastructure faults (database, network) are wrapped and returned as-is.
var (
	ErrInvalidKind         = errors.New("invalid target kind, expected user, group or channel")
	ErrIndexOutOfRange     = errors.New("index out of range")
	ErrEmptyPool           = errors.New("content pool is empty")
	ErrEmptyContent        = errors.New("content body is empty")
	ErrInvalidDueTime      = errors.New("invalid due time")
	ErrInvalidTransition   = errors.New("item is not pending")
	ErrNoEligibleTarget    = errors.New("no eligible target")
	ErrItemNotFound        = errors.New("scheduled item not found")
	ErrTargetNotFound      = errors.New("target not found")
	ErrTargetAlreadyExists = errors.New("target with this id already exists")
	ErrContentNotFound     = errors.New("content item not found")
)

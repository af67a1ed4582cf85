package errors

import "errors"

var (
	ErrScheduleNotFound         = errors.New("vesting schedule not found")
	ErrNoDefaultSchedule        = errors.New("no default vesting schedule configured")
	ErrDefaultScheduleExists    = errors.New("default vesting schedule already set")
	ErrInvalidSchedule          = errors.New("invalid vesting schedule")
	ErrPositionNotFound         = errors.New("vesting position not found")
	ErrInvalidPosition          = errors.New("invalid vesting position")
	ErrAlreadyHasPosition       = errors.New("beneficiary already has a vesting position")
	ErrNotStarted               = errors.New("vesting has not started")
	ErrCompleted                = errors.New("vesting position fully released")
	ErrNothingToClaim           = errors.New("nothing to release")
	ErrConcurrentRelease        = errors.New("position changed by a concurrent release")
	ErrLockNotFound             = errors.New("token lock not found")
	ErrInvalidLock              = errors.New("invalid token lock")
	ErrLockActive               = errors.New("token lock still active")
	ErrLockWithdrawn            = errors.New("token lock already withdrawn")
	ErrForbidden                = errors.New("forbidden")
	ErrArithmeticOverflow       = errors.New("arithmetic overflow")
	ErrRepositoryInvariantBroke = errors.New("repository invariant violated")
)

var (
	ErrScheduleExists = errors.New("vesting schedule already exists")
	ErrLockExists     = errors.New("token lock already exists")
)

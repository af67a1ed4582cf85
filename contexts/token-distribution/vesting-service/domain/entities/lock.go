package entities

import (
	"strings"
	"time"

	domainerrors "dropvest/contexts/token-distribution/vesting-service/domain/errors"
)

// TokenLock holds an amount in escrow until UnlockAt. It is withdrawn at most
// once.
type TokenLock struct {
	LockID        string
	Owner         string
	Amount        uint64
	UnlockAt      time.Time
	EscrowAccount string
	SourceRef     string
	CreatedAt     time.Time
	WithdrawnAt   *time.Time
}

type NewLockInput struct {
	LockID        string
	Owner         string
	Amount        uint64
	Duration      time.Duration
	EscrowAccount string
	SourceRef     string
}

func NewLock(input NewLockInput, now time.Time) (TokenLock, error) {
	owner := NormalizeAccount(input.Owner)
	if strings.TrimSpace(input.LockID) == "" ||
		owner == "" ||
		strings.TrimSpace(input.EscrowAccount) == "" {
		return TokenLock{}, domainerrors.ErrInvalidLock
	}
	if input.Amount == 0 || input.Duration <= 0 {
		return TokenLock{}, domainerrors.ErrInvalidLock
	}
	return TokenLock{
		LockID:        input.LockID,
		Owner:         owner,
		Amount:        input.Amount,
		UnlockAt:      now.Add(input.Duration).UTC(),
		EscrowAccount: input.EscrowAccount,
		SourceRef:     strings.TrimSpace(input.SourceRef),
		CreatedAt:     now.UTC(),
	}, nil
}

func (l TokenLock) IsWithdrawn() bool {
	return l.WithdrawnAt != nil
}

// CheckWithdraw reports why the lock cannot be withdrawn at now, if at all.
// The unlock instant itself is withdrawable.
func (l TokenLock) CheckWithdraw(owner string, now time.Time) error {
	if NormalizeAccount(owner) != l.Owner {
		return domainerrors.ErrForbidden
	}
	if l.IsWithdrawn() {
		return domainerrors.ErrLockWithdrawn
	}
	if now.Before(l.UnlockAt) {
		return domainerrors.ErrLockActive
	}
	return nil
}

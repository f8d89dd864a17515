package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound — общий признак отсутствующего пользователя или подписки.
	ErrNotFound             = errors.New("not found")
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrSubscriptionNotFound = fmt.Errorf("subscription %w", ErrNotFound)

	// ErrActiveSubscriptionExists возвращается хранилищем при нарушении
	// уникальности текущей подписки пользователя.
	ErrActiveSubscriptionExists = errors.New("user already has a current subscription")

	// ErrEmailTaken возвращается хранилищем, если e-mail уже закреплён за другой учётной записью.
	ErrEmailTaken = errors.New("email already belongs to another user")

	ErrInconsistentState  = errors.New("inconsistent state")
	ErrStaleEvent         = errors.New("stale gateway event")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrTesterCannotCancel = errors.New("tester accounts cannot be cancelled")
)

// DuplicateSubscriptionError — у пользователя уже есть подписка в состоянии trial или active.
type DuplicateSubscriptionError struct {
	Existing []ExistingSubscription
}

func (e *DuplicateSubscriptionError) Error() string {
	return "an active subscription already exists"
}

// Is позволяет сравнивать с ErrActiveSubscriptionExists через errors.Is.
func (e *DuplicateSubscriptionError) Is(target error) bool {
	return target == ErrActiveSubscriptionExists
}

// GatewayError — ошибка платёжного шлюза.
type GatewayError struct {
	Op         string
	StatusCode int
	Name       string
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Name != "" || e.Message != "":
		return fmt.Sprintf("gateway %s: %d %s: %s", e.Op, e.StatusCode, e.Name, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("gateway %s: status %d", e.Op, e.StatusCode)
	}
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

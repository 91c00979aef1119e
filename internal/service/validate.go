package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/wareline/wareline/internal/basket"
	"github.com/wareline/wareline/internal/remote"
)

// ValidationCode classifies why a scanned basket is or is not usable for
// the current workflow. Each code maps to a distinct user-facing message
// and retry policy: NotRegistered and WrongStatus are terminal for the
// scan, Transient is retryable by rescanning.
type ValidationCode string

const (
	ValidationOK             ValidationCode = "ok"
	ValidationNotRegistered  ValidationCode = "not_registered"
	ValidationWrongStatus    ValidationCode = "wrong_status"
	ValidationAlreadyClaimed ValidationCode = "already_claimed"
	ValidationTransient      ValidationCode = "transient"
)

// ValidationResult is the outcome of a workflow usability check.
type ValidationResult struct {
	Code   ValidationCode
	Reason string
}

// Retryable reports whether rescanning the same basket can succeed.
func (r ValidationResult) Retryable() bool { return r.Code == ValidationTransient }

func accept() ValidationResult { return ValidationResult{Code: ValidationOK} }

func reject(code ValidationCode, format string, args ...any) ValidationResult {
	return ValidationResult{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// WorkflowValidator is the capability each workflow supplies: one method
// taking a basket snapshot and returning accept or reject-with-reason.
// The operation service stays ignorant of workflow identity.
type WorkflowValidator interface {
	Validate(b basket.Basket) ValidationResult
}

// ValidatorFunc adapts a function to the WorkflowValidator interface.
type ValidatorFunc func(b basket.Basket) ValidationResult

func (f ValidatorFunc) Validate(b basket.Basket) ValidationResult { return f(b) }

// CheckForWorkflow fetches a basket through the dual-path read and runs
// the workflow's validator on the snapshot. Fetch failures are folded
// into the result: absence is NotRegistered, everything else Transient.
func (s *Service) CheckForWorkflow(ctx context.Context, tag string, v WorkflowValidator) (basket.Basket, ValidationResult) {
	b, err := s.FetchBasket(ctx, tag)
	switch {
	case err == nil:
		return b, v.Validate(b)
	case errors.Is(err, ErrNotRegistered), errors.Is(err, ErrNotFoundLocal):
		return basket.Basket{}, reject(ValidationNotRegistered, "tag %s is not registered", tag)
	case remote.IsRetryable(err):
		return basket.Basket{}, reject(ValidationTransient, "lookup failed, rescan: %v", err)
	default:
		return basket.Basket{}, reject(ValidationTransient, "lookup failed: %v", err)
	}
}

// ProductionValidator accepts only empty unassigned baskets: a basket
// already in production belongs to another line.
func ProductionValidator() WorkflowValidator {
	return ValidatorFunc(func(b basket.Basket) ValidationResult {
		switch b.Status {
		case basket.StatusUnassigned:
			if b.HasAssociations() {
				return reject(ValidationAlreadyClaimed, "basket %s already carries a configuration", b.Tag)
			}
			return accept()
		case basket.StatusInProduction:
			return reject(ValidationAlreadyClaimed, "basket %s is already on a production line", b.Tag)
		default:
			return reject(ValidationWrongStatus, "basket %s is %s, expected unassigned", b.Tag, b.Status)
		}
	})
}

// ReceivingValidator accepts baskets arriving from production.
func ReceivingValidator() WorkflowValidator {
	return ValidatorFunc(func(b basket.Basket) ValidationResult {
		if b.Status != basket.StatusInProduction {
			return reject(ValidationWrongStatus, "basket %s is %s, expected in_production", b.Tag, b.Status)
		}
		if b.ProductRef == nil {
			return reject(ValidationWrongStatus, "basket %s has no product assigned", b.Tag)
		}
		return accept()
	})
}

// LoadingValidator accepts stocked baskets that can go on a truck.
func LoadingValidator() WorkflowValidator {
	return ValidatorFunc(func(b basket.Basket) ValidationResult {
		if b.Status != basket.StatusInStock {
			return reject(ValidationWrongStatus, "basket %s is %s, expected in_stock", b.Tag, b.Status)
		}
		if b.Quantity <= 0 {
			return reject(ValidationWrongStatus, "basket %s is empty", b.Tag)
		}
		return accept()
	})
}

// InventoryValidator accepts anything countable: received or stocked.
func InventoryValidator() WorkflowValidator {
	return ValidatorFunc(func(b basket.Basket) ValidationResult {
		switch b.Status {
		case basket.StatusReceived, basket.StatusInStock:
			return accept()
		default:
			return reject(ValidationWrongStatus, "basket %s is %s, not countable", b.Tag, b.Status)
		}
	})
}

package database

import (
	stderrors "errors"
	"strings"

	"github.com/lib/pq"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

// Postgres SQLSTATE codes the stock service reacts to.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeNotNullViolation     = "23502"
	codeInvalidTextRepr      = "22P02"
	codeNumericOutOfRange    = "22003"
)

// MapPQError converts a PostgreSQL error (possibly wrapped) to an AppError.
// Returns nil if err does not carry a pq.Error or the code is not mapped.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return errors.Concurrency(pqErr)

	case codeUniqueViolation:
		return errors.Conflict(formatConstraintMessage(pqErr))

	case codeForeignKeyViolation:
		return errors.NotFound(referencedEntity(pqErr))

	case codeCheckViolation:
		return mapCheckConstraint(pqErr)

	case codeNotNullViolation:
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	case codeInvalidTextRepr:
		return errors.Validation(map[string]string{
			"id": "is not a valid identifier",
		})

	case codeNumericOutOfRange:
		return errors.Validation(map[string]string{
			"quantity": "is out of range",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps the stock schema CHECK constraints to field errors.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.Validation(map[string]string{
			"quantity": "must not be negative",
		})
	case strings.Contains(constraint, "reserved_within_quantity"):
		return errors.Validation(map[string]string{
			"reserved": "must be between zero and the on-hand quantity",
		})
	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "is not a known status",
		})
	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "document_number"):
		return "a document with this number already exists"
	case strings.Contains(constraint, "stock_records_key"):
		return "a stock record for this item, location and batch already exists"
	default:
		return "a record with these values already exists"
	}
}

func referencedEntity(pqErr *pq.Error) string {
	switch {
	case strings.Contains(pqErr.Constraint, "item"):
		return "item"
	case strings.Contains(pqErr.Constraint, "location"):
		return "location"
	case strings.Contains(pqErr.Constraint, "recipe"):
		return "recipe"
	default:
		return "referenced record"
	}
}

package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrConflict       ErrorCode = "CONFLICT"
	ErrBadRequest     ErrorCode = "BAD_REQUEST"
	ErrInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"

	// Domain codes for the interledger core.
	ErrInvalidAddress      ErrorCode = "INVALID_ADDRESS"
	ErrInvalidHeader       ErrorCode = "INVALID_HEADER"
	ErrInsufficientFunds   ErrorCode = "INSUFFICIENT_FUNDS"
	ErrAccountNotFound     ErrorCode = "ACCOUNT_NOT_FOUND"
	ErrEscrowNotFound      ErrorCode = "ESCROW_NOT_FOUND"
	ErrNoRouteToLedger     ErrorCode = "NO_ROUTE_TO_LEDGER"
	ErrOrphanedTransaction ErrorCode = "ORPHANED_TRANSACTION"
	ErrNotConnected        ErrorCode = "NOT_CONNECTED"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	if details != nil {
		logrus.Error(details)
	}
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// HasCode reports whether err carries the given code, unwrapping as needed.
func HasCode(err error, code ErrorCode) bool {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

func MapErrorToHTTPStatus(err error) int {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrNotFound, ErrAccountNotFound, ErrEscrowNotFound, ErrNoRouteToLedger:
			return http.StatusNotFound
		case ErrConflict:
			return http.StatusConflict
		case ErrInvalidInput, ErrInvalidAddress, ErrInvalidHeader, ErrBadRequest:
			return http.StatusBadRequest
		case ErrInsufficientFunds:
			return http.StatusUnprocessableEntity
		case ErrInternalServer:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

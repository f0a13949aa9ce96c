package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-readable error category shared by every code.
type Kind string

const (
	KindValidation                Kind = "ValidationError"
	KindNotFound                  Kind = "NotFound"
	KindForbidden                 Kind = "Forbidden"
	KindUnauthorized              Kind = "Unauthorized"
	KindConflict                  Kind = "Conflict"
	KindInsufficientFunds         Kind = "InsufficientFunds"
	KindInsufficientReservedFunds Kind = "InsufficientReservedFunds"
	KindInvalidTransition         Kind = "InvalidTransition"
	KindCampaignNotAssignable     Kind = "CampaignNotAssignable"
	KindSubmissionWindowClosed    Kind = "SubmissionWindowClosed"
	KindInsufficientViews         Kind = "InsufficientViews"
	KindExternalService           Kind = "ExternalServiceFailure"
	KindRateLimited               Kind = "RateLimited"
	KindInternal                  Kind = "Internal"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string         `json:"error_code"`
	Kind       Kind           `json:"kind"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail returns the error with an extra detail attached.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError.
func New(code string, kind Kind, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, kind Kind, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ---- Input (VAL) ----

// Validation returns a VAL_001 error for malformed or missing input.
func Validation(message string) *AppError {
	return New("VAL_001", KindValidation, message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return Validation("Amount must be greater than zero")
}

// ---- Resources (RES) ----

func ErrNotFound(entity string) *AppError {
	return New("RES_001", KindNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Security (SEC) ----

func ErrForbidden(message string) *AppError {
	return New("SEC_001", KindForbidden, message, http.StatusForbidden)
}

func ErrInvalidToken() *AppError {
	return New("SEC_002", KindUnauthorized, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Conflicts (CON) ----

func ErrConflict(message string) *AppError {
	return New("CON_001", KindConflict, message, http.StatusConflict)
}

func ErrDuplicatePromotion() *AppError {
	return New("CON_002", KindConflict, "Promoter is already assigned to this campaign", http.StatusConflict)
}

func ErrDuplicateWithdrawal() *AppError {
	return New("CON_003", KindConflict, "Withdrawal reference already used with different parameters", http.StatusConflict)
}

func ErrDuplicateDeposit() *AppError {
	return New("CON_004", KindConflict, "Payment reference already booked", http.StatusConflict)
}

// CodeUPITaken marks a UPI lost to a concurrent admission.
const CodeUPITaken = "CON_005"

func ErrUPITaken() *AppError {
	return New(CodeUPITaken, KindConflict, "UPI already in use", http.StatusConflict)
}

// ---- Wallet (WAL) ----

func ErrInsufficientFunds(available, required int64) *AppError {
	return New("WAL_001", KindInsufficientFunds, "Insufficient balance in wallet", http.StatusPaymentRequired).
		WithDetail("available", available).
		WithDetail("required", required)
}

func ErrInsufficientReservedFunds(available, required int64) *AppError {
	return New("WAL_002", KindInsufficientReservedFunds, "Insufficient reserved funds in wallet", http.StatusPaymentRequired).
		WithDetail("available", available).
		WithDetail("required", required)
}

// ---- State machines (STA, CMP, PRM) ----

func ErrInvalidTransition(entity, from, to string) *AppError {
	return New("STA_001", KindInvalidTransition,
		fmt.Sprintf("%s cannot move from %s to %s", entity, from, to), http.StatusUnprocessableEntity).
		WithDetail("from", from).
		WithDetail("to", to)
}

func ErrCampaignNotAssignable() *AppError {
	return New("CMP_001", KindCampaignNotAssignable, "Campaign is not accepting promoters", http.StatusConflict)
}

func ErrSubmissionWindowClosed() *AppError {
	return New("PRM_001", KindSubmissionWindowClosed, "Proof submission window is closed", http.StatusUnprocessableEntity)
}

func ErrInsufficientViews(reported, required int) *AppError {
	return New("PRM_002", KindInsufficientViews, "Reported views are below the campaign minimum", http.StatusUnprocessableEntity).
		WithDetail("reported", reported).
		WithDetail("required", required)
}

// ---- External services (EXT) ----

func ErrExternalService(service string, err error) *AppError {
	return Wrap("EXT_001", KindExternalService, fmt.Sprintf("%s is unavailable", service), http.StatusBadGateway, err)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", KindRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", KindInternal, "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", KindInternal, "Internal server error", http.StatusInternalServerError, err)
}

package usecase

import (
	"context"
	"errors"
	"fmt"

	repo "orderengine/internal/repository"
)

type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindState        ErrorKind = "state"
	KindTransient    ErrorKind = "transient"
	KindUnauthorized ErrorKind = "unauthorized"
	KindInternal     ErrorKind = "internal"
)

// 機械可読なエラーコード
const (
	CodeInvalidRequest         = "invalid_request"
	CodeUnauthorized           = "unauthorized"
	CodeCartNotFound           = "cart_not_found"
	CodeItemNotFound           = "item_not_found"
	CodeOrderNotFound          = "order_not_found"
	CodeExchangeReturnNotFound = "exchange_return_not_found"
	CodeInsufficientStock      = "insufficient_stock"
	CodeDuplicateRequest       = "duplicate_request"
	CodeAlreadyCancelled       = "already_cancelled"
	CodeAlreadyConfirmed       = "already_confirmed"
	CodeInvalidTransition      = "invalid_transition"
	CodeOrderNotEligible       = "order_not_eligible"
	CodeNotDelivered           = "not_delivered"
	CodeRetryable              = "retryable"
	CodeInternal               = "internal"
)

// usecaseが返すエラー。KindでHTTPステータス、Codeでクライアントが分岐する
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error // ログ用の元エラー（外には出さない）
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(kind ErrorKind, code string, message string) error {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	ok := errors.As(err, &ae)
	return ae, ok
}

func invalid(format string, args ...any) error {
	return NewAppError(KindValidation, CodeInvalidRequest, fmt.Sprintf(format, args...))
}

func unauthorized() error {
	return NewAppError(KindUnauthorized, CodeUnauthorized, "unauthorized")
}

// 想定外のDBエラー。元エラーはErrに残す（リトライ判定もこれを見る）
func internal(err error) error {
	return &AppError{Kind: KindInternal, Code: CodeInternal, Message: "internal error", Err: err}
}

// WithinTxの戻り値を外に出す形にそろえる
func finishTx(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrTransient) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return &AppError{
			Kind:    KindTransient,
			Code:    CodeRetryable,
			Message: "temporarily unavailable, retry the request",
			Err:     err,
		}
	}
	if _, ok := AsAppError(err); ok {
		return err
	}
	return internal(err)
}

package services

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Code is a machine-readable error code surfaced to the frontend.
type Code string

const (
	CodeValidation        Code = "VALIDATION"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
)

// EngineError carries a code alongside the message so handlers can map it to
// an HTTP status without string matching.
type EngineError struct {
	Code Code
	Msg  string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func Validationf(format string, args ...interface{}) error {
	return &EngineError{Code: CodeValidation, Msg: fmt.Sprintf(format, args...)}
}

func Forbiddenf(format string, args ...interface{}) error {
	return &EngineError{Code: CodeForbidden, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...interface{}) error {
	return &EngineError{Code: CodeNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...interface{}) error {
	return &EngineError{Code: CodeConflict, Msg: fmt.Sprintf(format, args...)}
}

// ErrInsufficientFunds is returned by wallet debits and escrows; creation and
// join paths must reject before any state change when they see it.
var ErrInsufficientFunds = &EngineError{Code: CodeInsufficientFunds, Msg: "insufficient funds"}

func httpStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInsufficientFunds:
		return fiber.StatusBadRequest
	case CodeForbidden:
		return fiber.StatusForbidden
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeConflict:
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// RespondError writes an engine error as JSON with its mapped status, and
// anything else as a 500 without leaking internals.
func RespondError(c *fiber.Ctx, err error) error {
	var ee *EngineError
	if errors.As(err, &ee) {
		return c.Status(httpStatus(ee.Code)).JSON(fiber.Map{"error": ee.Msg, "code": ee.Code})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

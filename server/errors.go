package server

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

const unexpectedError = "An unexpected server error occurred"

// ErrInvalidID is returned when a path parameter is not a UUID.
var ErrInvalidID = goerrors.New("invalid identifier", goerrors.CategoryBadInput).
	WithTextCode("INVALID_ID").
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidPayload is returned when a request body cannot be decoded or validated.
var ErrInvalidPayload = goerrors.New("invalid request payload", goerrors.CategoryBadInput).
	WithTextCode("INVALID_PAYLOAD").
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidQuery is returned when a query parameter cannot be parsed.
var ErrInvalidQuery = goerrors.New("invalid query parameter", goerrors.CategoryBadInput).
	WithTextCode("INVALID_QUERY").
	WithCode(goerrors.CodeBadRequest)

// ErrorHandler renders errors as {"error", "text_code"} JSON. Rich errors
// keep their status, anything else is a 500.
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"error": fiberErr.Message,
			})
		}

		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) || richErr.Code == 0 || richErr.Code >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"error", err,
			)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": unexpectedError,
			})
		}

		body := fiber.Map{
			"error":     richErr.Message,
			"text_code": richErr.TextCode,
		}

		var fields validation.Errors
		if errors.As(err, &fields) {
			body["details"] = fields
		}

		logger.Debug("request rejected",
			"method", c.Method(),
			"path", c.Path(),
			"status", richErr.Code,
			"text_code", richErr.TextCode,
			"details", print.MaybePrettyJSON(body["details"]),
		)

		return c.Status(richErr.Code).JSON(body)
	}
}

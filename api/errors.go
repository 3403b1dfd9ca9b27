package api

import (
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

const TextCodeInvalidPayload = "INVALID_PAYLOAD"

// ErrInvalidPayload is returned for bodies or path values that do not parse
// or validate. Field messages are in metadata under "fields".
var ErrInvalidPayload = goerrors.New("invalid request payload", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidPayload).
	WithCode(goerrors.CodeBadRequest)

// invalidPayload turns ozzo field errors into ErrInvalidPayload
func invalidPayload(err error) error {
	fields := map[string]string{}
	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				fields[field] = ferr.Error()
			}
		}
	} else {
		fields["body"] = err.Error()
	}
	return invalidField(fields)
}

func invalidField(fields map[string]string) error {
	clone := ErrInvalidPayload.Clone()
	if clone == nil {
		return ErrInvalidPayload
	}
	clone.Source = ErrInvalidPayload
	return clone.WithMetadata(map[string]any{"fields": fields})
}

// ErrorBody is the JSON envelope of every failed request
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message  string         `json:"message"`
	TextCode string         `json:"text_code,omitempty"`
	Category string         `json:"category,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ErrorResponse maps err to its HTTP status and body. Errors that do not
// carry a category are reported as a generic 500.
func ErrorResponse(err error) (int, ErrorBody) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError, ErrorBody{Error: ErrorDetail{
			Message:  http.StatusText(http.StatusInternalServerError),
			Category: fmt.Sprint(goerrors.CategoryInternal),
		}}
	}

	status := richErr.Code
	if status < 400 || status > 599 {
		status = statusFromCategory(richErr.Category)
	}

	detail := ErrorDetail{
		Message:  richErr.Message,
		TextCode: richErr.TextCode,
		Category: fmt.Sprint(richErr.Category),
		Metadata: richErr.Metadata,
	}

	if status >= http.StatusInternalServerError {
		detail.Message = http.StatusText(http.StatusInternalServerError)
		detail.Metadata = nil
	}

	return status, ErrorBody{Error: detail}
}

func statusFromCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler writes err as JSON. It is also used by the guard middleware.
func ErrorHandler(logger Logger) router.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return func(ctx router.Context, err error) error {
		status, body := ErrorResponse(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed: %v", err)
		} else {
			logger.Debug("request rejected with %d: %v %s", status, err, print.MaybePrettyJSON(body.Error.Metadata))
		}
		return ctx.JSON(status, body)
	}
}

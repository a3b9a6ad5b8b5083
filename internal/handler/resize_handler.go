package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sefazor/ourphotos-resizer/internal/models"
	"github.com/sefazor/ourphotos-resizer/pkg/utils"
)

const (
	CodeMissingFilename   = "MissingFilename"
	CodeMalformedFilename = "MalformedFilename"
	CodeOriginalNotFound  = "OriginalNotFound"
	CodeFetchFailed       = "FetchFailed"
	CodeResizeError       = "ResizeError"
	CodeWriteFailed       = "WriteFailed"
	CodeTimeout           = "Timeout"
	CodeInternal          = "InternalError"
)

type Resizer interface {
	Resize(ctx context.Context, requested string) (string, error)
}

type ResizeHandler struct {
	resizeService Resizer
	validator     *utils.Validator
}

func NewResizeHandler(resizeService Resizer, validator *utils.Validator) *ResizeHandler {
	return &ResizeHandler{
		resizeService: resizeService,
		validator:     validator,
	}
}

// Resize generates the variant named by ?requested_filename= and redirects
// the caller to its public URL.
func (h *ResizeHandler) Resize(c *fiber.Ctx) error {
	var req models.ResizeRequest
	if err := c.QueryParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.CodedErrorResponse(CodeMissingFilename, "Invalid query string"))
	}

	if req.RequestedFilename == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.CodedErrorResponse(CodeMissingFilename, models.ErrMissingFilename.Error()))
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.CodedErrorResponse(CodeMalformedFilename, models.ErrMalformedFilename.Error()))
	}

	location, err := h.resizeService.Resize(c.UserContext(), req.RequestedFilename)
	if err != nil {
		status, code := statusFor(err)
		msg := err.Error()
		if status >= fiber.StatusInternalServerError {
			// store and engine details stay in the logs
			msg = publicMessage(err)
		}
		return c.Status(status).JSON(models.CodedErrorResponse(code, msg))
	}

	return c.Redirect(location, fiber.StatusMovedPermanently)
}

func (h *ResizeHandler) Health(c *fiber.Ctx) error {
	return c.JSON(models.SuccessResponse(nil, "ok"))
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, CodeTimeout
	case errors.Is(err, models.ErrMalformedFilename):
		return fiber.StatusBadRequest, CodeMalformedFilename
	case errors.Is(err, models.ErrOriginalNotFound):
		return fiber.StatusNotFound, CodeOriginalNotFound
	case errors.Is(err, models.ErrFetchFailed):
		return fiber.StatusBadGateway, CodeFetchFailed
	case errors.Is(err, models.ErrResizeFailed):
		return fiber.StatusBadGateway, CodeResizeError
	case errors.Is(err, models.ErrWriteFailed):
		return fiber.StatusBadGateway, CodeWriteFailed
	default:
		return fiber.StatusInternalServerError, CodeInternal
	}
}

func publicMessage(err error) string {
	for _, known := range []error{
		context.DeadlineExceeded,
		models.ErrFetchFailed,
		models.ErrResizeFailed,
		models.ErrWriteFailed,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal error"
}

// ErrorHandler answers errors that escape a handler, panics included, with
// the same JSON envelope the handlers use.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(models.ErrorResponse(err.Error()))
}

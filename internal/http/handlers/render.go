package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"bookfair/internal/domain"
	applog "bookfair/internal/log"
	"bookfair/internal/validate"
)

const friendlyError = "Something went wrong. Please try again."

func render(c *fiber.Ctx, tmpl string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if u := currentUser(c); u != nil {
		data["User"] = u
	}
	if _, ok := data["Errs"]; !ok {
		data["Errs"] = validate.FieldErrors{}
	}
	// csrf middleware puts the token into Locals; the cookie is the fallback
	tok, _ := c.Locals("CSRFToken").(string)
	if tok == "" {
		tok = c.Cookies("csrf_")
	}
	if tok != "" {
		data["CSRFToken"] = tok
	}
	return c.Render(tmpl, data)
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": msg})
}

// pageError renders msg on tmpl with a status derived from err. Unknown
// errors are logged and shown as the generic message.
func pageError(c *fiber.Ctx, tmpl, action string, err error, data fiber.Map) error {
	status, msg := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		applog.Error(c, action, err, nil)
		msg = friendlyError
	}
	if data == nil {
		data = fiber.Map{}
	}
	var fe validate.FieldErrors
	if errors.As(err, &fe) {
		data["Errs"] = fe
	} else {
		data["Err"] = msg
	}
	c.Status(status)
	return render(c, tmpl, data)
}

// statusFor maps domain and validation errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	var fe validate.FieldErrors
	switch {
	case errors.As(err, &fe):
		return fiber.StatusUnprocessableEntity, "Please correct the highlighted fields."
	case errors.Is(err, domain.ErrBadCreds), errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrRoleMismatch), errors.Is(err, domain.ErrNotOwner):
		return fiber.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrBookNotFound), errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrLineNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrEmailTaken), errors.Is(err, domain.ErrCartConflict), errors.Is(err, domain.ErrInsufficientStock):
		return fiber.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrEmptyCart), errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrUnknownRole):
		return fiber.StatusBadRequest, err.Error()
	}
	return fiber.StatusInternalServerError, friendlyError
}

func isAPI(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), "/api/")
}

// ErrorHandler keeps internals out of responses: anything that is not a
// client error is logged and replaced by a generic message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := friendlyError
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		code, msg = fe.Code, fe.Message
	} else {
		applog.Error(c, "server.error", err, nil)
	}
	if isAPI(c) {
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
	if rerr := c.Status(code).Render("notfound", fiber.Map{"Message": msg}); rerr != nil {
		return c.Status(code).SendString(msg)
	}
	return nil
}

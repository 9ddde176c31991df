package server

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	svcErr "github.com/oggyb/fashionjiok/internal/errors"
	"github.com/oggyb/fashionjiok/internal/logger"
)

const (
	pageTokenHeader = "X-Next-Page-Token"
	sessionUserKey  = "sessionUserID"
)

// contextMiddleware copies the request id into the request context so the
// context-aware logger picks it up in the service layer.
func contextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			c.SetUserContext(logger.ContextWithRequestID(c.UserContext(), rid))
		}
		return c.Next()
	}
}

// structuredLogger logs one line per request.
func structuredLogger(log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		fields := []any{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
		}
		if err != nil {
			fields = append(fields, slog.String("error", err.Error()))
			log.WarnContext(c.UserContext(), "request failed", fields...)
		} else {
			log.InfoContext(c.UserContext(), "request processed", fields...)
		}
		return err
	}
}

// session authenticates an optional bearer token. Without the header the
// request proceeds anonymously and handlers rely on explicit user ids.
func (h *httpHandlers) session(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return c.Next()
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" {
		return h.writeError(c, svcErr.Unauthorized("invalid authorization header format"))
	}
	id, err := h.svcs.Auth.ParseToken(token)
	if err != nil {
		return h.writeError(c, err)
	}
	c.Locals(sessionUserKey, id)
	c.SetUserContext(logger.ContextWithUserID(c.UserContext(), id))
	return c.Next()
}

// actingUser resolves the user a request acts for. An explicit id must
// agree with the session subject when both are present.
func actingUser(c *fiber.Ctx, field, explicit string) (uint64, error) {
	session, _ := c.Locals(sessionUserKey).(uint64)

	var id uint64
	if strings.TrimSpace(explicit) != "" {
		parsed, err := parseID(field, explicit)
		if err != nil {
			return 0, err
		}
		id = parsed
	}

	switch {
	case id == 0 && session == 0:
		return 0, svcErr.Validation(field + " is required")
	case id == 0:
		return session, nil
	case session != 0 && session != id:
		return 0, svcErr.Forbidden(field + " does not match the session user")
	default:
		return id, nil
	}
}

func parseID(field, raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, svcErr.Validationf("%s must be a positive integer", field)
	}
	return id, nil
}

func pageToken(c *fiber.Ctx) *string {
	if t := c.Query("pageToken"); t != "" {
		return &t
	}
	return nil
}

func setNextToken(c *fiber.Ctx, next *string) {
	if next != nil {
		c.Set(pageTokenHeader, *next)
	}
}

// writeError renders err as the JSON error envelope.
func (h *httpHandlers) writeError(c *fiber.Ctx, err error) error {
	status := svcErr.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		h.log.ErrorContext(c.UserContext(), "request error", "path", c.Path(), "err", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   svcErr.PublicMessage(err),
		"code":    string(svcErr.KindOf(err)),
	})
}

// errorHandler catches errors fiber raises itself (unknown route, bad method).
func (h *httpHandlers) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := "error"
		switch fe.Code {
		case fiber.StatusNotFound:
			code = string(svcErr.KindNotFound)
		case fiber.StatusMethodNotAllowed:
			code = "method_not_allowed"
		}
		return c.Status(fe.Code).JSON(fiber.Map{"success": false, "error": fe.Message, "code": code})
	}
	return h.writeError(c, err)
}

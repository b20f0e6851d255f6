package middleware

import (
	"errors"
	"strings"

	"github.com/SundayYogurt/ims_service/internal/domain"
	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/SundayYogurt/ims_service/internal/helper"
	"github.com/SundayYogurt/ims_service/internal/services"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

const CallerKey = helper.CallerLocal

const debugHeaderLen = 20

func AuthMiddleware(auth helper.Auth, users services.UserService) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		header := strings.TrimSpace(ctx.Get(fiber.HeaderAuthorization))

		// 1) Authorization header, 2) fallback to session cookie
		tokenStr := header
		if tokenStr == "" {
			tokenStr = strings.TrimSpace(ctx.Cookies("access_token"))
		}
		if tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Authorization header",
			})
		}

		claims, err := auth.VerifyToken(tokenStr)
		if err != nil {
			return unauthorized(ctx, err, header)
		}

		caller, err := users.ResolveCaller(ctx.UserContext(), claims)
		if err != nil {
			if errors.Is(err, services.ErrUnauthorized) {
				return unauthorized(ctx, err, header)
			}
			log.WithError(err).Error("resolve caller")
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server error",
			})
		}

		ctx.Locals(CallerKey, caller)
		return ctx.Next()
	}
}

// ImmigrationOnly must run after AuthMiddleware.
func ImmigrationOnly() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		caller, ok := ctx.Locals(CallerKey).(dto.Caller)
		if !ok || caller.UserID == 0 {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		if caller.Role != domain.RoleImmigration {
			return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "immigration only",
			})
		}
		return ctx.Next()
	}
}

func unauthorized(ctx *fiber.Ctx, err error, header string) error {
	body := fiber.Map{
		"error":   "Unauthorized",
		"details": err.Error(),
	}
	if header != "" {
		body["debug_header"] = debugHeader(header)
	}
	return ctx.Status(fiber.StatusUnauthorized).JSON(body)
}

// debugHeader echoes only a short prefix so a full token never lands in
// a response body.
func debugHeader(h string) string {
	if len(h) <= debugHeaderLen {
		return h[:len(h)/2] + "..."
	}
	return h[:debugHeaderLen] + "..."
}

package handlers

import (
	"errors"

	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/SundayYogurt/ims_service/internal/helper"
	"github.com/SundayYogurt/ims_service/internal/helper/utils"
	"github.com/SundayYogurt/ims_service/internal/services"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// VerificationHandler exposes the scan audit trail to operators.
type VerificationHandler struct {
	svc  services.AuditService
	auth helper.Auth
}

func NewVerificationHandler(svc services.AuditService, auth helper.Auth) *VerificationHandler {
	return &VerificationHandler{svc: svc, auth: auth}
}

func (h *VerificationHandler) SetupRoutes(app *fiber.App, authMw fiber.Handler) {
	app.Get("/api/verifications", authMw, h.List)
}

func (h *VerificationHandler) List(ctx *fiber.Ctx) error {
	caller, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "Unauthorized")
	}

	var q dto.VerificationLogQuery
	if err := ctx.QueryParser(&q); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide valid query parameters")
	}

	rows, err := h.svc.ListVerifications(ctx.UserContext(), caller, q)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			return utils.ResponseError(ctx, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrUnauthorized):
			return utils.ResponseError(ctx, fiber.StatusUnauthorized, "Unauthorized")
		default:
			log.WithError(err).Error("list verifications")
			return utils.ResponseError(ctx, fiber.StatusInternalServerError, "Server error")
		}
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, rows)
}

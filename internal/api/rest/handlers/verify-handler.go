package handlers

import (
	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/SundayYogurt/ims_service/internal/helper/utils"
	"github.com/SundayYogurt/ims_service/internal/services"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

const deviceIDHeader = "X-Device-Id"

var verdictStatus = map[string]int{
	dto.ReasonMissingToken:         fiber.StatusBadRequest,
	dto.ReasonInvalidOrExpired:     fiber.StatusUnauthorized,
	dto.ReasonCardNotFound:         fiber.StatusNotFound,
	dto.ReasonTokenVersionMismatch: fiber.StatusConflict,
	dto.ReasonCardNotActive:        fiber.StatusConflict,
}

// VerifyHandler serves the public, unauthenticated scan endpoint.
type VerifyHandler struct {
	svc services.VerifyService
}

func NewVerifyHandler(svc services.VerifyService) *VerifyHandler {
	return &VerifyHandler{svc: svc}
}

// SetupRoutes mounts the verifier. guards run before the handler, e.g. a
// rate limiter.
func (h *VerifyHandler) SetupRoutes(app *fiber.App, guards ...fiber.Handler) {
	handlers := append([]fiber.Handler{recoverScan}, guards...)
	handlers = append(handlers, h.Verify)
	app.Get("/functions/v1/verify-card", handlers...)
	app.Get("/api/verify", handlers...)
}

func (h *VerifyHandler) Verify(ctx *fiber.Ctx) error {
	meta := dto.ScanMeta{
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
		DeviceID:  ctx.Get(deviceIDHeader),
		ClientIP:  ctx.IP(),
	}

	verdict, err := h.svc.VerifyCard(ctx.UserContext(), ctx.Query("t"), meta)
	if err != nil {
		log.WithError(err).Error("verify card")
		return utils.ResponseJSON(ctx, fiber.StatusInternalServerError, dto.VerifyFailure{
			Valid:  false,
			Reason: dto.ReasonServerError,
			Error:  err.Error(),
		})
	}

	if verdict.Response != nil {
		return utils.ResponseJSON(ctx, fiber.StatusOK, verdict.Response)
	}

	status, ok := verdictStatus[verdict.Reason]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	return utils.ResponseJSON(ctx, status, dto.VerifyFailure{
		Valid:  false,
		Reason: verdict.Reason,
	})
}

// recoverScan answers a panic below it with the verifier's failure body
// instead of the app-wide error shape.
func recoverScan(ctx *fiber.Ctx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).WithField("path", ctx.Path()).Error("verify card panicked")
			err = utils.ResponseJSON(ctx, fiber.StatusInternalServerError, dto.VerifyFailure{
				Valid:  false,
				Reason: dto.ReasonServerError,
				Error:  "internal error",
			})
		}
	}()
	return ctx.Next()
}

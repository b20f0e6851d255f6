package handlers

import (
	"errors"

	"github.com/SundayYogurt/ims_service/internal/api/rest/middleware"
	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/SundayYogurt/ims_service/internal/helper"
	"github.com/SundayYogurt/ims_service/internal/helper/utils"
	"github.com/SundayYogurt/ims_service/internal/services"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

type UserHandler struct {
	svc  services.UserService
	auth helper.Auth
}

func NewUserHandler(svc services.UserService, auth helper.Auth) *UserHandler {
	return &UserHandler{svc: svc, auth: auth}
}

func (h *UserHandler) SetupRoutes(app *fiber.App, authMw fiber.Handler) {
	api := app.Group("/api")

	// =========================
	// AUTH
	// =========================
	authGroup := api.Group("/auth")
	authGroup.Post("/login", h.Login)
	authGroup.Get("/me", authMw, h.Me)

	// =========================
	// USERS (immigration staff only)
	// =========================
	users := api.Group("/users", authMw, middleware.ImmigrationOnly())
	users.Post("/", h.CreateUser)
}

func (h *UserHandler) Login(ctx *fiber.Ctx) error {
	var requestBody dto.UserLogin
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "email and password are required")
	}
	if err := helper.Validate(requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "email and password are required")
	}

	res, err := h.svc.Login(ctx.UserContext(), requestBody)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			return utils.ResponseError(ctx, fiber.StatusUnauthorized, "Invalid email or password")
		case errors.Is(err, services.ErrAccountDisabled):
			return utils.ResponseError(ctx, fiber.StatusForbidden, "Account is not active")
		default:
			log.WithError(err).Error("login")
			return utils.ResponseError(ctx, fiber.StatusInternalServerError, "could not sign in")
		}
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, res)
}

func (h *UserHandler) Me(ctx *fiber.Ctx) error {
	caller, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "Unauthorized")
	}

	profile, err := h.svc.GetProfile(ctx.UserContext(), caller.UserID)
	if err != nil {
		log.WithError(err).WithField("user_id", caller.UserID).Error("load profile")
		return utils.ResponseError(ctx, fiber.StatusInternalServerError, "could not load profile")
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, profile)
}

func (h *UserHandler) CreateUser(ctx *fiber.Ctx) error {
	var requestBody dto.CreateUserRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide valid inputs")
	}

	profile, err := h.svc.CreateUser(ctx.UserContext(), requestBody)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			return utils.ResponseError(ctx, fiber.StatusBadRequest, err.Error())
		}
		log.WithError(err).Error("create user")
		return utils.ResponseError(ctx, fiber.StatusInternalServerError, "could not create user")
	}
	return utils.ResponseSuccess(ctx, fiber.StatusCreated, profile)
}

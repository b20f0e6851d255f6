package handlers

import (
	"context"
	"errors"

	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/SundayYogurt/ims_service/internal/helper"
	"github.com/SundayYogurt/ims_service/internal/helper/utils"
	"github.com/SundayYogurt/ims_service/internal/services"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

type CardHandler struct {
	tokens services.TokenService
	cards  services.CardService
	auth   helper.Auth
}

func NewCardHandler(tokens services.TokenService, cards services.CardService, auth helper.Auth) *CardHandler {
	return &CardHandler{tokens: tokens, cards: cards, auth: auth}
}

func (h *CardHandler) SetupRoutes(app *fiber.App, authMw fiber.Handler) {
	// edge-function path kept for existing card UIs
	app.Post("/functions/v1/mint-card-token", authMw, h.MintToken)

	cards := app.Group("/api/cards", authMw)
	cards.Post("/token", h.MintToken)

	cards.Post("/", h.Issue)
	cards.Get("/student/:studentID", h.GetByStudent)
	cards.Get("/:cardID/ledger", h.Ledger)
	cards.Post("/:cardID/reissue", h.Reissue)
	cards.Post("/:cardID/revoke", h.Revoke)
	cards.Post("/:cardID/expire", h.Expire)
	cards.Post("/:cardID/reinstate", h.Reinstate)
	cards.Post("/:cardID/anchor", h.Anchor)
}

func (h *CardHandler) MintToken(ctx *fiber.Ctx) error {
	caller, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req dto.MintTokenRequest
	if err := ctx.BodyParser(&req); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "card_id is required")
	}

	res, err := h.tokens.MintCardToken(ctx.UserContext(), caller, req.CardID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnauthorized):
			return utils.ResponseError(ctx, fiber.StatusUnauthorized, "Unauthorized")
		case errors.Is(err, services.ErrCardIDRequired):
			return utils.ResponseError(ctx, fiber.StatusBadRequest, "card_id is required")
		case errors.Is(err, services.ErrCardNotFound):
			return utils.ResponseError(ctx, fiber.StatusNotFound, "Card not found")
		case errors.Is(err, services.ErrCardNotActive):
			return utils.ResponseError(ctx, fiber.StatusBadRequest, "Card not active")
		default:
			log.WithError(err).WithField("card_id", req.CardID).Error("mint card token")
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":  "Server error",
				"detail": err.Error(),
			})
		}
	}
	return utils.ResponseJSON(ctx, fiber.StatusOK, res)
}

func (h *CardHandler) Issue(ctx *fiber.Ctx) error {
	caller, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req dto.IssueCardRequest
	if err := ctx.BodyParser(&req); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide valid inputs")
	}

	card, err := h.cards.IssueCard(ctx.UserContext(), caller, req)
	if err != nil {
		return cardError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusCreated, card)
}

func (h *CardHandler) GetByStudent(ctx *fiber.Ctx) error {
	caller, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "Unauthorized")
	}

	card, err := h.cards.GetStudentCard(ctx.UserContext(), caller, ctx.Params("studentID"))
	if err != nil {
		return cardError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, card)
}

func (h *CardHandler) Ledger(ctx *fiber.Ctx) error {
	caller, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "Unauthorized")
	}

	entries, err := h.cards.LedgerHistory(ctx.UserContext(), caller, ctx.Params("cardID"))
	if err != nil {
		return cardError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, entries)
}

func (h *CardHandler) Reissue(ctx *fiber.Ctx) error {
	return h.lifecycle(ctx, h.cards.ReissueCard)
}

func (h *CardHandler) Revoke(ctx *fiber.Ctx) error {
	return h.lifecycle(ctx, h.cards.RevokeCard)
}

func (h *CardHandler) Expire(ctx *fiber.Ctx) error {
	return h.lifecycle(ctx, h.cards.ExpireCard)
}

func (h *CardHandler) Reinstate(ctx *fiber.Ctx) error {
	return h.lifecycle(ctx, h.cards.ReinstateCard)
}

func (h *CardHandler) Anchor(ctx *fiber.Ctx) error {
	return h.lifecycle(ctx, h.cards.ReanchorCard)
}

type cardAction func(ctx context.Context, caller dto.Caller, cardID string) (*dto.CardResponse, error)

func (h *CardHandler) lifecycle(ctx *fiber.Ctx, action cardAction) error {
	caller, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "Unauthorized")
	}

	card, err := action(ctx.UserContext(), caller, ctx.Params("cardID"))
	if err != nil {
		return cardError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, card)
}

func cardError(ctx *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrCardIDRequired):
		return utils.ResponseError(ctx, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrCardNotFound), errors.Is(err, services.ErrStudentNotFound):
		return utils.ResponseError(ctx, fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrCardAlreadyIssued),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrCardChanged):
		return utils.ResponseError(ctx, fiber.StatusConflict, err.Error())
	default:
		log.WithError(err).WithField("path", ctx.Path()).Error("card request failed")
		return utils.ResponseError(ctx, fiber.StatusInternalServerError, "Server error")
	}
}

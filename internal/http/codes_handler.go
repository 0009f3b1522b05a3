package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"scantrace/internal/codes"
	"scantrace/internal/config"
)

var validate = validator.New()

// CreateCodeParams is the request body for creating a tracking code.
type CreateCodeParams struct {
	DisplayName string `json:"display_name" validate:"max=200"`
	TargetURL   string `json:"target_url" validate:"required"`
}

// CreateCodeResponse is the only response that ever carries the manage token.
type CreateCodeResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	TargetURL   string `json:"target_url"`
	PublicURL   string `json:"public_url"`
	ManageURL   string `json:"manage_url"`
	ManageToken string `json:"manage_token"`
}

// CodeCreateAction handles POST /api/codes.
func CodeCreateAction(ctx *cartridge.Context) error {
	var params CreateCodeParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := validate.Struct(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "target_url is required",
		})
	}

	db := ctx.DBManager.GetConnection()
	code, err := codes.CreateCode(db, ctx.Logger, params.DisplayName, params.TargetURL)
	if err != nil {
		if errors.Is(err, codes.ErrInvalidTargetURL) {
			return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": "target_url must be a valid absolute URL",
			})
		}
		ctx.Logger.Error("Failed to create tracking code", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create tracking code",
		})
	}

	cfg := config.GetConfig()
	return ctx.Status(http.StatusCreated).JSON(CreateCodeResponse{
		ID:          code.ID,
		DisplayName: code.DisplayName,
		TargetURL:   code.TargetURL,
		PublicURL:   codes.PublicURL(cfg.BaseURL, code.ID),
		ManageURL:   codes.ManageURL(cfg.BaseURL, code.ID, code.ManageToken),
		ManageToken: code.ManageToken,
	})
}

// UpdateTargetParams is the request body for changing a redirect destination.
type UpdateTargetParams struct {
	TargetURL string `json:"target_url" validate:"required"`
}

// CodeUpdateTargetAction handles POST /api/codes/:codeId/target.
// Requires the manage token; unknown id and bad token are indistinguishable.
func CodeUpdateTargetAction(ctx *cartridge.Context) error {
	code, err := authorizeRequest(ctx)
	if err != nil {
		return notFoundResponse(ctx)
	}

	var params UpdateTargetParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "target_url is required",
		})
	}

	db := ctx.DBManager.GetConnection()
	if err := codes.UpdateTargetURL(db, ctx.Logger, code, params.TargetURL); err != nil {
		if errors.Is(err, codes.ErrInvalidTargetURL) {
			return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": "target_url must be a valid absolute URL",
			})
		}
		ctx.Logger.Error("Failed to update target URL",
			slog.String("code_id", code.ID), slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update target URL",
		})
	}

	return ctx.JSON(fiber.Map{
		"id":         code.ID,
		"target_url": code.TargetURL,
		"updated_at": code.UpdatedAt,
	})
}

// authorizeRequest resolves the code for a token-guarded route. The token
// comes from the token query parameter.
func authorizeRequest(ctx *cartridge.Context) (*codes.TrackingCode, error) {
	db := ctx.DBManager.GetConnection()
	return codes.Authorize(db, ctx.Params("codeId"), ctx.Query("token"))
}

// notFoundResponse is the uniform denial for unknown ids and bad tokens.
func notFoundResponse(ctx *cartridge.Context) error {
	return ctx.Status(http.StatusNotFound).JSON(fiber.Map{
		"error": "Not found",
	})
}

package handlers

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/pkg/utils"
)

type PlatformHandler struct {
	ps  service.PlatformService
	cfg config.Config
}

func NewPlatformHandler(ps service.PlatformService, cfg config.Config) *PlatformHandler {
	return &PlatformHandler{
		ps:  ps,
		cfg: cfg,
	}
}

// AddSocialAccount redirects to the platform's consent page. The state is the
// user's session token, checked again on callback.
func (h *PlatformHandler) AddSocialAccount(c *fiber.Ctx) error {
	platform, err := models.ParsePlatform(c.Params("platform"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	authURL, err := h.ps.GetAuthURL(c.Context(), platform, c.Query("state"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	return c.Redirect(authURL)
}

func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")

	platform, err := models.ParsePlatform(c.Params("platform"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	claims, err := utils.ParseSession(h.cfg.SecretKey, state, Clock())
	if err != nil {
		return badRequest(c, "Unable to validate user")
	}

	userID, err := claims.ID()
	if err != nil {
		slog.Info(err.Error())
		return badRequest(c, "Unable to validate user")
	}

	if err := h.ps.Callback(c.Context(), platform, code, userID); err != nil {
		slog.Info("account connection failed", "platform", platform, "error", err)
		return badRequest(c, "something went wrong")
	}

	redirectURL := fmt.Sprintf("%s/dashboard/accounts", h.cfg.FrontendURL)
	return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) ListSocialAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accountList, err := h.ps.List(c.Context(), userID)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch social accounts",
		})
	}
	if accountList == nil {
		accountList = []*models.SocialAccount{}
	}

	return c.Status(fiber.StatusOK).JSON(accountList)
}

func (h *PlatformHandler) DeleteSocialAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accountID, err := c.ParamsInt("id")
	if err != nil || accountID <= 0 {
		return badRequest(c, "Invalid account id")
	}

	if err := h.ps.Delete(c.Context(), userID, int64(accountID)); err != nil {
		return errorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

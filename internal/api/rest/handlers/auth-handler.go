package handlers

import (
	"fmt"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/shopyard/auth-service/internal/api/rest/middleware"
	"github.com/shopyard/auth-service/internal/dto"
	"github.com/shopyard/auth-service/internal/helper"
	"github.com/shopyard/auth-service/internal/helper/utils"
	"github.com/shopyard/auth-service/internal/services"
)

const oauthStateCookie = "oauth_state"

type AuthHandler struct {
	svc                 services.AuthService
	auth                helper.Auth
	frontendCallbackURL string
}

func NewAuthHandler(svc services.AuthService, auth helper.Auth, frontendCallbackURL string) *AuthHandler {
	return &AuthHandler{
		svc:                 svc,
		auth:                auth,
		frontendCallbackURL: frontendCallbackURL,
	}
}

func (h *AuthHandler) SetupRoutes(app *fiber.App) {
	auth := app.Group("/auth")

	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)
	auth.Post("/refresh", h.Refresh)
	auth.Post("/forgot-password", h.ForgotPassword)
	auth.Post("/reset-password", h.ResetPassword)
	auth.Post("/verify-email", h.VerifyEmail)
	auth.Post("/resend-verification", h.ResendVerification)
	auth.Get("/google", h.GoogleAuthURL)
	auth.Get("/google/callback", h.GoogleCallback)

	authed := auth.Use(middleware.AuthMiddleware(h.auth))
	authed.Post("/change-password", h.ChangePassword)
	authed.Post("/logout", h.Logout)

	users := app.Group("/users", middleware.AuthMiddleware(h.auth))
	users.Get("/me", h.Me)
	users.Patch("/me", h.UpdateProfile)
	users.Patch("/:accountID/status", middleware.AdminOnly(), h.SetStatus)
}

func (h *AuthHandler) Register(ctx *fiber.Ctx) error {
	var body dto.RegisterRequest
	if err := ctx.BodyParser(&body); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "please provide valid inputs")
	}

	resp, err := h.svc.Register(ctx.UserContext(), body)
	if err != nil {
		return utils.ResponseFromErr(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusCreated, resp)
}

func (h *AuthHandler) Login(ctx *fiber.Ctx) error {
	var body dto.LoginRequest
	if err := ctx.BodyParser(&body); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "email and password are required")
	}

	resp, err := h.svc.Login(body.Email, body.Password)
	if err != nil {
		return utils.ResponseFromErr(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, resp)
}

func (h *AuthHandler) Refresh(ctx *fiber.Ctx) error {
	var body dto.RefreshRequest
	if err := ctx.BodyParser(&body); err != nil || body.RefreshToken == "" {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "refresh_token is required")
	}

	tokens, err := h.svc.Refresh(body.RefreshToken)
	if err != nil {
		return utils.ResponseFromErr(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, tokens)
}

func (h *AuthHandler) ForgotPassword(ctx *fiber.Ctx) error {
	var body dto.ForgotPasswordRequest
	if err := ctx.BodyParser(&body); err != nil || body.Email == "" {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "please provide a valid email")
	}

	if err := h.svc.ForgotPassword(body.Email); err != nil {
		return utils.ResponseFromErr(ctx, err)
	}
	// same body whether or not the email exists
	return utils.ResponseMessage(ctx, fiber.StatusOK, "if the email exists, a password reset link has been sent")
}

func (h *AuthHandler) ResetPassword(ctx *fiber.Ctx) error {
	var body dto.ResetPasswordRequest
	if err := ctx.BodyParser(&body); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "please provide valid inputs")
	}

	if err := h.svc.ResetPassword(body.Token, body.NewPassword); err != nil {
		return utils.ResponseFromErr(ctx, err)
	}
	return utils.ResponseMessage(ctx, fiber.StatusOK, "password reset successfully")
}

func (h *AuthHandler) ChangePassword(ctx *fiber.Ctx) error {
	claims, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "unauthorized")
	}

	var body dto.ChangePasswordRequest
	if err := ctx.BodyParser(&body); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "please provide valid inputs")
	}

	if err := h.svc.ChangePassword(claims.AccountID, body.CurrentPassword, body.NewPassword); err != nil {
		return utils.ResponseFromErr(ctx, err)
	}
	return utils.ResponseMessage(ctx, fiber.StatusOK, "password changed successfully")
}

func (h *AuthHandler) VerifyEmail(ctx *fiber.Ctx) error {
	var body dto.VerifyEmailRequest
	if err := ctx.BodyParser(&body); err != nil || body.Email == "" || body.Code == "" {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "email and code are required")
	}

	if err := h.svc.VerifyEmail(ctx.UserContext(), body.Email, body.Code); err != nil {
		return utils.ResponseFromErr(ctx, err)
	}
	return utils.ResponseMessage(ctx, fiber.StatusOK, "email verified successfully")
}

func (h *AuthHandler) ResendVerification(ctx *fiber.Ctx) error {
	var body dto.ResendVerificationRequest
	if err := ctx.BodyParser(&body); err != nil || body.Email == "" {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "please provide a valid email")
	}

	msg, err := h.svc.ResendVerification(ctx.UserContext(), body.Email)
	if err != nil {
		return utils.ResponseFromErr(ctx, err)
	}
	return utils.ResponseMessage(ctx, fiber.StatusOK, msg)
}

// GoogleAuthURL hands the consent URL to the client and pins the
// anti-forgery state in a short-lived cookie.
func (h *AuthHandler) GoogleAuthURL(ctx *fiber.Ctx) error {
	state, err := utils.RandomToken(16)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusInternalServerError, "internal server error")
	}

	ctx.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return utils.ResponseSuccess(ctx, fiber.StatusOK, fiber.Map{
		"url": h.svc.GoogleAuthURL(state),
	})
}

func (h *AuthHandler) GoogleCallback(ctx *fiber.Ctx) error {
	state := ctx.Query("state")
	code := ctx.Query("code")
	cookieState := ctx.Cookies(oauthStateCookie)

	// byte-for-byte comparison against the value we handed out
	if state == "" || state != cookieState {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "invalid state parameter")
	}
	if code == "" {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "missing authorization code")
	}

	ctx.ClearCookie(oauthStateCookie)

	tokens, err := h.svc.GoogleCallback(ctx.UserContext(), code)
	if err != nil {
		return utils.ResponseFromErr(ctx, err)
	}

	redirect := fmt.Sprintf("%s?access_token=%s&refresh_token=%s",
		h.frontendCallbackURL,
		url.QueryEscape(tokens.AccessToken),
		url.QueryEscape(tokens.RefreshToken),
	)
	return ctx.Redirect(redirect, fiber.StatusFound)
}

// Logout is client-side only; issued tokens stay valid until they expire.
func (h *AuthHandler) Logout(ctx *fiber.Ctx) error {
	if _, err := h.auth.GetCurrentUser(ctx); err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "unauthorized")
	}
	ctx.ClearCookie("access_token")
	return utils.ResponseMessage(ctx, fiber.StatusOK, "logged out")
}

func (h *AuthHandler) Me(ctx *fiber.Ctx) error {
	claims, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "unauthorized")
	}

	resp, err := h.svc.Me(claims.AccountID)
	if err != nil {
		return utils.ResponseFromErr(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, resp)
}

func (h *AuthHandler) UpdateProfile(ctx *fiber.Ctx) error {
	claims, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "unauthorized")
	}

	var body dto.UpdateProfileRequest
	if err := ctx.BodyParser(&body); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "please provide valid inputs")
	}

	resp, err := h.svc.UpdateProfile(claims.AccountID, body)
	if err != nil {
		return utils.ResponseFromErr(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, resp)
}

func (h *AuthHandler) SetStatus(ctx *fiber.Ctx) error {
	accountID, err := ctx.ParamsInt("accountID")
	if err != nil || accountID <= 0 {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "invalid account id")
	}

	var body dto.SetStatusRequest
	if err := ctx.BodyParser(&body); err != nil || body.Status == "" {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "status is required")
	}

	if err := h.svc.SetStatus(uint(accountID), body.Status); err != nil {
		return utils.ResponseFromErr(ctx, err)
	}
	return utils.ResponseMessage(ctx, fiber.StatusOK, "status updated")
}

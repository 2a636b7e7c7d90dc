package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tracklane/ticket-tracker/internal/api/dto"
	"github.com/tracklane/ticket-tracker/internal/auth"
	"github.com/tracklane/ticket-tracker/internal/service"
)

// CookieOptions controls the session cookie.
type CookieOptions struct {
	Name   string
	Secure bool
}

// AuthHandler exposes register, login, logout and session endpoints.
type AuthHandler struct {
	auth     *service.AuthService
	sessions *auth.SessionMiddleware
	cookie   CookieOptions
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, sessions *auth.SessionMiddleware, cookie CookieOptions) *AuthHandler {
	return &AuthHandler{auth: authService, sessions: sessions, cookie: cookie}
}

// Register handles POST /api/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.CredentialsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.auth.Register(c.UserContext(), auth.ActorFromContext(c), req.Username, req.Password)
	if err != nil {
		return err
	}
	h.setCookie(c, result.Token, result.Session.ExpiresAt)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": authResponse(result)})
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.CredentialsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.auth.Login(c.UserContext(), auth.ActorFromContext(c), req.Username, req.Password)
	if err != nil {
		return err
	}
	h.setCookie(c, result.Token, result.Session.ExpiresAt)
	return c.JSON(fiber.Map{"data": authResponse(result)})
}

// Logout handles POST /api/logout. It succeeds with or without a session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.auth.Logout(c.UserContext(), h.sessions.Token(c)); err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"data": fiber.Map{}})
}

// Session handles GET /api/session.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	actor, err := h.auth.Session(auth.ActorFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SessionResponse{
		Role:     actor.Role,
		Username: actor.Username,
		UserID:   actor.UserID,
	}})
}

func (h *AuthHandler) setCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func authResponse(result *service.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		UserID:    result.User.ID,
		Username:  result.User.Username,
		Role:      result.User.Role,
		Token:     result.Token,
		ExpiresAt: result.Session.ExpiresAt,
	}
}

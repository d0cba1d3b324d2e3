package api

import (
	"context"
	"net/http"

	"fintrack/internal/core"
)

// RegisterRequest creates a new account. The CAPTCHA token is passed through
// when the deployment has the site key configured.
type RegisterRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	RecaptchaToken string `json:"recaptchaToken,omitempty"`
}

type LoginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	RecaptchaToken string `json:"recaptchaToken,omitempty"`
}

// AuthResult is the payload returned by register and login.
type AuthResult struct {
	User     core.User `json:"user"`
	Token    string    `json:"token"`
	Language string    `json:"language,omitempty"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	var result AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	var result AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Logout(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", map[string]string{"email": email}, nil)
}

// Me returns the profile of the authenticated user.
func (c *Client) Me(ctx context.Context) (*core.User, error) {
	var user core.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) RecoverPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/recover-password", map[string]string{"email": email}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/reset-password", req, nil)
}

func (c *Client) ChangePassword(ctx context.Context, req ResetPasswordRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/change-password", req, nil)
}

func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/auth/account", nil, nil)
}

func (c *Client) UpdateLanguage(ctx context.Context, language string) error {
	return c.do(ctx, http.MethodPut, "/auth/language", map[string]string{"language": language}, nil)
}

func (c *Client) UpdateCurrency(ctx context.Context, currency string) error {
	return c.do(ctx, http.MethodPut, "/auth/currency", map[string]string{"currency": currency}, nil)
}

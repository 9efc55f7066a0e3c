package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/campaignhub/backend/api/transport"
	"github.com/campaignhub/backend/domain"
	"github.com/campaignhub/backend/internal/config"
	"github.com/campaignhub/backend/pkg/httpcontext"
)

// AuthHandler exchanges the shared admin credential for a JWT. There is a
// single administrator identity; no per-user accounts exist.
type AuthHandler struct {
	baseHandler
	admin config.AdminConfig
}

func NewAuthHandler(admin config.AdminConfig, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		admin:       admin,
	}
}

// @Summary Admin login
// @Tags auth
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(ctx *fasthttp.RequestCtx) {
	var req transport.AdminLoginRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Username == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	if h.admin.Password == "" || !h.credentialsMatch(req.Username, req.Password) {
		h.logger.Warn("rejected admin login", zap.String("username", req.Username))
		h.respondError(ctx, domain.ErrUnauthorized)
		return
	}

	expiresAt := time.Now().Add(h.admin.TokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": h.admin.Username,
		"exp": expiresAt.Unix(),
	})

	signed, err := token.SignedString([]byte(h.admin.JWTSecret))
	if err != nil {
		h.respondError(ctx, domain.WrapError(domain.ErrCodeInternal, "token signing failed", err))
		return
	}

	h.respondSuccess(ctx, http.StatusOK, transport.AdminLoginResponse{
		Token:     signed,
		ExpiresAt: expiresAt.Unix(),
	})
}

func (h *AuthHandler) credentialsMatch(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(h.admin.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(h.admin.Password)) == 1
	return userOK && passOK
}

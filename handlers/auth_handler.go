package handlers

import (
	"net/http"
	"time"

	"github.com/AgiriTaofeek/natours-app/middleware"
	"github.com/AgiriTaofeek/natours-app/opentelemetry"
	"github.com/AgiriTaofeek/natours-app/services"
	"github.com/AgiriTaofeek/natours-app/utils"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth       *services.AuthService
	cookieTTL  time.Duration
	production bool
	now        func() time.Time
}

func NewAuthHandler(auth *services.AuthService, cookieTTL time.Duration, production bool) *AuthHandler {
	return &AuthHandler{auth: auth, cookieTTL: cookieTTL, production: production, now: time.Now}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) sendToken(c *gin.Context, status int, sess *services.Session) {
	secure := h.production || utils.IsSecureRequest(c.Request)
	utils.SetSessionCookie(c.Writer, sess.Token, h.now().Add(h.cookieTTL), secure)
	c.JSON(status, gin.H{
		"status": statusSuccess,
		"token":  sess.Token,
		"data":   gin.H{"user": sess.User},
	})
}

func (h *AuthHandler) Signup(c *gin.Context) {
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "auth-signup")
	defer func() { span.End() }()

	var in services.SignupInput
	if err := bindBody(c, &in); err != nil {
		httpError(err, span, c)
		return
	}
	sess, err := h.auth.Signup(ctx, in, baseURL(c)+"/me")
	if err != nil {
		httpError(err, span, c)
		return
	}
	h.sendToken(c, http.StatusCreated, sess)
}

func (h *AuthHandler) Login(c *gin.Context) {
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "auth-login")
	defer func() { span.End() }()

	var in loginRequest
	if err := bindBody(c, &in); err != nil {
		httpError(err, span, c)
		return
	}
	sess, err := h.auth.Login(ctx, in.Email, in.Password)
	if err != nil {
		httpError(err, span, c)
		return
	}
	h.sendToken(c, http.StatusOK, sess)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	utils.ClearSessionCookie(c.Writer, h.now())
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess})
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "auth-forgot-password")
	defer func() { span.End() }()

	var in forgotPasswordRequest
	if err := bindBody(c, &in); err != nil {
		httpError(err, span, c)
		return
	}
	base := baseURL(c)
	err := h.auth.ForgotPassword(ctx, in.Email, func(token string) string {
		return base + "/api/v1/users/resetPassword/" + token
	})
	if err != nil {
		httpError(err, span, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "message": "Token sent to email!"})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "auth-reset-password")
	defer func() { span.End() }()

	var in services.PasswordInput
	if err := bindBody(c, &in); err != nil {
		httpError(err, span, c)
		return
	}
	sess, err := h.auth.ResetPassword(ctx, c.Param("token"), in)
	if err != nil {
		httpError(err, span, c)
		return
	}
	h.sendToken(c, http.StatusOK, sess)
}

func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "auth-update-password")
	defer func() { span.End() }()

	var in services.UpdatePasswordInput
	if err := bindBody(c, &in); err != nil {
		httpError(err, span, c)
		return
	}
	sess, err := h.auth.UpdatePassword(ctx, middleware.CurrentUser(c).ID, in)
	if err != nil {
		httpError(err, span, c)
		return
	}
	h.sendToken(c, http.StatusOK, sess)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"creative-studio-backend/internal/credits"
	"creative-studio-backend/internal/middleware"
	"creative-studio-backend/internal/models"
	"creative-studio-backend/internal/notify"
	"creative-studio-backend/internal/studio"
)

// Authenticator is the identity provider.
type Authenticator interface {
	SignUp(email, password string) (*models.AuthResponse, error)
	SignIn(email, password string) (*models.AuthResponse, error)
	SignOut(accessToken string) error
}

type AuthHandler struct {
	auth       Authenticator
	ledger     *credits.Ledger
	workspaces *studio.Manager
	broker     *notify.Broker
}

func NewAuthHandler(auth Authenticator, ledger *credits.Ledger, workspaces *studio.Manager, broker *notify.Broker) *AuthHandler {
	return &AuthHandler{
		auth:       auth,
		ledger:     ledger,
		workspaces: workspaces,
		broker:     broker,
	}
}

// Signup godoc
// @Summary     Create an account
// @Description New accounts start on the free plan with five credits.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body models.SignupRequest true "Credentials"
// @Success     201 {object} models.AuthResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.auth.SignUp(req.Email, req.Password)
	if err != nil {
		logrus.WithError(err).Warn("Signup failed")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "signup failed", Message: err.Error()})
		return
	}

	profile, err := h.ledger.Create(c.Request.Context(), res.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	res.Profile = profile

	logrus.WithField("user_id", res.UserID).Info("Account created")
	c.JSON(http.StatusCreated, res)
}

// Login godoc
// @Summary     Sign in with email and password
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body models.LoginRequest true "Credentials"
// @Success     200 {object} models.AuthResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.auth.SignIn(req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid credentials", Message: err.Error()})
		return
	}

	profile, err := h.ledger.GetOrCreate(c.Request.Context(), res.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	res.Profile = profile
	c.JSON(http.StatusOK, res)
}

// Logout revokes the session and clears the user's workspace.
func (h *AuthHandler) Logout(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	token := c.GetString(middleware.AccessTokenKey)
	if err := h.auth.SignOut(token); err != nil {
		logrus.WithError(err).WithField("user_id", uid).Warn("Sign out failed")
	}

	h.workspaces.Remove(uid)
	h.broker.Forget(uid)
	c.Status(http.StatusNoContent)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"creative-studio-backend/internal/credits"
	"creative-studio-backend/internal/middleware"
	"creative-studio-backend/internal/models"
)

type AdminHandler struct {
	ledger *credits.Ledger
}

func NewAdminHandler(ledger *credits.Ledger) *AdminHandler {
	return &AdminHandler{ledger: ledger}
}

// RequireAdmin rejects callers whose profile is not elevated.
func (h *AdminHandler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			c.Abort()
			return
		}
		state, err := h.ledger.GetOrCreate(c.Request.Context(), uid)
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		if !state.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
				Error:   "forbidden",
				Message: "Admin privileges are required.",
			})
			return
		}
		c.Next()
	}
}

// GetUser godoc
// @Summary     Read any user's ledger
// @Tags        admin
// @Produce     json
// @Security    Bearer
// @Param       user_id path string true "User ID"
// @Success     200 {object} models.AccountResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /admin/users/{user_id} [get]
func (h *AdminHandler) GetUser(c *gin.Context) {
	target := c.Param("user_id")
	state, err := h.ledger.Get(c.Request.Context(), target)
	if err != nil {
		respondError(c, err)
		return
	}
	if state.UsageLog, err = h.ledger.Usage(c.Request.Context(), target); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.AccountResponse{UserID: target, Profile: state})
}

func (h *AdminHandler) SetCredits(c *gin.Context) {
	var req models.SetCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	target := c.Param("user_id")
	state, err := h.ledger.SetCredits(c.Request.Context(), target, *req.Credits)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, target).WithField("credits", state.Credits).Info("Admin set credits")
	c.JSON(http.StatusOK, models.AccountResponse{UserID: target, Profile: state})
}

func (h *AdminHandler) SetPlan(c *gin.Context) {
	var req models.SetPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !req.Plan.Valid() {
		badRequest(c, "plan must be free or pro")
		return
	}
	target := c.Param("user_id")
	state, err := h.ledger.SetPlan(c.Request.Context(), target, req.Plan)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, target).WithField("plan", state.Plan).Info("Admin changed plan")
	c.JSON(http.StatusOK, models.AccountResponse{UserID: target, Profile: state})
}

func (h *AdminHandler) audit(c *gin.Context, target string) *logrus.Entry {
	admin, _ := middleware.GetUserID(c)
	return logrus.WithFields(logrus.Fields{"admin_id": admin, "user_id": target})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"creative-studio-backend/internal/credits"
	"creative-studio-backend/internal/models"
)

type AccountHandler struct {
	ledger    *credits.Ledger
	adminHash []byte
}

// NewAccountHandler builds the account endpoints. An empty adminHash
// disables privilege elevation.
func NewAccountHandler(ledger *credits.Ledger, adminHash string) *AccountHandler {
	return &AccountHandler{ledger: ledger, adminHash: []byte(adminHash)}
}

// GetAccount godoc
// @Summary     Plan and credit balance
// @Tags        account
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.AccountResponse
// @Router      /account [get]
func (h *AccountHandler) GetAccount(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	state, err := h.ledger.GetOrCreate(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	if state.UsageLog, err = h.ledger.Usage(c.Request.Context(), uid); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.AccountResponse{UserID: uid, Profile: state})
}

// AdReward godoc
// @Summary     Grant the credit for a watched rewarded ad
// @Description At most five grants per day. Granted is false once the cap is reached.
// @Tags        account
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.AdRewardResponse
// @Router      /account/ad-reward [post]
func (h *AccountHandler) AdReward(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	if _, err := h.ledger.GetOrCreate(c.Request.Context(), uid); err != nil {
		respondError(c, err)
		return
	}
	granted, state, err := h.ledger.EarnFromAd(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.AdRewardResponse{Granted: granted, Profile: state})
}

// Upgrade confirms a (simulated) purchase of the pro plan.
func (h *AccountHandler) Upgrade(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	if _, err := h.ledger.GetOrCreate(c.Request.Context(), uid); err != nil {
		respondError(c, err)
		return
	}
	state, err := h.ledger.SetPlan(c.Request.Context(), uid, models.PlanPro)
	if err != nil {
		respondError(c, err)
		return
	}
	logrus.WithField("user_id", uid).Info("Upgraded to pro")
	c.JSON(http.StatusOK, models.AccountResponse{UserID: uid, Profile: state})
}

// Elevate godoc
// @Summary     Request admin privileges
// @Description The credential is verified server-side against a bcrypt hash.
// @Tags        account
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.ElevateRequest true "Credential"
// @Success     200 {object} models.ElevateResponse
// @Router      /account/elevate [post]
func (h *AccountHandler) Elevate(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req models.ElevateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	log := logrus.WithField("user_id", uid)
	if len(h.adminHash) == 0 || bcrypt.CompareHashAndPassword(h.adminHash, []byte(req.Credential)) != nil {
		log.Warn("Privilege elevation rejected")
		c.JSON(http.StatusOK, models.ElevateResponse{Elevated: false})
		return
	}

	if _, err := h.ledger.GetOrCreate(c.Request.Context(), uid); err != nil {
		respondError(c, err)
		return
	}
	if _, err := h.ledger.SetAdmin(c.Request.Context(), uid, true); err != nil {
		respondError(c, err)
		return
	}
	log.Info("Privilege elevation granted")
	c.JSON(http.StatusOK, models.ElevateResponse{Elevated: true})
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"creative-studio-backend/internal/credits"
	"creative-studio-backend/internal/gate"
	"creative-studio-backend/internal/middleware"
	"creative-studio-backend/internal/models"
	"creative-studio-backend/internal/studio"
	"creative-studio-backend/internal/video"
)

// userID returns the authenticated user or writes a 401 and reports false.
func userID(c *gin.Context) (string, bool) {
	id, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return "", false
	}
	return id, true
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: message})
}

// respondError maps a domain error to its HTTP status and body.
func respondError(c *gin.Context, err error) {
	var gateErr *gate.Error
	if errors.As(err, &gateErr) {
		c.JSON(http.StatusPaymentRequired, models.UpgradeRequiredResponse{
			Error:   "upgrade required",
			Message: gateErr.Error(),
			Feature: gateErr.Feature,
			Reason:  string(gateErr.Reason),
			Credits: gateErr.Credits,
		})
		return
	}

	if errors.Is(err, credits.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found", Message: "Profile not found."})
		return
	}

	if errors.Is(err, video.ErrEmptyPrompt) {
		badRequest(c, err.Error())
		return
	}

	var studioErr *studio.Error
	if errors.As(err, &studioErr) {
		status := http.StatusBadGateway
		switch studioErr.Kind {
		case studio.KindInput:
			status = http.StatusBadRequest
		case studio.KindBusy, studio.KindDiscarded:
			status = http.StatusConflict
		}
		c.JSON(status, models.ErrorResponse{Error: string(studioErr.Kind), Message: studio.UserMessage(err)})
		return
	}

	logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal error", Message: studio.UserMessage(err)})
}

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"creative-studio-backend/internal/gate"
	"creative-studio-backend/internal/models"
	"creative-studio-backend/internal/studio"
	"creative-studio-backend/internal/video"
)

type VideoHandler struct {
	workspaces *studio.Manager
	gate       *gate.Gate
}

func NewVideoHandler(workspaces *studio.Manager, g *gate.Gate) *VideoHandler {
	return &VideoHandler{workspaces: workspaces, gate: g}
}

// Submit godoc
// @Summary     Start a video generation
// @Description Pro only. Returns once the job is accepted; poll GET /video for progress.
// @Tags        video
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.VideoRequest true "Prompt"
// @Success     202 {object} models.VideoJob
// @Failure     402 {object} models.UpgradeRequiredResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /video [post]
func (h *VideoHandler) Submit(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req models.VideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	jobs := h.workspaces.Get(uid).Video
	_, err := h.gate.Run(c.Request.Context(), uid, models.FeatureVideoGeneration, func(ctx context.Context) error {
		return jobs.Submit(req.Prompt)
	})
	if err != nil {
		var gateErr *gate.Error
		if errors.As(err, &gateErr) || errors.Is(err, video.ErrEmptyPrompt) {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "video generation failed", Message: studio.UserMessage(err)})
		return
	}
	c.JSON(http.StatusAccepted, jobs.Status())
}

// Status godoc
// @Summary     Current video job
// @Tags        video
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.VideoJob
// @Router      /video [get]
func (h *VideoHandler) Status(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.workspaces.Get(uid).Video.Status())
}

// Result streams the finished video. The provider URL is never exposed.
func (h *VideoHandler) Result(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	data, ok := h.workspaces.Get(uid).Video.Video()
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found", Message: "No video is available yet."})
		return
	}
	c.Data(http.StatusOK, "video/mp4", data)
}

package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"creative-studio-backend/internal/gate"
	"creative-studio-backend/internal/imageconv"
	"creative-studio-backend/internal/models"
	"creative-studio-backend/internal/notify"
	"creative-studio-backend/internal/services"
	"creative-studio-backend/internal/studio"
)

const maxUploadSize = 20 << 20

// WorkspaceResponse is the observable state of a user's workspace.
type WorkspaceResponse struct {
	Mode models.AppMode `json:"mode"`
	studio.Snapshot
	Video         models.VideoJob       `json:"video"`
	Notifications []models.Notification `json:"notifications"`
	Account       *models.UserState     `json:"account,omitempty"`
}

type StudioHandler struct {
	workspaces *studio.Manager
	gate       *gate.Gate
	exports    *services.ExportService
	broker     *notify.Broker
}

func NewStudioHandler(workspaces *studio.Manager, g *gate.Gate, exports *services.ExportService, broker *notify.Broker) *StudioHandler {
	return &StudioHandler{
		workspaces: workspaces,
		gate:       g,
		exports:    exports,
		broker:     broker,
	}
}

func (h *StudioHandler) respond(c *gin.Context, userID string, account *models.UserState) {
	w := h.workspaces.Get(userID)
	c.JSON(http.StatusOK, WorkspaceResponse{
		Mode:          w.Mode(),
		Snapshot:      w.Session.Snapshot(),
		Video:         w.Video.Status(),
		Notifications: h.broker.Recent(userID),
		Account:       account,
	})
}

// run executes a synchronous workspace operation and answers with the new
// state.
func (h *StudioHandler) run(c *gin.Context, fn func(w *studio.Workspace) error) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	if err := fn(h.workspaces.Get(uid)); err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, uid, nil)
}

// gated runs a credit-metered operation through the gate.
func (h *StudioHandler) gated(c *gin.Context, feature models.Feature, fn func(ctx context.Context, s *studio.Session) error) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	session := h.workspaces.Get(uid).Session
	account, err := h.gate.Run(c.Request.Context(), uid, feature, func(ctx context.Context) error {
		return fn(ctx, session)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, uid, account)
}

// GetStudio godoc
// @Summary     Workspace state
// @Tags        studio
// @Produce     json
// @Security    Bearer
// @Success     200 {object} WorkspaceResponse
// @Router      /studio [get]
func (h *StudioHandler) GetStudio(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	h.respond(c, uid, nil)
}

// Styles lists the style presets and prompt suggestions.
func (h *StudioHandler) Styles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"styles":      studio.StylePresets(),
		"suggestions": studio.PromptSuggestions,
	})
}

// SetMode godoc
// @Summary     Switch between image and video mode
// @Description Clears the workspace. Video mode requires the pro plan.
// @Tags        studio
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.ModeRequest true "Mode"
// @Success     200 {object} WorkspaceResponse
// @Failure     402 {object} models.UpgradeRequiredResponse
// @Router      /studio/mode [post]
func (h *StudioHandler) SetMode(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req models.ModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Mode == models.AppModeVideo {
		if _, err := h.gate.Check(c.Request.Context(), uid, models.FeatureVideoGeneration); err != nil {
			respondError(c, err)
			return
		}
	}
	if err := h.workspaces.Get(uid).SetMode(req.Mode); err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, uid, nil)
}

func (h *StudioHandler) Reset(c *gin.Context) {
	h.run(c, func(w *studio.Workspace) error {
		w.Reset()
		return nil
	})
}

// UploadImage godoc
// @Summary     Select the working image
// @Tags        studio
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       image formData file true "Image file"
// @Success     200 {object} WorkspaceResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /studio/image [post]
func (h *StudioHandler) UploadImage(c *gin.Context) {
	file, err := readUpload(c, "image")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	h.run(c, func(w *studio.Workspace) error {
		return w.Session.SelectImage(*file)
	})
}

// Generate godoc
// @Summary     Generate an image from text
// @Tags        studio
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.GenerateRequest true "Prompt"
// @Success     200 {object} WorkspaceResponse
// @Failure     402 {object} models.UpgradeRequiredResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /studio/generate [post]
func (h *StudioHandler) Generate(c *gin.Context) {
	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.AspectRatio != "" && !req.AspectRatio.Valid() {
		badRequest(c, "unsupported aspect ratio")
		return
	}
	h.gated(c, models.FeatureImageGeneration, func(ctx context.Context, s *studio.Session) error {
		return s.GenerateFromPrompt(ctx, req.Prompt, req.NegativePrompt, req.AspectRatio)
	})
}

func (h *StudioHandler) SetPrompt(c *gin.Context) {
	var req models.PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.run(c, func(w *studio.Workspace) error {
		if req.Prompt != nil {
			w.Session.SetPrompt(*req.Prompt)
		}
		if req.NegativePrompt != nil {
			w.Session.SetNegativePrompt(*req.NegativePrompt)
		}
		return nil
	})
}

func (h *StudioHandler) AppendSuggestion(c *gin.Context) {
	var req models.SuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.run(c, func(w *studio.Workspace) error {
		w.Session.AppendSuggestion(req.Suggestion)
		return nil
	})
}

func (h *StudioHandler) SetStyleReference(c *gin.Context) {
	var req models.ImageDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	data, mimeType, err := imageconv.DecodeDataURL(req.DataURL)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	h.run(c, func(w *studio.Workspace) error {
		return w.Session.SetStyleReference(&models.ImageFile{Name: req.Name, MimeType: mimeType, Data: data})
	})
}

func (h *StudioHandler) ClearStyleReference(c *gin.Context) {
	h.run(c, func(w *studio.Workspace) error {
		return w.Session.SetStyleReference(nil)
	})
}

func (h *StudioHandler) SelectTool(c *gin.Context) {
	var req models.ToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.run(c, func(w *studio.Workspace) error {
		return w.Session.SelectTool(studio.ToolKind(req.Tool))
	})
}

func (h *StudioHandler) SetMask(c *gin.Context) {
	var req models.MaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	mask, _, err := imageconv.DecodeDataURL(req.Mask)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	h.run(c, func(w *studio.Workspace) error {
		return w.Session.SetMask(mask)
	})
}

func (h *StudioHandler) ClearMask(c *gin.Context) {
	h.run(c, func(w *studio.Workspace) error {
		return w.Session.ClearMask()
	})
}

func (h *StudioHandler) SetMagicCoords(c *gin.Context) {
	var req models.CoordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.run(c, func(w *studio.Workspace) error {
		return w.Session.SetMagicCoords(&models.Point{X: *req.X, Y: *req.Y})
	})
}

// ApplyEdit godoc
// @Summary     Apply the prompt to the working image
// @Description Uses the active mask or style reference when present.
// @Tags        studio
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.EditRequest false "Optional prompt override"
// @Success     200 {object} WorkspaceResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     402 {object} models.UpgradeRequiredResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /studio/edit [post]
func (h *StudioHandler) ApplyEdit(c *gin.Context) {
	var req models.EditRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	h.gated(c, models.FeatureImageEdit, func(ctx context.Context, s *studio.Session) error {
		if req.Prompt != nil {
			return s.ApplyEditWithPrompt(ctx, *req.Prompt)
		}
		return s.ApplyEdit(ctx)
	})
}

func (h *StudioHandler) ApplyStyle(c *gin.Context) {
	styleID := c.Param("style_id")
	if _, ok := studio.LookupStyle(styleID); !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found", Message: "Unknown style."})
		return
	}
	h.gated(c, models.FeatureStyleFilter, func(ctx context.Context, s *studio.Session) error {
		return s.ApplyStyle(ctx, styleID)
	})
}

func (h *StudioHandler) GenerateVariations(c *gin.Context) {
	req := models.VariationsRequest{Count: studio.DefaultVariations}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	h.gated(c, models.FeatureImageVariation, func(ctx context.Context, s *studio.Session) error {
		return s.GenerateVariations(ctx, req.Count)
	})
}

func (h *StudioHandler) PlaceMagicObject(c *gin.Context) {
	var req models.MagicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.gated(c, models.FeatureMagicTool, func(ctx context.Context, s *studio.Session) error {
		return s.PlaceMagicObject(ctx, req.ObjectPrompt, models.Point{X: *req.X, Y: *req.Y})
	})
}

func (h *StudioHandler) ExpandCanvas(c *gin.Context) {
	var req models.ExpandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.gated(c, models.FeatureExpandCanvas, func(ctx context.Context, s *studio.Session) error {
		return s.ExpandCanvas(ctx, req.Image, req.Mask)
	})
}

func (h *StudioHandler) Erase(c *gin.Context) {
	h.gated(c, models.FeatureEraseTool, func(ctx context.Context, s *studio.Session) error {
		return s.Erase(ctx)
	})
}

func (h *StudioHandler) Enhance(c *gin.Context) {
	h.gated(c, models.Feature4KEnhance, func(ctx context.Context, s *studio.Session) error {
		return s.EnhanceTo4K(ctx)
	})
}

func (h *StudioHandler) Cutout(c *gin.Context) {
	h.gated(c, models.FeatureBackgroundCutout, func(ctx context.Context, s *studio.Session) error {
		return s.RemoveBackground(ctx)
	})
}

func (h *StudioHandler) Undo(c *gin.Context) {
	h.run(c, func(w *studio.Workspace) error {
		_, err := w.Session.Undo()
		return err
	})
}

func (h *StudioHandler) Redo(c *gin.Context) {
	h.run(c, func(w *studio.Workspace) error {
		_, err := w.Session.Redo()
		return err
	})
}

func (h *StudioHandler) RevertTo(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	moved, err := h.workspaces.Get(uid).Session.RevertTo(c.Param("history_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !moved {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found", Message: "History entry not found."})
		return
	}
	h.respond(c, uid, nil)
}

// Export godoc
// @Summary     Publish the current image
// @Description Uploads the first edited image, or the working image when nothing was edited yet.
// @Tags        studio
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.ExportRequest false "Target format"
// @Success     200 {object} models.ExportResponse
// @Router      /studio/export [post]
func (h *StudioHandler) Export(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req models.ExportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	session := h.workspaces.Get(uid).Session
	var dataURL string
	if edited := session.EditedImages(); len(edited) > 0 {
		dataURL = edited[0].DataURL
	} else if original := session.Original(); original != nil {
		dataURL = original.DataURL
	}

	res, err := h.exports.Export(c.Request.Context(), uid, dataURL, strings.ToLower(req.Format))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, services.ErrNothingToExport), errors.Is(err, services.ErrInvalidFormat):
		badRequest(c, err.Error())
	default:
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "export failed", Message: err.Error()})
	}
}

func readUpload(c *gin.Context, field string) (*models.ImageFile, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	header, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &models.ImageFile{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

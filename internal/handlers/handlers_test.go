package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"creative-studio-backend/internal/credits"
	"creative-studio-backend/internal/editrequest"
	"creative-studio-backend/internal/gate"
	"creative-studio-backend/internal/handlers"
	"creative-studio-backend/internal/middleware"
	"creative-studio-backend/internal/models"
	"creative-studio-backend/internal/notify"
	"creative-studio-backend/internal/services"
	"creative-studio-backend/internal/stores/memory"
	"creative-studio-backend/internal/studio"
	"creative-studio-backend/internal/video"
)

const adminCredential = "open-sesame"

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeGenerator struct {
	image []byte
}

func (g *fakeGenerator) GenerateImage(ctx context.Context, prompt, negativePrompt string, aspect models.AspectRatio) ([]byte, error) {
	return g.image, nil
}

func (g *fakeGenerator) EditImage(ctx context.Context, req editrequest.Request) (*models.EditResult, error) {
	return &models.EditResult{ImageData: g.image, MimeType: "image/png", Text: "done"}, nil
}

func (g *fakeGenerator) EnhanceImage(ctx context.Context, image editrequest.Payload) (*models.EditResult, error) {
	return &models.EditResult{ImageData: g.image, MimeType: "image/png"}, nil
}

func (g *fakeGenerator) RemoveBackground(ctx context.Context, image editrequest.Payload) (*models.EditResult, error) {
	return &models.EditResult{ImageData: g.image, MimeType: "image/png"}, nil
}

type idleVideoBackend struct{}

func (idleVideoBackend) SubmitVideo(context.Context, string) (*models.VideoOperation, error) {
	return &models.VideoOperation{Name: "operations/1"}, nil
}

func (idleVideoBackend) PollVideo(_ context.Context, op *models.VideoOperation) (*models.VideoOperation, error) {
	return op, nil
}

func (idleVideoBackend) FetchVideo(context.Context, string) ([]byte, error) {
	return nil, nil
}

type fakeAuth struct {
	signedOut []string
}

func (a *fakeAuth) SignUp(email, password string) (*models.AuthResponse, error) {
	return &models.AuthResponse{UserID: "new-user", Email: email, AccessToken: "token"}, nil
}

func (a *fakeAuth) SignIn(email, password string) (*models.AuthResponse, error) {
	if password != "secret" {
		return nil, assert.AnError
	}
	return &models.AuthResponse{UserID: "alice", Email: email, AccessToken: "token"}, nil
}

func (a *fakeAuth) SignOut(accessToken string) error {
	a.signedOut = append(a.signedOut, accessToken)
	return nil
}

type fakeUploader struct{}

func (fakeUploader) UploadExport(ctx context.Context, userID, filename, contentType string, data []byte) (string, string, error) {
	path := "users/" + userID + "/exports/" + filename
	return path, "https://cdn.test/" + path, nil
}

type server struct {
	router     *gin.Engine
	ledger     *credits.Ledger
	workspaces *studio.Manager
	broker     *notify.Broker
	auth       *fakeAuth
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ledger := credits.NewLedger(memory.NewStore())
	broker := notify.NewBroker()
	gen := &fakeGenerator{image: pngBytes(t)}
	workspaces := studio.NewManager(func(userID string) *studio.Workspace {
		n := broker.For(userID)
		session := studio.NewSession(gen, studio.WithNotifier(n), studio.WithOwner(userID))
		jobs := video.NewController(idleVideoBackend{}, video.WithInterval(time.Hour), video.WithNotifier(n))
		return studio.NewWorkspace(session, jobs, n)
	})
	t.Cleanup(workspaces.Shutdown)

	hash, err := bcrypt.GenerateFromPassword([]byte(adminCredential), bcrypt.MinCost)
	require.NoError(t, err)

	g := gate.New(ledger)
	auth := &fakeAuth{}
	studioHandler := handlers.NewStudioHandler(workspaces, g, services.NewExportService(fakeUploader{}), broker)
	videoHandler := handlers.NewVideoHandler(workspaces, g)
	accountHandler := handlers.NewAccountHandler(ledger, string(hash))
	adminHandler := handlers.NewAdminHandler(ledger)
	authHandler := handlers.NewAuthHandler(auth, ledger, workspaces, broker)
	eventsHandler := handlers.NewEventsHandler(broker)

	router := gin.New()
	router.GET("/health", handlers.HealthHandler)
	router.POST("/auth/signup", authHandler.Signup)
	router.POST("/auth/login", authHandler.Login)

	api := router.Group("/")
	api.Use(func(c *gin.Context) {
		if user := c.GetHeader("X-Test-User"); user != "" {
			c.Set(middleware.UserIDKey, user)
			c.Set(middleware.AccessTokenKey, "token-"+user)
		}
		c.Next()
	})
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/studio", studioHandler.GetStudio)
	api.GET("/studio/styles", studioHandler.Styles)
	api.POST("/studio/mode", studioHandler.SetMode)
	api.POST("/studio/reset", studioHandler.Reset)
	api.POST("/studio/image", studioHandler.UploadImage)
	api.POST("/studio/generate", studioHandler.Generate)
	api.PUT("/studio/prompt", studioHandler.SetPrompt)
	api.POST("/studio/suggestion", studioHandler.AppendSuggestion)
	api.POST("/studio/tool", studioHandler.SelectTool)
	api.POST("/studio/edit", studioHandler.ApplyEdit)
	api.POST("/studio/variations", studioHandler.GenerateVariations)
	api.POST("/studio/styles/:style_id", studioHandler.ApplyStyle)
	api.POST("/studio/enhance", studioHandler.Enhance)
	api.POST("/studio/undo", studioHandler.Undo)
	api.POST("/studio/history/:history_id/revert", studioHandler.RevertTo)
	api.POST("/studio/export", studioHandler.Export)
	api.POST("/video", videoHandler.Submit)
	api.GET("/video", videoHandler.Status)
	api.GET("/video/result", videoHandler.Result)
	api.GET("/account", accountHandler.GetAccount)
	api.POST("/account/ad-reward", accountHandler.AdReward)
	api.POST("/account/upgrade", accountHandler.Upgrade)
	api.POST("/account/elevate", accountHandler.Elevate)
	api.GET("/events", eventsHandler.Stream)

	admin := api.Group("/admin")
	admin.Use(adminHandler.RequireAdmin())
	admin.GET("/users/:user_id", adminHandler.GetUser)
	admin.PUT("/users/:user_id/credits", adminHandler.SetCredits)
	admin.PUT("/users/:user_id/plan", adminHandler.SetPlan)

	return &server{router: router, ledger: ledger, workspaces: workspaces, broker: broker, auth: auth}
}

func (s *server) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) upload(t *testing.T, user string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "photo.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest(http.MethodPost, "/studio/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Test-User", user)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealthHandler(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestStudio_RequiresUser(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/studio", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStudio_EmptySnapshot(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/studio", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	res := decode[handlers.WorkspaceResponse](t, w)
	assert.Equal(t, models.AppModeImage, res.Mode)
	assert.Nil(t, res.OriginalImage)
	assert.Equal(t, models.VideoIdle, res.Video.Status)
}

func TestStudio_UploadAndEditDebitsOneCredit(t *testing.T) {
	s := newServer(t)

	w := s.upload(t, "alice", pngBytes(t))
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[handlers.WorkspaceResponse](t, w)
	require.NotNil(t, res.OriginalImage)
	require.NotEmpty(t, res.Notifications)
	assert.Equal(t, "Image uploaded successfully.", res.Notifications[len(res.Notifications)-1].Message)

	w = s.do(t, http.MethodPut, "/studio/prompt", "alice", map[string]string{"prompt": "make it blue"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/studio/edit", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[handlers.WorkspaceResponse](t, w)
	assert.Len(t, res.EditedImages, 1)
	require.NotNil(t, res.Account)
	assert.Equal(t, credits.FreeCreditsPerDay-1, res.Account.Credits)
	assert.Len(t, res.History, 1)
}

func TestStudio_VariationsDefaultToThree(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusOK, s.upload(t, "alice", pngBytes(t)).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/studio/prompt", "alice", map[string]string{"prompt": "neon city"}).Code)

	w := s.do(t, http.MethodPost, "/studio/variations", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[handlers.WorkspaceResponse](t, w)
	assert.Len(t, res.EditedImages, studio.DefaultVariations)
	assert.Len(t, res.History, 1)

	w = s.do(t, http.MethodPost, "/studio/variations", "alice", models.VariationsRequest{Count: 2})
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[handlers.WorkspaceResponse](t, w)
	assert.Len(t, res.EditedImages, 2)
}

func TestStudio_InvalidEditCostsNothing(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/studio/edit", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "input")

	state, err := s.ledger.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, credits.FreeCreditsPerDay, state.Credits)
}

func TestStudio_OutOfCredits(t *testing.T) {
	s := newServer(t)
	_, err := s.ledger.GetOrCreate(context.Background(), "alice")
	require.NoError(t, err)
	_, err = s.ledger.SetCredits(context.Background(), "alice", 0)
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/studio/generate", "alice", models.GenerateRequest{Prompt: "a fox"})
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	res := decode[models.UpgradeRequiredResponse](t, w)
	assert.Equal(t, string(gate.ReasonCredits), res.Reason)
	assert.Equal(t, models.FeatureImageGeneration, res.Feature)
}

func TestStudio_GenerateRejectsUnknownAspect(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, "/studio/generate", "alice", models.GenerateRequest{Prompt: "a fox", AspectRatio: "2:1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudio_ProOnlyFeature(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusOK, s.upload(t, "alice", pngBytes(t)).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/studio/prompt", "alice", map[string]string{"prompt": "sharper"}).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/studio/edit", "alice", nil).Code)

	w := s.do(t, http.MethodPost, "/studio/enhance", "alice", nil)
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, string(gate.ReasonPro), decode[models.UpgradeRequiredResponse](t, w).Reason)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/account/upgrade", "alice", nil).Code)

	w = s.do(t, http.MethodPost, "/studio/enhance", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[handlers.WorkspaceResponse](t, w)
	assert.Len(t, res.EditedImages, 1)
	assert.Equal(t, credits.ProCredits, res.Account.Credits)
}

func TestStudio_VideoModeRequiresPro(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/studio/mode", "alice", models.ModeRequest{Mode: models.AppModeVideo})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/account/upgrade", "alice", nil).Code)

	w = s.do(t, http.MethodPost, "/studio/mode", "alice", models.ModeRequest{Mode: models.AppModeVideo})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.AppModeVideo, decode[handlers.WorkspaceResponse](t, w).Mode)

	w = s.do(t, http.MethodPost, "/studio/mode", "alice", models.ModeRequest{Mode: "audio"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudio_StyleAndSuggestion(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusOK, s.upload(t, "alice", pngBytes(t)).Code)

	w := s.do(t, http.MethodPost, "/studio/suggestion", "alice", models.SuggestionRequest{Suggestion: "4K"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "4K", decode[handlers.WorkspaceResponse](t, w).Prompt)

	w = s.do(t, http.MethodPost, "/studio/styles/unknown", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/studio/styles/anime", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[handlers.WorkspaceResponse](t, w)
	assert.Contains(t, res.Prompt, "modern anime style")
	assert.Len(t, res.EditedImages, 1)

	w = s.do(t, http.MethodGet, "/studio/styles", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pixel-art")
}

func TestStudio_ToolAndRevert(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/studio/tool", "alice", models.ToolRequest{Tool: "lasso"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/studio/tool", "alice", models.ToolRequest{Tool: "mask"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, studio.ToolMask, decode[handlers.WorkspaceResponse](t, w).ActiveTool)

	w = s.do(t, http.MethodPost, "/studio/history/missing/revert", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudio_Export(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/studio/export", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.Equal(t, http.StatusOK, s.upload(t, "alice", pngBytes(t)).Code)
	w = s.do(t, http.MethodPost, "/studio/export", "alice", models.ExportRequest{Format: "png"})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[models.ExportResponse](t, w)
	assert.Contains(t, res.PublicURL, "users/alice/exports/")
	assert.Equal(t, "image/png", res.MimeType)
}

func TestVideo_SubmitRequiresPro(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/video", "alice", models.VideoRequest{Prompt: "waves"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/account/upgrade", "alice", nil).Code)

	w = s.do(t, http.MethodPost, "/video", "alice", models.VideoRequest{Prompt: "waves"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, models.VideoGenerating, decode[models.VideoJob](t, w).Status)

	w = s.do(t, http.MethodGet, "/video/result", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAccount_AdReward(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/account/ad-reward", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[models.AdRewardResponse](t, w)
	assert.True(t, res.Granted)
	assert.Equal(t, credits.FreeCreditsPerDay+1, res.Profile.Credits)
	assert.Empty(t, res.Profile.UsageLog)

	w = s.do(t, http.MethodGet, "/account", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	account := decode[models.AccountResponse](t, w)
	require.Len(t, account.Profile.UsageLog, 1)
	assert.Equal(t, models.FeatureRewardedAdCredit, account.Profile.UsageLog[0].FeatureUsed)
}

func TestAccount_ElevateAndAdmin(t *testing.T) {
	s := newServer(t)
	_, err := s.ledger.GetOrCreate(context.Background(), "bob")
	require.NoError(t, err)

	w := s.do(t, http.MethodGet, "/admin/users/bob", "alice", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/account/elevate", "alice", models.ElevateRequest{Credential: "guess"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[models.ElevateResponse](t, w).Elevated)

	w = s.do(t, http.MethodPost, "/account/elevate", "alice", models.ElevateRequest{Credential: adminCredential})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[models.ElevateResponse](t, w).Elevated)

	w = s.do(t, http.MethodGet, "/admin/users/bob", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob", decode[models.AccountResponse](t, w).UserID)

	w = s.do(t, http.MethodGet, "/admin/users/nobody", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	credits42 := 42
	w = s.do(t, http.MethodPut, "/admin/users/bob/credits", "alice", models.SetCreditsRequest{Credits: &credits42})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 42, decode[models.AccountResponse](t, w).Profile.Credits)

	w = s.do(t, http.MethodPut, "/admin/users/bob/plan", "alice", models.SetPlanRequest{Plan: "gold"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/admin/users/bob/plan", "alice", models.SetPlanRequest{Plan: models.PlanPro})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PlanPro, decode[models.AccountResponse](t, w).Profile.Plan)

	w = s.do(t, http.MethodGet, "/admin/users/bob", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	log := decode[models.AccountResponse](t, w).Profile.UsageLog
	require.Len(t, log, 2)
	assert.Equal(t, models.FeatureAdminCreditSet, log[0].FeatureUsed)
	assert.Equal(t, models.FeatureAdminPlanChange, log[1].FeatureUsed)
}

func TestAuth_SignupLoginLogout(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/auth/signup", "", models.SignupRequest{Email: "new@example.com", Password: "secret1"})
	require.Equal(t, http.StatusCreated, w.Code)
	signup := decode[models.AuthResponse](t, w)
	require.NotNil(t, signup.Profile)
	assert.Equal(t, credits.FreeCreditsPerDay, signup.Profile.Credits)
	assert.Equal(t, models.PlanFree, signup.Profile.Plan)

	w = s.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"email": "not-an-email", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/auth/login", "", models.LoginRequest{Email: "a@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/auth/login", "", models.LoginRequest{Email: "a@example.com", Password: "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode[models.AuthResponse](t, w).UserID)

	s.workspaces.Get("alice")
	require.Equal(t, 1, s.workspaces.Count())

	w = s.do(t, http.MethodPost, "/auth/logout", "alice", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, s.workspaces.Count())
	assert.Equal(t, []string{"token-alice"}, s.auth.signedOut)
}

func TestEvents_ReplaysRecentNotifications(t *testing.T) {
	s := newServer(t)
	s.broker.Publish("alice", "Workspace cleared.", models.NotificationInfo)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "/events", nil)
	req.Header.Set("X-Test-User", "alice")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "event:notification")
	assert.Contains(t, w.Body.String(), "Workspace cleared.")
}

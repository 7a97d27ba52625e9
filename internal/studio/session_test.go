package studio_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"sync"
	"testing"
	"time"

	"creative-studio-backend/internal/editrequest"
	"creative-studio-backend/internal/models"
	"creative-studio-backend/internal/studio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

type fakeGenerator struct {
	mu       sync.Mutex
	requests []editrequest.Request

	generate func(prompt, neg string, aspect models.AspectRatio) ([]byte, error)
	edit     func(ctx context.Context, call int, req editrequest.Request) (*models.EditResult, error)
	enhance  func(img editrequest.Payload) (*models.EditResult, error)
	cutout   func(img editrequest.Payload) (*models.EditResult, error)
}

func (g *fakeGenerator) GenerateImage(ctx context.Context, prompt, neg string, aspect models.AspectRatio) ([]byte, error) {
	return g.generate(prompt, neg, aspect)
}

func (g *fakeGenerator) EditImage(ctx context.Context, req editrequest.Request) (*models.EditResult, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	call := len(g.requests)
	g.mu.Unlock()
	return g.edit(ctx, call, req)
}

func (g *fakeGenerator) EnhanceImage(ctx context.Context, img editrequest.Payload) (*models.EditResult, error) {
	return g.enhance(img)
}

func (g *fakeGenerator) RemoveBackground(ctx context.Context, img editrequest.Payload) (*models.EditResult, error) {
	return g.cutout(img)
}

func (g *fakeGenerator) calls() []editrequest.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]editrequest.Request(nil), g.requests...)
}

type recorder struct {
	mu    sync.Mutex
	notes []models.Notification
}

func (r *recorder) Notify(message string, kind models.NotificationType) {
	r.mu.Lock()
	r.notes = append(r.notes, models.Notification{Message: message, Type: kind})
	r.mu.Unlock()
}

func (r *recorder) last() models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notes) == 0 {
		return models.Notification{}
	}
	return r.notes[len(r.notes)-1]
}

type fixture struct {
	gen     *fakeGenerator
	notes   *recorder
	session *studio.Session
	result  []byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{notes: &recorder{}, result: pngBytes(t, 3, 3)}
	f.gen = &fakeGenerator{
		generate: func(string, string, models.AspectRatio) ([]byte, error) { return f.result, nil },
		edit: func(context.Context, int, editrequest.Request) (*models.EditResult, error) {
			return &models.EditResult{ImageData: f.result, MimeType: "image/png", Text: "done"}, nil
		},
		enhance: func(editrequest.Payload) (*models.EditResult, error) {
			return &models.EditResult{ImageData: f.result, MimeType: "image/png"}, nil
		},
		cutout: func(editrequest.Payload) (*models.EditResult, error) {
			return &models.EditResult{ImageData: f.result, MimeType: "image/png"}, nil
		},
	}
	f.session = studio.NewSession(f.gen, studio.WithNotifier(f.notes))
	return f
}

func (f *fixture) withImage(t *testing.T) *fixture {
	t.Helper()
	require.NoError(t, f.session.SelectImage(models.ImageFile{Name: "in.png", Data: pngBytes(t, 2, 2)}))
	return f
}

func kindOf(t *testing.T, err error) studio.Kind {
	t.Helper()
	var se *studio.Error
	require.ErrorAs(t, err, &se)
	return se.Kind
}

func TestSelectImage(t *testing.T) {
	f := newFixture(t)

	err := f.session.SelectImage(models.ImageFile{Name: "notes.txt", Data: []byte("hello")})
	assert.Equal(t, studio.KindInput, kindOf(t, err))

	f.withImage(t)
	snap := f.session.Snapshot()
	require.NotNil(t, snap.OriginalImage)
	assert.Equal(t, "image/png", snap.OriginalImage.File.MimeType)
	assert.Contains(t, snap.OriginalImage.DataURL, "data:image/png;base64,")
	assert.Equal(t, -1, snap.HistoryIndex)
	assert.Equal(t, models.NotificationSuccess, f.notes.last().Type)
}

func TestSelectImage_DiscardsEditState(t *testing.T) {
	f := newFixture(t).withImage(t)
	f.session.SetPrompt("make it blue")
	require.NoError(t, f.session.ApplyEdit(context.Background()))

	f.withImage(t)
	snap := f.session.Snapshot()
	assert.Empty(t, snap.EditedImages)
	assert.Empty(t, snap.History)
	assert.Empty(t, snap.Prompt)
}

func TestApplyEdit_RequiresPromptOrMask(t *testing.T) {
	f := newFixture(t).withImage(t)

	err := f.session.ApplyEdit(context.Background())
	assert.Equal(t, studio.KindInput, kindOf(t, err))
	assert.Empty(t, f.gen.calls())
	assert.Equal(t, "Please provide a prompt or select an area to fill.", f.session.Snapshot().Error)
}

func TestApplyEdit_Success(t *testing.T) {
	f := newFixture(t).withImage(t)
	before := f.session.Original()

	require.NoError(t, f.session.SelectTool(studio.ToolMask))
	require.NoError(t, f.session.SetMask([]byte("mask")))
	f.session.SetPrompt("make it blue")
	f.session.SetNegativePrompt("cars")

	require.NoError(t, f.session.ApplyEdit(context.Background()))

	snap := f.session.Snapshot()
	require.Len(t, snap.EditedImages, 1)
	assert.Equal(t, "done", snap.EditedImages[0].Text)
	require.Len(t, snap.History, 1)
	assert.Equal(t, "make it blue", snap.History[0].Prompt)
	assert.Equal(t, "cars", snap.History[0].NegativePrompt)
	assert.Equal(t, 0, snap.HistoryIndex)
	assert.Equal(t, before.DataURL, snap.OriginalImage.DataURL)
	assert.Equal(t, studio.ToolNone, snap.ActiveTool)
	assert.False(t, snap.HasMask)
	assert.False(t, snap.Busy)
	assert.Empty(t, snap.LoadingMessage)

	calls := f.gen.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, editrequest.KindMaskedEdit, calls[0].Kind)
	assert.Equal(t, models.NotificationSuccess, f.notes.last().Type)
}

func TestApplyEdit_MaskWithoutPromptIsGenerativeFill(t *testing.T) {
	f := newFixture(t).withImage(t)
	require.NoError(t, f.session.SelectTool(studio.ToolMask))
	require.NoError(t, f.session.SetMask([]byte("mask")))

	require.NoError(t, f.session.ApplyEdit(context.Background()))
	assert.Equal(t, editrequest.KindGenerativeFill, f.gen.calls()[0].Kind)
}

func TestApplyEdit_KeepsExpandTool(t *testing.T) {
	f := newFixture(t).withImage(t)
	require.NoError(t, f.session.SelectTool(studio.ToolExpand))
	f.session.SetPrompt("brighter")

	require.NoError(t, f.session.ApplyEdit(context.Background()))
	assert.Equal(t, studio.ToolExpand, f.session.Snapshot().ActiveTool)
}

func TestApplyEdit_EmptyResult(t *testing.T) {
	f := newFixture(t).withImage(t)
	f.gen.edit = func(context.Context, int, editrequest.Request) (*models.EditResult, error) {
		return &models.EditResult{}, nil
	}
	require.NoError(t, f.session.SelectTool(studio.ToolMask))
	require.NoError(t, f.session.SetMask([]byte("mask")))
	f.session.SetPrompt("blue")

	err := f.session.ApplyEdit(context.Background())
	assert.Equal(t, studio.KindEmptyResult, kindOf(t, err))
	assert.Equal(t, "The model didn't return an image. Please try again.", err.Error())

	snap := f.session.Snapshot()
	assert.Empty(t, snap.EditedImages)
	assert.Empty(t, snap.History)
	assert.Equal(t, studio.ToolNone, snap.ActiveTool)
	assert.Equal(t, err.Error(), snap.Error)
	assert.Equal(t, models.NotificationError, f.notes.last().Type)
}

func TestApplyEdit_TextOnlyResultSurfacesText(t *testing.T) {
	f := newFixture(t).withImage(t)
	f.gen.edit = func(context.Context, int, editrequest.Request) (*models.EditResult, error) {
		return &models.EditResult{Text: "I can't edit faces."}, nil
	}
	f.session.SetPrompt("swap faces")

	err := f.session.ApplyEdit(context.Background())
	assert.Equal(t, "I can't edit faces.", err.Error())
}

func TestApplyEdit_QuotaFailureIsTranslated(t *testing.T) {
	f := newFixture(t).withImage(t)
	f.gen.edit = func(context.Context, int, editrequest.Request) (*models.EditResult, error) {
		return nil, errors.New("RESOURCE_EXHAUSTED: Quota exceeded for metric")
	}
	f.session.SetPrompt("blue")

	err := f.session.ApplyEdit(context.Background())
	assert.Equal(t, studio.KindCapability, kindOf(t, err))
	assert.Contains(t, studio.UserMessage(err), "exceeded the free tier limit")
}

func TestApplyEdit_StyleReferenceWinsOverMask(t *testing.T) {
	f := newFixture(t).withImage(t)
	require.NoError(t, f.session.SetStyleReference(&models.ImageFile{Name: "style.png", Data: pngBytes(t, 4, 4)}))
	require.NoError(t, f.session.SelectTool(studio.ToolMask))
	require.NoError(t, f.session.SetMask([]byte("mask")))
	f.session.SetPrompt("make it blue")

	require.NoError(t, f.session.ApplyEdit(context.Background()))

	req := f.gen.calls()[0]
	assert.Equal(t, editrequest.KindStyleTransfer, req.Kind)
	assert.NotNil(t, req.StyleReference)
	assert.Nil(t, req.Mask)
	assert.Contains(t, req.Instruction, "make it blue")
}

func TestApplyEditWithPrompt_OverridesSessionPrompt(t *testing.T) {
	f := newFixture(t).withImage(t)
	f.session.SetPrompt("session prompt")

	require.NoError(t, f.session.ApplyEditWithPrompt(context.Background(), "override"))
	assert.Equal(t, "override", f.gen.calls()[0].Instruction)
	assert.Equal(t, "override", f.session.Snapshot().History[0].Prompt)
}

func TestApplyStyle(t *testing.T) {
	f := newFixture(t).withImage(t)
	f.session.SetPrompt("a castle")

	require.NoError(t, f.session.ApplyStyle(context.Background(), "sketch"))

	want := "a castle detailed pencil sketch, hand-drawn, artistic, cross-hatching, monochrome"
	assert.Equal(t, want, f.session.Snapshot().Prompt)
	assert.Equal(t, want, f.gen.calls()[0].Instruction)

	err := f.session.ApplyStyle(context.Background(), "watercolor")
	assert.Equal(t, studio.KindInput, kindOf(t, err))
}

func TestAppendSuggestion(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "Epic", f.session.AppendSuggestion("Epic"))
	assert.Equal(t, "Epic, 4K", f.session.AppendSuggestion("4K"))
}

func TestGenerateVariations_PartialFailure(t *testing.T) {
	f := newFixture(t).withImage(t)
	f.gen.edit = func(_ context.Context, call int, _ editrequest.Request) (*models.EditResult, error) {
		if call == 2 {
			return nil, errors.New("transient failure")
		}
		return &models.EditResult{ImageData: f.result, MimeType: "image/png"}, nil
	}
	f.session.SetPrompt("neon city")

	require.NoError(t, f.session.GenerateVariations(context.Background(), 3))

	snap := f.session.Snapshot()
	assert.Len(t, snap.EditedImages, 2)
	require.Len(t, snap.History, 1)
	assert.Len(t, snap.History[0].Images, 2)
	assert.Len(t, f.gen.calls(), 3)
	assert.Equal(t, "2 variation(s) generated!", f.notes.last().Message)
}

func TestGenerateVariations_AllFail(t *testing.T) {
	f := newFixture(t).withImage(t)
	f.gen.edit = func(context.Context, int, editrequest.Request) (*models.EditResult, error) {
		return nil, errors.New("backend down")
	}
	f.session.SetPrompt("neon city")

	err := f.session.GenerateVariations(context.Background(), 3)
	require.Error(t, err)
	assert.Equal(t, "Could not generate any variations.", studio.UserMessage(err))
	assert.Empty(t, f.session.Snapshot().History)
}

func TestGenerateVariations_AllFailKeepsUpgradeMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rate limited", fmt.Errorf("failed to edit image: %w", statusErr{http.StatusTooManyRequests}), "You've exceeded the free tier limit. Please try again later or upgrade to Pro for unlimited access."},
		{"billing", errors.New("Imagen API is only accessible to billed users at this time."), "This feature requires a billed account setup. Please upgrade to Pro."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t).withImage(t)
			f.gen.edit = func(context.Context, int, editrequest.Request) (*models.EditResult, error) {
				return nil, tt.err
			}
			f.session.SetPrompt("neon city")

			err := f.session.GenerateVariations(context.Background(), 3)
			require.Error(t, err)
			assert.Equal(t, studio.KindCapability, kindOf(t, err))
			assert.Equal(t, tt.want, studio.UserMessage(err))
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.want, f.session.Snapshot().Error)
		})
	}
}

func TestGenerateVariations_RequiresPrompt(t *testing.T) {
	f := newFixture(t).withImage(t)

	err := f.session.GenerateVariations(context.Background(), 3)
	assert.Equal(t, studio.KindInput, kindOf(t, err))

	f.session.SetPrompt("x")
	err = f.session.GenerateVariations(context.Background(), studio.MaxVariations+1)
	assert.Equal(t, studio.KindInput, kindOf(t, err))
}

func TestPlaceMagicObject(t *testing.T) {
	f := newFixture(t).withImage(t)
	require.NoError(t, f.session.SelectTool(studio.ToolMagic))
	require.NoError(t, f.session.SetMagicCoords(&models.Point{X: 0.25, Y: 0.75}))
	assert.NotNil(t, f.session.Snapshot().MagicCoords)

	require.NoError(t, f.session.PlaceMagicObject(context.Background(), "a red balloon", models.Point{X: 0.25, Y: 0.75}))

	req := f.gen.calls()[0]
	assert.Equal(t, editrequest.KindObjectPlacement, req.Kind)
	assert.Contains(t, req.Instruction, "a red balloon")

	snap := f.session.Snapshot()
	assert.Equal(t, studio.ToolNone, snap.ActiveTool)
	assert.Nil(t, snap.MagicCoords)

	err := f.session.PlaceMagicObject(context.Background(), "balloon", models.Point{X: 2, Y: 0})
	assert.Equal(t, studio.KindInput, kindOf(t, err))
}

func TestSetMagicCoords_RequiresMagicTool(t *testing.T) {
	f := newFixture(t).withImage(t)
	err := f.session.SetMagicCoords(&models.Point{X: 0.5, Y: 0.5})
	assert.Equal(t, studio.KindInput, kindOf(t, err))
}

func TestSelectTool_DropsPreviousToolData(t *testing.T) {
	f := newFixture(t).withImage(t)

	assert.Error(t, f.session.SetMask([]byte("mask")))

	require.NoError(t, f.session.SelectTool(studio.ToolErase))
	require.NoError(t, f.session.SetMask([]byte("mask")))
	assert.True(t, f.session.Snapshot().HasMask)

	require.NoError(t, f.session.SelectTool(studio.ToolMask))
	snap := f.session.Snapshot()
	assert.Equal(t, studio.ToolMask, snap.ActiveTool)
	assert.False(t, snap.HasMask)

	assert.Error(t, f.session.SelectTool("lasso"))
}

func TestExpandCanvas_ReplacesOriginal(t *testing.T) {
	f := newFixture(t).withImage(t)
	f.session.SetPrompt("blue")
	require.NoError(t, f.session.ApplyEdit(context.Background()))
	require.NoError(t, f.session.ApplyEdit(context.Background()))
	require.Len(t, f.session.Snapshot().History, 2)

	before := f.session.Original()
	expanded := "data:image/png;base64," + encode(pngBytes(t, 6, 6))
	mask := "data:image/png;base64," + encode(pngBytes(t, 6, 6))

	require.NoError(t, f.session.SelectTool(studio.ToolExpand))
	require.NoError(t, f.session.ExpandCanvas(context.Background(), expanded, mask))

	snap := f.session.Snapshot()
	assert.NotEqual(t, before.DataURL, snap.OriginalImage.DataURL)
	assert.Equal(t, "outpainted.png", snap.OriginalImage.File.Name)
	require.Len(t, snap.History, 1)
	assert.Equal(t, "", snap.History[0].Prompt)
	assert.Equal(t, 0, snap.HistoryIndex)
	assert.Empty(t, snap.Prompt)
	assert.Equal(t, studio.ToolNone, snap.ActiveTool)

	req := f.gen.calls()[2]
	assert.Equal(t, editrequest.KindMaskedEdit, req.Kind)
}

func TestExpandCanvas_DefaultPrompt(t *testing.T) {
	f := newFixture(t).withImage(t)
	expanded := "data:image/png;base64," + encode(pngBytes(t, 6, 6))

	require.NoError(t, f.session.ExpandCanvas(context.Background(), expanded, expanded))
	assert.Contains(t, f.gen.calls()[0].Instruction, "Continue the image naturally")
}

func TestExpandCanvas_FailureChangesNothing(t *testing.T) {
	f := newFixture(t).withImage(t)
	f.session.SetPrompt("blue")
	require.NoError(t, f.session.ApplyEdit(context.Background()))
	require.NoError(t, f.session.SelectTool(studio.ToolExpand))
	before := f.session.Snapshot()

	f.gen.edit = func(context.Context, int, editrequest.Request) (*models.EditResult, error) {
		return nil, errors.New("outpainting unavailable")
	}
	expanded := "data:image/png;base64," + encode(pngBytes(t, 6, 6))
	err := f.session.ExpandCanvas(context.Background(), expanded, expanded)
	require.Error(t, err)

	after := f.session.Snapshot()
	assert.Equal(t, before.OriginalImage, after.OriginalImage)
	assert.Equal(t, before.History, after.History)
	assert.Equal(t, before.Prompt, after.Prompt)
	assert.Equal(t, studio.ToolExpand, after.ActiveTool)
	assert.Equal(t, "outpainting unavailable", after.Error)
}

func TestErase(t *testing.T) {
	f := newFixture(t).withImage(t)
	f.session.SetPrompt("ignored")

	err := f.session.Erase(context.Background())
	assert.Equal(t, studio.KindInput, kindOf(t, err))

	require.NoError(t, f.session.SelectTool(studio.ToolErase))
	require.NoError(t, f.session.SetMask([]byte("mask")))
	require.NoError(t, f.session.Erase(context.Background()))

	req := f.gen.calls()[0]
	assert.Equal(t, editrequest.KindErase, req.Kind)
	assert.NotContains(t, req.Instruction, "ignored")

	snap := f.session.Snapshot()
	assert.Equal(t, "Erase masked area", snap.History[0].Prompt)
	assert.Equal(t, studio.ToolNone, snap.ActiveTool)
}

func TestEnhanceTo4K(t *testing.T) {
	f := newFixture(t).withImage(t)

	err := f.session.EnhanceTo4K(context.Background())
	assert.Equal(t, studio.KindInput, kindOf(t, err))

	f.session.SetPrompt("blue")
	require.NoError(t, f.session.ApplyEdit(context.Background()))
	require.NoError(t, f.session.EnhanceTo4K(context.Background()))

	snap := f.session.Snapshot()
	require.Len(t, snap.History, 2)
	assert.Equal(t, "4K Enhance", snap.History[1].Prompt)
	assert.Len(t, snap.EditedImages, 1)
}

func TestEnhanceTo4K_NoImageIsFailure(t *testing.T) {
	f := newFixture(t).withImage(t)
	f.session.SetPrompt("blue")
	require.NoError(t, f.session.ApplyEdit(context.Background()))
	f.gen.enhance = func(editrequest.Payload) (*models.EditResult, error) {
		return &models.EditResult{Text: "upscaled"}, nil
	}

	err := f.session.EnhanceTo4K(context.Background())
	assert.Equal(t, studio.KindEmptyResult, kindOf(t, err))
	assert.Len(t, f.session.Snapshot().History, 1)
}

func TestRemoveBackground(t *testing.T) {
	f := newFixture(t)
	err := f.session.RemoveBackground(context.Background())
	assert.Equal(t, studio.KindInput, kindOf(t, err))

	f.withImage(t)
	require.NoError(t, f.session.SelectTool(studio.ToolCutout))
	require.NoError(t, f.session.RemoveBackground(context.Background()))

	snap := f.session.Snapshot()
	assert.Equal(t, "Remove background", snap.History[0].Prompt)
	assert.Equal(t, "", snap.History[0].NegativePrompt)
	assert.Equal(t, studio.ToolNone, snap.ActiveTool)
}

func TestGenerateFromPrompt(t *testing.T) {
	f := newFixture(t)
	var gotAspect models.AspectRatio
	f.gen.generate = func(prompt, neg string, aspect models.AspectRatio) ([]byte, error) {
		gotAspect = aspect
		return f.result, nil
	}

	err := f.session.GenerateFromPrompt(context.Background(), " ", "", models.AspectSquare)
	assert.Equal(t, studio.KindInput, kindOf(t, err))

	require.NoError(t, f.session.GenerateFromPrompt(context.Background(), "a lighthouse", "fog", ""))
	assert.Equal(t, models.AspectSquare, gotAspect)

	snap := f.session.Snapshot()
	require.NotNil(t, snap.OriginalImage)
	assert.Equal(t, "generated-image.jpg", snap.OriginalImage.File.Name)
	assert.Empty(t, snap.History)
}

func TestGenerateFromPrompt_FailureLeavesSessionEmpty(t *testing.T) {
	f := newFixture(t).withImage(t)
	f.gen.generate = func(string, string, models.AspectRatio) ([]byte, error) {
		return nil, errors.New("This API is only accessible to billed users at this time.")
	}

	err := f.session.GenerateFromPrompt(context.Background(), "a lighthouse", "", models.AspectLandscape)
	assert.Equal(t, "This feature requires a billed account setup. Please upgrade to Pro.", studio.UserMessage(err))
	assert.Nil(t, f.session.Snapshot().OriginalImage)
}

func TestUndoRedo(t *testing.T) {
	f := newFixture(t).withImage(t)

	moved, err := f.session.Undo()
	require.NoError(t, err)
	assert.False(t, moved)
	moved, err = f.session.Redo()
	require.NoError(t, err)
	assert.False(t, moved)

	f.session.SetPrompt("first")
	f.session.SetNegativePrompt("neg")
	require.NoError(t, f.session.ApplyEdit(context.Background()))
	f.session.SetPrompt("second")
	require.NoError(t, f.session.ApplyEdit(context.Background()))

	moved, err = f.session.Undo()
	require.NoError(t, err)
	assert.True(t, moved)
	snap := f.session.Snapshot()
	assert.Equal(t, "first", snap.Prompt)
	assert.True(t, snap.CanRedo)

	_, err = f.session.Undo()
	require.NoError(t, err)
	snap = f.session.Snapshot()
	assert.Equal(t, -1, snap.HistoryIndex)
	assert.Empty(t, snap.EditedImages)
	assert.Equal(t, "first", snap.Prompt)
	assert.Equal(t, "neg", snap.NegativePrompt)
	assert.False(t, snap.CanUndo)

	before := f.session.Snapshot()
	moved, err = f.session.Undo()
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, before, f.session.Snapshot())

	_, err = f.session.Redo()
	require.NoError(t, err)
	_, err = f.session.Redo()
	require.NoError(t, err)
	snap = f.session.Snapshot()
	assert.Equal(t, "second", snap.Prompt)
	assert.False(t, snap.CanRedo)
}

func TestNewEditAfterUndoTruncatesRedo(t *testing.T) {
	f := newFixture(t).withImage(t)
	for _, p := range []string{"a", "b", "c"} {
		f.session.SetPrompt(p)
		require.NoError(t, f.session.ApplyEdit(context.Background()))
	}
	_, err := f.session.Undo()
	require.NoError(t, err)
	_, err = f.session.Undo()
	require.NoError(t, err)

	f.session.SetPrompt("d")
	require.NoError(t, f.session.ApplyEdit(context.Background()))

	snap := f.session.Snapshot()
	require.Len(t, snap.History, 2)
	assert.Equal(t, "a", snap.History[0].Prompt)
	assert.Equal(t, "d", snap.History[1].Prompt)
	assert.False(t, snap.CanRedo)
}

func TestRevertTo(t *testing.T) {
	f := newFixture(t).withImage(t)
	for _, p := range []string{"a", "b"} {
		f.session.SetPrompt(p)
		require.NoError(t, f.session.ApplyEdit(context.Background()))
	}
	first := f.session.Snapshot().History[0]

	found, err := f.session.RevertTo(first.ID)
	require.NoError(t, err)
	assert.True(t, found)
	snap := f.session.Snapshot()
	assert.Equal(t, 0, snap.HistoryIndex)
	assert.Equal(t, "a", snap.Prompt)
	assert.Len(t, snap.History, 2)

	found, err = f.session.RevertTo("missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, f.session.Snapshot().HistoryIndex)
}

func TestSession_RejectsOverlappingOperations(t *testing.T) {
	f := newFixture(t).withImage(t)
	started := make(chan struct{})
	release := make(chan struct{})
	f.gen.edit = func(context.Context, int, editrequest.Request) (*models.EditResult, error) {
		close(started)
		<-release
		return &models.EditResult{ImageData: f.result, MimeType: "image/png"}, nil
	}
	f.session.SetPrompt("blue")

	done := make(chan error, 1)
	go func() { done <- f.session.ApplyEdit(context.Background()) }()
	<-started

	assert.True(t, f.session.Snapshot().Busy)
	assert.ErrorIs(t, f.session.ApplyEdit(context.Background()), studio.ErrBusy)
	_, err := f.session.Undo()
	assert.ErrorIs(t, err, studio.ErrBusy)
	assert.ErrorIs(t, f.session.SelectTool(studio.ToolMask), studio.ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, f.session.Snapshot().Busy)
	assert.Len(t, f.session.Snapshot().History, 1)
}

func TestSession_ResetDiscardsRunningOperation(t *testing.T) {
	f := newFixture(t).withImage(t)
	started := make(chan struct{})
	f.gen.edit = func(ctx context.Context, _ int, _ editrequest.Request) (*models.EditResult, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.session.SetPrompt("blue")

	done := make(chan error, 1)
	go func() { done <- f.session.ApplyEdit(context.Background()) }()
	<-started

	f.session.Reset()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, studio.ErrDiscarded)
	case <-time.After(time.Second):
		t.Fatal("operation was not cancelled by reset")
	}

	snap := f.session.Snapshot()
	assert.Nil(t, snap.OriginalImage)
	assert.Empty(t, snap.History)
	assert.Empty(t, snap.Error)
	assert.False(t, snap.Busy)
}

// Package studio holds the image-editing session of a workspace: the
// working image, the active tool, the prompt and the undo/redo history.
//
// A Session runs at most one operation at a time. An operation that
// overlaps a running one fails with ErrBusy instead of interleaving.
// Reset cancels the running operation and discards its result.
package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"creative-studio-backend/internal/editrequest"
	"creative-studio-backend/internal/history"
	"creative-studio-backend/internal/imageconv"
	"creative-studio-backend/internal/models"
)

// Generator is the generation backend a session drives.
type Generator interface {
	GenerateImage(ctx context.Context, prompt, negativePrompt string, aspect models.AspectRatio) ([]byte, error)
	EditImage(ctx context.Context, req editrequest.Request) (*models.EditResult, error)
	EnhanceImage(ctx context.Context, image editrequest.Payload) (*models.EditResult, error)
	RemoveBackground(ctx context.Context, image editrequest.Payload) (*models.EditResult, error)
}

// Notifier delivers transient notifications to the session's user. Notify
// must not block.
type Notifier interface {
	Notify(message string, kind models.NotificationType)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string, kind models.NotificationType)

func (f NotifierFunc) Notify(message string, kind models.NotificationType) { f(message, kind) }

const (
	// DefaultVariations is the number of variations requested when the
	// caller does not say.
	DefaultVariations = 3
	// MaxVariations bounds a single GenerateVariations call.
	MaxVariations = 4

	defaultOutpaintPrompt = "Continue the image naturally, filling in the masked area."
	erasePrompt           = "Erase masked area"
	enhanceLabel          = "4K Enhance"
	cutoutLabel           = "Remove background"

	emptyEditMessage       = "The model didn't return an image. Please try again."
	emptyGenerationMessage = "The model returned an empty response. Please try again."
	noVariationsMessage    = "Could not generate any variations."
	editSuccessMessage     = "Edit applied successfully!"
)

type Session struct {
	gen      Generator
	notifier Notifier
	owner    string
	now      func() time.Time

	// slot holds a token while an operation runs.
	slot chan struct{}

	mu             sync.Mutex
	epoch          uint64
	cancelOp       context.CancelFunc
	original       *models.OriginalImage
	edited         []models.EditedImage
	prompt         string
	negativePrompt string
	style          *models.StyleReference
	tool           Tool
	history        *history.Store
	loading        string
	lastErr        string
}

type SessionOption func(*Session)

func WithNotifier(n Notifier) SessionOption {
	return func(s *Session) { s.notifier = n }
}

// WithOwner tags the session's log entries with a user id.
func WithOwner(userID string) SessionOption {
	return func(s *Session) { s.owner = userID }
}

func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

func NewSession(gen Generator, opts ...SessionOption) *Session {
	s := &Session{
		gen:      gen,
		notifier: NotifierFunc(func(string, models.NotificationType) {}),
		now:      time.Now,
		slot:     make(chan struct{}, 1),
		tool:     noTool{},
		history:  history.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	OriginalImage  *models.OriginalImage  `json:"original_image"`
	EditedImages   []models.EditedImage   `json:"edited_images"`
	Prompt         string                 `json:"prompt"`
	NegativePrompt string                 `json:"negative_prompt"`
	StyleReference *models.StyleReference `json:"style_reference"`
	ActiveTool     ToolKind               `json:"active_tool"`
	HasMask        bool                   `json:"has_mask"`
	MagicCoords    *models.Point          `json:"magic_coords"`
	History        []models.HistoryState  `json:"history"`
	HistoryIndex   int                    `json:"history_index"`
	CanUndo        bool                   `json:"can_undo"`
	CanRedo        bool                   `json:"can_redo"`
	Busy           bool                   `json:"busy"`
	LoadingMessage string                 `json:"loading_message,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		EditedImages:   append([]models.EditedImage{}, s.edited...),
		Prompt:         s.prompt,
		NegativePrompt: s.negativePrompt,
		ActiveTool:     s.tool.Kind(),
		HasMask:        len(maskOf(s.tool)) > 0,
		MagicCoords:    magicCoordsOf(s.tool),
		History:        s.history.States(),
		HistoryIndex:   s.history.Position(),
		CanUndo:        s.history.CanUndo(),
		CanRedo:        s.history.CanRedo(),
		Busy:           len(s.slot) > 0,
		LoadingMessage: s.loading,
		Error:          s.lastErr,
	}
	if s.original != nil {
		o := *s.original
		snap.OriginalImage = &o
	}
	if s.style != nil {
		st := *s.style
		snap.StyleReference = &st
	}
	return snap
}

// EditedImages returns the currently displayed results.
func (s *Session) EditedImages() []models.EditedImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.EditedImage(nil), s.edited...)
}

// Original returns the working image, or nil when the session is empty.
func (s *Session) Original() *models.OriginalImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.original == nil {
		return nil
	}
	o := *s.original
	return &o
}

// Reset returns the session to the empty state. A running operation is
// cancelled and its result discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	if s.cancelOp != nil {
		s.cancelOp()
		s.cancelOp = nil
	}
	s.resetImageLocked()
	s.loading = ""
}

func (s *Session) resetImageLocked() {
	s.original = nil
	s.edited = nil
	s.lastErr = ""
	s.prompt = ""
	s.negativePrompt = ""
	s.style = nil
	s.tool = noTool{}
	s.history.Reset()
}

// SelectImage discards the current edit state and adopts file as the
// working image.
func (s *Session) SelectImage(file models.ImageFile) error {
	return s.exclusive(func() (*note, error) {
		if len(file.Data) == 0 || !imageconv.IsImage(file.Data) {
			return s.rejectLocked(inputError("Please upload a valid image file."))
		}
		s.resetImageLocked()
		s.adoptLocked(file)
		return &note{"Image uploaded successfully.", models.NotificationSuccess}, nil
	})
}

func (s *Session) adoptLocked(file models.ImageFile) {
	if !strings.HasPrefix(file.MimeType, "image/") {
		file.MimeType = imageconv.DetectMimeType(file.Data)
	}
	s.original = &models.OriginalImage{
		DataURL: imageconv.EncodeDataURL(file.MimeType, file.Data),
		File:    file,
	}
}

func (s *Session) SetPrompt(prompt string) {
	s.mu.Lock()
	s.prompt = prompt
	s.mu.Unlock()
}

func (s *Session) SetNegativePrompt(prompt string) {
	s.mu.Lock()
	s.negativePrompt = prompt
	s.mu.Unlock()
}

// AppendSuggestion adds a keyword to the prompt, comma separated.
func (s *Session) AppendSuggestion(suggestion string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = appendSuggestion(s.prompt, strings.TrimSpace(suggestion))
	return s.prompt
}

// SetStyleReference sets the style image used by later edits. A nil file
// clears it.
func (s *Session) SetStyleReference(file *models.ImageFile) error {
	s.mu.Lock()
	if file == nil {
		s.style = nil
		s.mu.Unlock()
		return nil
	}
	if len(file.Data) == 0 || !imageconv.IsImage(file.Data) {
		_, err := s.rejectLocked(inputError("The style reference must be an image."))
		s.mu.Unlock()
		return err
	}
	f := *file
	if !strings.HasPrefix(f.MimeType, "image/") {
		f.MimeType = imageconv.DetectMimeType(f.Data)
	}
	s.style = &models.StyleReference{DataURL: imageconv.EncodeDataURL(f.MimeType, f.Data), File: f}
	s.mu.Unlock()

	s.notifier.Notify("Style reference added.", models.NotificationInfo)
	return nil
}

// SelectTool activates kind with empty tool data, dropping the previous
// tool's mask or magic coordinate.
func (s *Session) SelectTool(kind ToolKind) error {
	t, err := newTool(kind)
	if err != nil {
		return inputError(fmt.Sprintf("Unknown tool %q.", kind))
	}
	return s.exclusive(func() (*note, error) {
		s.tool = t
		return nil, nil
	})
}

// SetMask attaches a painted mask to the active mask or erase tool.
func (s *Session) SetMask(mask []byte) error {
	return s.exclusive(func() (*note, error) {
		t, ok := withMask(s.tool, mask)
		if !ok {
			return nil, inputError("Select the mask or erase tool before painting a mask.")
		}
		s.tool = t
		return nil, nil
	})
}

func (s *Session) ClearMask() error {
	return s.exclusive(func() (*note, error) {
		s.tool, _ = withMask(s.tool, nil)
		return nil, nil
	})
}

// SetMagicCoords records the point picked with the magic tool. A nil point
// clears the pick.
func (s *Session) SetMagicCoords(p *models.Point) error {
	return s.exclusive(func() (*note, error) {
		if _, ok := s.tool.(magicTool); !ok {
			return nil, inputError("Select the magic tool before picking a location.")
		}
		if p != nil && !p.InRange() {
			return nil, inputError("Magic tool coordinates must be between 0 and 1.")
		}
		var coords *models.Point
		if p != nil {
			c := *p
			coords = &c
		}
		s.tool = magicTool{coords: coords}
		return nil, nil
	})
}

// Undo moves one step back in the history. It reports false when there is
// nothing to undo.
func (s *Session) Undo() (bool, error) {
	var moved bool
	err := s.exclusive(func() (*note, error) {
		if !s.history.Undo() {
			return nil, nil
		}
		moved = true
		s.restoreLocked()
		return &note{"Undo successful.", models.NotificationInfo}, nil
	})
	return moved, err
}

// Redo moves one step forward in the history. It reports false when there
// is nothing to redo.
func (s *Session) Redo() (bool, error) {
	var moved bool
	err := s.exclusive(func() (*note, error) {
		if !s.history.Redo() {
			return nil, nil
		}
		moved = true
		s.restoreLocked()
		return &note{"Redo successful.", models.NotificationInfo}, nil
	})
	return moved, err
}

// RevertTo jumps to the history entry with id. It reports false when no
// entry matches.
func (s *Session) RevertTo(id string) (bool, error) {
	var found bool
	err := s.exclusive(func() (*note, error) {
		if _, ok := s.history.JumpTo(id); !ok {
			return nil, nil
		}
		found = true
		s.restoreLocked()
		return &note{"Reverted to a previous state.", models.NotificationInfo}, nil
	})
	return found, err
}

// restoreLocked shows the history entry at the current position. Before
// the first entry there are no results and the prompts of the first entry
// are restored.
func (s *Session) restoreLocked() {
	if st, ok := s.history.Current(); ok {
		s.edited = append([]models.EditedImage(nil), st.Images...)
		s.prompt = st.Prompt
		s.negativePrompt = st.NegativePrompt
		return
	}
	s.edited = nil
	if first, ok := s.history.At(0); ok {
		s.prompt = first.Prompt
		s.negativePrompt = first.NegativePrompt
	}
}

// GenerateFromPrompt generates a new working image from text. On failure
// the session is left empty.
func (s *Session) GenerateFromPrompt(ctx context.Context, prompt, negativePrompt string, aspect models.AspectRatio) error {
	o, err := s.begin(ctx, "generate", "Generating your vision...")
	if err != nil {
		return err
	}
	defer o.end()

	if strings.TrimSpace(prompt) == "" {
		return o.fail(inputError("Please enter a prompt to generate an image."))
	}
	if aspect == "" {
		aspect = models.AspectSquare
	}
	if !aspect.Valid() {
		return o.fail(inputError(fmt.Sprintf("Unsupported aspect ratio %q.", aspect)))
	}

	s.mu.Lock()
	s.resetImageLocked()
	s.mu.Unlock()

	data, callErr := s.gen.GenerateImage(o.ctx, prompt, negativePrompt, aspect)

	s.mu.Lock()
	defer s.mu.Unlock()
	if o.staleLocked() {
		return ErrDiscarded
	}
	if callErr != nil {
		s.resetImageLocked()
		return o.failLocked(capabilityError(callErr))
	}
	if len(data) == 0 {
		s.resetImageLocked()
		return o.failLocked(emptyResult(emptyGenerationMessage))
	}

	s.adoptLocked(models.ImageFile{
		Name:     "generated-image.jpg",
		MimeType: imageconv.DetectMimeType(data),
		Data:     data,
	})
	o.notify("Image generated successfully.", models.NotificationSuccess)
	return nil
}

// ApplyEdit edits the working image with the session prompt.
func (s *Session) ApplyEdit(ctx context.Context) error {
	return s.applyEdit(ctx, "edit", nil)
}

// ApplyEditWithPrompt edits the working image with prompt instead of the
// session prompt.
func (s *Session) ApplyEditWithPrompt(ctx context.Context, prompt string) error {
	return s.applyEdit(ctx, "edit", func(string) string { return prompt })
}

// ApplyStyle appends a preset's fragment to the session prompt and edits
// with the result.
func (s *Session) ApplyStyle(ctx context.Context, styleID string) error {
	preset, ok := LookupStyle(styleID)
	if !ok {
		return inputError(fmt.Sprintf("Unknown style %q.", styleID))
	}
	return s.applyEdit(ctx, "style", func(current string) string {
		s.prompt = appendStyle(current, preset.Prompt)
		return s.prompt
	})
}

// applyEdit runs a mask or prompt edit. promptFn, called with mu held,
// picks the prompt from the current one.
func (s *Session) applyEdit(ctx context.Context, name string, promptFn func(current string) string) error {
	o, err := s.begin(ctx, name, "Applying your edit...")
	if err != nil {
		return err
	}
	defer o.end()

	s.mu.Lock()
	prompt := s.prompt
	if promptFn != nil {
		prompt = promptFn(prompt)
	}
	neg := s.negativePrompt
	mask := maskOf(s.tool)
	if s.original == nil || (strings.TrimSpace(prompt) == "" && len(mask) == 0) {
		defer s.mu.Unlock()
		return o.failLocked(inputError("Please provide a prompt or select an area to fill."))
	}
	if len(mask) > 0 && strings.TrimSpace(prompt) == "" {
		s.loading = "Applying Generative Fill..."
	}
	in := s.inputsLocked(prompt, neg)
	s.mu.Unlock()

	return o.edit(in, prompt, neg)
}

// GenerateVariations runs n edits one after another with the same inputs
// and shows every successful result. Failed attempts are skipped; the call
// fails only when no attempt produced an image.
func (s *Session) GenerateVariations(ctx context.Context, n int) error {
	o, err := s.begin(ctx, "variations", "Generating creative variations...")
	if err != nil {
		return err
	}
	defer o.end()

	if n < 1 || n > MaxVariations {
		return o.fail(inputError(fmt.Sprintf("Variation count must be between 1 and %d.", MaxVariations)))
	}

	s.mu.Lock()
	prompt, neg := s.prompt, s.negativePrompt
	if s.original == nil || strings.TrimSpace(prompt) == "" {
		defer s.mu.Unlock()
		return o.failLocked(inputError("Please provide an image and a prompt."))
	}
	in := s.inputsLocked(prompt, neg)
	s.mu.Unlock()

	req, err := editrequest.Build(in)
	if err != nil {
		return o.fail(buildError(err))
	}

	var (
		images  []models.EditedImage
		lastErr error
	)
	for i := 0; i < n && o.ctx.Err() == nil; i++ {
		o.setLoading(fmt.Sprintf("Generating variation %d of %d...", i+1, n))

		res, err := s.gen.EditImage(o.ctx, req)
		if err != nil {
			lastErr = err
			o.log().WithError(err).WithField("attempt", i+1).Warn("Variation attempt failed")
			continue
		}
		images = append(images, editedFrom(res)...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if o.staleLocked() {
		return ErrDiscarded
	}
	if err := o.ctx.Err(); err != nil {
		return o.failLocked(capabilityError(err))
	}

	s.edited = images
	if len(images) == 0 {
		if lastErr != nil {
			return o.failLocked(variationsError(lastErr))
		}
		return o.failLocked(emptyResult(noVariationsMessage))
	}
	s.pushLocked(images, prompt, neg)
	o.notify(fmt.Sprintf("%d variation(s) generated!", len(images)), models.NotificationSuccess)
	return nil
}

// PlaceMagicObject adds a described object at a normalized coordinate.
func (s *Session) PlaceMagicObject(ctx context.Context, objectPrompt string, coords models.Point) error {
	o, err := s.begin(ctx, "magic", "Placing the magic object...")
	if err != nil {
		return err
	}
	defer o.end()

	if strings.TrimSpace(objectPrompt) == "" {
		return o.fail(inputError("Please describe the object to place."))
	}

	s.mu.Lock()
	if s.original == nil {
		defer s.mu.Unlock()
		return o.failLocked(inputError("Please provide an image."))
	}
	prompt, neg := s.prompt, s.negativePrompt
	in := s.inputsLocked(prompt, neg)
	in.Magic = &editrequest.MagicRequest{ObjectPrompt: objectPrompt, Coords: coords}
	s.mu.Unlock()

	return o.edit(in, prompt, neg)
}

// ExpandCanvas outpaints a pre-expanded canvas. The result replaces the
// working image and starts a fresh history.
func (s *Session) ExpandCanvas(ctx context.Context, expandedDataURL, maskDataURL string) error {
	o, err := s.begin(ctx, "expand", "Expanding the canvas...")
	if err != nil {
		return err
	}
	defer o.end()

	expanded, expandedMime, err := imageconv.DecodeDataURL(expandedDataURL)
	if err != nil || !imageconv.IsImage(expanded) {
		return o.fail(inputError("The expanded canvas is not a valid image."))
	}
	mask, _, err := imageconv.DecodeDataURL(maskDataURL)
	if err != nil || len(mask) == 0 {
		return o.fail(inputError("The expansion mask is not a valid image."))
	}

	s.mu.Lock()
	if s.original == nil {
		defer s.mu.Unlock()
		return o.failLocked(inputError("Please provide an image."))
	}
	prompt := s.prompt
	if strings.TrimSpace(prompt) == "" {
		prompt = defaultOutpaintPrompt
	}
	neg := s.negativePrompt
	s.mu.Unlock()

	req, err := editrequest.Build(editrequest.Inputs{
		Image:          &editrequest.Payload{Data: expanded, MimeType: expandedMime},
		Prompt:         prompt,
		NegativePrompt: neg,
		Mask:           mask,
	})
	if err != nil {
		return o.fail(buildError(err))
	}
	res, callErr := s.gen.EditImage(o.ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if o.staleLocked() {
		return ErrDiscarded
	}
	if callErr != nil {
		return o.failLocked(capabilityError(callErr))
	}
	images := editedFrom(res)
	if len(images) == 0 {
		return o.failLocked(emptyResult(textOr(res, "Outpainting failed.")))
	}

	s.original = &models.OriginalImage{
		DataURL: images[0].DataURL,
		File: models.ImageFile{
			Name:     "outpainted.png",
			MimeType: mimeOf(res),
			Data:     res.ImageData,
		},
	}
	s.edited = images
	s.history.Reset()
	s.pushLocked(images, "", "")
	s.prompt = ""
	s.tool = noTool{}
	o.notify("Canvas expanded successfully!", models.NotificationSuccess)
	return nil
}

// Erase removes the masked content and fills the background.
func (s *Session) Erase(ctx context.Context) error {
	o, err := s.begin(ctx, "erase", "Erasing the selected area...")
	if err != nil {
		return err
	}
	defer o.end()

	s.mu.Lock()
	if len(maskOf(s.tool)) == 0 {
		defer s.mu.Unlock()
		return o.failLocked(inputError("Please mark an area to erase."))
	}
	if s.original == nil {
		defer s.mu.Unlock()
		return o.failLocked(inputError("Please provide an image."))
	}
	neg := s.negativePrompt
	in := s.inputsLocked(erasePrompt, neg)
	in.Erase = true
	s.mu.Unlock()

	return o.edit(in, erasePrompt, neg)
}

// EnhanceTo4K upscales the first displayed result.
func (s *Session) EnhanceTo4K(ctx context.Context) error {
	o, err := s.begin(ctx, "enhance", "Enhancing to 4K...")
	if err != nil {
		return err
	}
	defer o.end()

	s.mu.Lock()
	if len(s.edited) == 0 {
		defer s.mu.Unlock()
		return o.failLocked(inputError("There is no image to enhance."))
	}
	data, mime, err := imageconv.DecodeDataURL(s.edited[0].DataURL)
	neg := s.negativePrompt
	s.mu.Unlock()
	if err != nil {
		return o.fail(inputError("The current image could not be read."))
	}

	res, callErr := s.gen.EnhanceImage(o.ctx, editrequest.Payload{Data: data, MimeType: mime})

	s.mu.Lock()
	defer s.mu.Unlock()
	if o.staleLocked() {
		return ErrDiscarded
	}
	if callErr != nil {
		return o.failLocked(capabilityError(callErr))
	}
	images := editedFrom(res)
	if len(images) == 0 {
		return o.failLocked(emptyResult(textOr(res, "4K enhancement failed to return an image.")))
	}
	s.edited = images
	s.pushLocked(images, enhanceLabel, neg)
	o.notify("Image enhanced to 4K!", models.NotificationSuccess)
	return nil
}

// RemoveBackground cuts the main subject out of the working image.
func (s *Session) RemoveBackground(ctx context.Context) error {
	o, err := s.begin(ctx, "cutout", "Removing background...")
	if err != nil {
		return err
	}
	defer o.end()

	s.mu.Lock()
	if s.original == nil {
		defer s.mu.Unlock()
		return o.failLocked(inputError("Please provide an image."))
	}
	img := payloadOf(s.original.File)
	s.mu.Unlock()

	res, callErr := s.gen.RemoveBackground(o.ctx, img)
	return o.finishEdit(res, callErr, cutoutLabel, "")
}

func (s *Session) inputsLocked(prompt, negativePrompt string) editrequest.Inputs {
	img := payloadOf(s.original.File)
	in := editrequest.Inputs{
		Image:          &img,
		Prompt:         prompt,
		NegativePrompt: negativePrompt,
		Mask:           maskOf(s.tool),
	}
	if s.style != nil {
		ref := payloadOf(s.style.File)
		in.StyleReference = &ref
	}
	return in
}

func (s *Session) pushLocked(images []models.EditedImage, prompt, negativePrompt string) {
	s.history.Push(models.HistoryState{
		ID:             ulid.Make().String(),
		Images:         append([]models.EditedImage(nil), images...),
		Prompt:         prompt,
		NegativePrompt: negativePrompt,
		CreatedAt:      s.now(),
	})
}

// rejectLocked records a failed synchronous operation.
func (s *Session) rejectLocked(err *Error) (*note, error) {
	s.lastErr = err.Message
	return &note{err.Message, models.NotificationError}, err
}

type note struct {
	message string
	kind    models.NotificationType
}

// exclusive runs fn with mu held, unless an operation is running.
func (s *Session) exclusive(fn func() (*note, error)) error {
	select {
	case s.slot <- struct{}{}:
	default:
		return ErrBusy
	}
	defer func() { <-s.slot }()

	s.mu.Lock()
	n, err := fn()
	s.mu.Unlock()

	if n != nil {
		s.notifier.Notify(n.message, n.kind)
	}
	return err
}

// op is one running asynchronous operation.
type op struct {
	s      *Session
	ctx    context.Context
	cancel context.CancelFunc
	epoch  uint64
	name   string
	notes  []note
}

func (s *Session) begin(ctx context.Context, name, loading string) (*op, error) {
	select {
	case s.slot <- struct{}{}:
	default:
		return nil, ErrBusy
	}

	opCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelOp = cancel
	s.loading = loading
	s.lastErr = ""
	return &op{s: s, ctx: opCtx, cancel: cancel, epoch: s.epoch, name: name}, nil
}

func (o *op) end() {
	s := o.s
	s.mu.Lock()
	if !o.staleLocked() {
		s.loading = ""
		s.cancelOp = nil
	}
	s.mu.Unlock()

	o.cancel()
	<-s.slot

	for _, n := range o.notes {
		s.notifier.Notify(n.message, n.kind)
	}
}

func (o *op) staleLocked() bool {
	return o.s.epoch != o.epoch
}

func (o *op) setLoading(message string) {
	o.s.mu.Lock()
	if !o.staleLocked() {
		o.s.loading = message
	}
	o.s.mu.Unlock()
}

func (o *op) notify(message string, kind models.NotificationType) {
	o.notes = append(o.notes, note{message, kind})
}

func (o *op) log() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"user_id":   o.s.owner,
		"operation": o.name,
	})
}

func (o *op) fail(err *Error) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	if o.staleLocked() {
		return ErrDiscarded
	}
	return o.failLocked(err)
}

func (o *op) failLocked(err *Error) error {
	o.s.lastErr = err.Message
	o.notify(err.Message, models.NotificationError)

	entry := o.log().WithField("kind", err.Kind)
	if err.Err != nil {
		entry = entry.WithError(err.Err)
	}
	entry.Warn("Studio operation failed")
	return err
}

// edit builds and runs an edit request and applies its result.
func (o *op) edit(in editrequest.Inputs, prompt, negativePrompt string) error {
	req, err := editrequest.Build(in)
	if err != nil {
		return o.fail(buildError(err))
	}
	res, callErr := o.s.gen.EditImage(o.ctx, req)
	return o.finishEdit(res, callErr, prompt, negativePrompt)
}

// finishEdit shows the result of an edit-like call. Whatever the outcome,
// the mask and every tool but expand are dropped.
func (o *op) finishEdit(res *models.EditResult, callErr error, prompt, negativePrompt string) error {
	s := o.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.staleLocked() {
		return ErrDiscarded
	}

	s.tool = afterEdit(s.tool)
	if callErr != nil {
		return o.failLocked(capabilityError(callErr))
	}

	images := editedFrom(res)
	s.edited = images
	if len(images) == 0 {
		return o.failLocked(emptyResult(textOr(res, emptyEditMessage)))
	}
	s.pushLocked(images, prompt, negativePrompt)
	o.notify(editSuccessMessage, models.NotificationSuccess)
	return nil
}

func buildError(err error) *Error {
	switch {
	case errors.Is(err, editrequest.ErrNoImage):
		return inputError("Please provide an image.")
	case errors.Is(err, editrequest.ErrCoordinatesOutOfRange):
		return inputError("Magic tool coordinates must be between 0 and 1.")
	default:
		return &Error{Kind: KindInput, Message: err.Error(), Err: err}
	}
}

func payloadOf(f models.ImageFile) editrequest.Payload {
	return editrequest.Payload{Data: f.Data, MimeType: f.MimeType}
}

func mimeOf(res *models.EditResult) string {
	if strings.HasPrefix(res.MimeType, "image/") {
		return res.MimeType
	}
	return imageconv.DetectMimeType(res.ImageData)
}

// editedFrom converts a backend result into the displayed image list,
// empty when the result carries no image.
func editedFrom(res *models.EditResult) []models.EditedImage {
	if res == nil || len(res.ImageData) == 0 {
		return nil
	}
	return []models.EditedImage{{
		DataURL: imageconv.EncodeDataURL(mimeOf(res), res.ImageData),
		Text:    res.Text,
	}}
}

func textOr(res *models.EditResult, fallback string) string {
	if res != nil && strings.TrimSpace(res.Text) != "" {
		return res.Text
	}
	return fallback
}

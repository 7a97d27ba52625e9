package studio

import (
	"fmt"
	"sync"

	"creative-studio-backend/internal/models"
	"creative-studio-backend/internal/video"
)

// Workspace is everything one user works on: the image session, the video
// job and the mode that decides which of the two the client shows.
type Workspace struct {
	Session *Session
	Video   *video.Controller

	notifier Notifier

	mu   sync.Mutex
	mode models.AppMode
}

func NewWorkspace(session *Session, videoJobs *video.Controller, notifier Notifier) *Workspace {
	if notifier == nil {
		notifier = NotifierFunc(func(string, models.NotificationType) {})
	}
	return &Workspace{
		Session:  session,
		Video:    videoJobs,
		notifier: notifier,
		mode:     models.AppModeImage,
	}
}

func (w *Workspace) Mode() models.AppMode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// Reset clears the image session and the video job and returns to image
// mode.
func (w *Workspace) Reset() {
	w.clear()
	w.notifier.Notify("Workspace cleared.", models.NotificationInfo)
}

func (w *Workspace) clear() {
	w.Session.Reset()
	w.Video.Reset()

	w.mu.Lock()
	w.mode = models.AppModeImage
	w.mu.Unlock()
}

// SetMode resets the workspace and switches to mode.
func (w *Workspace) SetMode(mode models.AppMode) error {
	if mode != models.AppModeImage && mode != models.AppModeVideo {
		return inputError(fmt.Sprintf("Unknown mode %q.", mode))
	}
	w.Reset()

	w.mu.Lock()
	w.mode = mode
	w.mu.Unlock()
	return nil
}

// Close stops background work without notifying the user.
func (w *Workspace) Close() {
	w.clear()
}

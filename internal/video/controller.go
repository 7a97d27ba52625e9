// Package video drives a single asynchronous video-generation job per
// workspace: submit, poll until done, then fetch the bytes.
package video

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"creative-studio-backend/internal/models"
)

var (
	ErrEmptyPrompt = errors.New("Please enter a prompt to generate a video.")
	ErrNoVideoLink = errors.New("Video generation finished but no video link was found.")
	ErrTimeout     = errors.New("Video generation timed out. Please try again.")
)

// DefaultPollInterval is the wait between two status checks.
const DefaultPollInterval = 10 * time.Second

// Messages rotate while a job is generating, in order.
var Messages = []string{
	"Warming up the digital cameras...",
	"Teaching pixels to dance...",
	"Consulting with the muse of motion pictures...",
	"Stitching frames together with virtual thread...",
	"Rendering dreams into reality...",
	"Applying the final cinematic touches...",
	"The digital premiere is almost ready...",
}

// Backend is the long-running video capability.
type Backend interface {
	SubmitVideo(ctx context.Context, prompt string) (*models.VideoOperation, error)
	PollVideo(ctx context.Context, op *models.VideoOperation) (*models.VideoOperation, error)
	// FetchVideo downloads a finished video server-side so provider
	// credentials never reach the client.
	FetchVideo(ctx context.Context, uri string) ([]byte, error)
}

type Notifier interface {
	Notify(message string, kind models.NotificationType)
}

type Controller struct {
	backend  Backend
	notifier Notifier
	interval time.Duration
	timeout  time.Duration
	message  func(error) string
	owner    string

	mu     sync.Mutex
	job    uint64
	cancel context.CancelFunc
	state  models.VideoJob
	video  []byte
}

type Option func(*Controller)

// WithInterval sets the wait between status checks.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) { c.interval = d }
}

// WithTimeout fails a job still generating after d. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithErrorMessages sets how failures are turned into user-facing text.
func WithErrorMessages(fn func(error) string) Option {
	return func(c *Controller) { c.message = fn }
}

func WithOwner(userID string) Option {
	return func(c *Controller) { c.owner = userID }
}

func NewController(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend:  backend,
		interval: DefaultPollInterval,
		message:  func(err error) string { return err.Error() },
		state:    models.VideoJob{Status: models.VideoIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit starts a new job, abandoning the current one. It returns once the
// backend accepted the job; polling continues in the background.
func (c *Controller) Submit(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}

	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.job++
	id := c.job
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.state = models.VideoJob{Status: models.VideoGenerating, Message: Messages[0], Prompt: prompt}
	c.video = nil
	c.mu.Unlock()

	op, err := c.backend.SubmitVideo(ctx, prompt)
	if err != nil {
		c.fail(id, err)
		cancel()
		return err
	}

	c.log().WithField("operation", op.Name).Info("Video job submitted")
	go c.poll(ctx, cancel, id, op)
	return nil
}

func (c *Controller) poll(ctx context.Context, cancel context.CancelFunc, id uint64, op *models.VideoOperation) {
	defer cancel()

	var deadline <-chan time.Time
	if c.timeout > 0 {
		t := time.NewTimer(c.timeout)
		defer t.Stop()
		deadline = t.C
	}

	next := 1
	for {
		if op.Done {
			c.complete(ctx, id, op)
			return
		}

		c.setMessage(id, Messages[next%len(Messages)])
		next++

		polled, err := c.backend.PollVideo(ctx, op)
		if err != nil {
			if ctx.Err() == nil {
				c.fail(id, err)
			}
			return
		}
		op = polled

		wait := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			wait.Stop()
			return
		case <-deadline:
			wait.Stop()
			c.fail(id, ErrTimeout)
			return
		case <-wait.C:
		}
	}
}

func (c *Controller) complete(ctx context.Context, id uint64, op *models.VideoOperation) {
	if op.VideoURI == "" {
		c.fail(id, ErrNoVideoLink)
		return
	}
	data, err := c.backend.FetchVideo(ctx, op.VideoURI)
	if err != nil {
		if ctx.Err() == nil {
			c.fail(id, err)
		}
		return
	}

	c.mu.Lock()
	if c.job != id {
		c.mu.Unlock()
		return
	}
	c.state.Status = models.VideoDone
	c.state.Message = "Video generated!"
	c.state.HasVideo = true
	c.video = data
	c.cancel = nil
	c.mu.Unlock()

	c.log().WithField("bytes", len(data)).Info("Video job finished")
	c.notify("Video generated successfully!", models.NotificationSuccess)
}

func (c *Controller) fail(id uint64, err error) {
	msg := c.message(err)

	c.mu.Lock()
	if c.job != id {
		c.mu.Unlock()
		return
	}
	c.state.Status = models.VideoError
	c.state.Message = msg
	c.cancel = nil
	c.mu.Unlock()

	c.log().WithError(err).Warn("Video job failed")
	c.notify(msg, models.NotificationError)
}

func (c *Controller) setMessage(id uint64, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job == id {
		c.state.Message = msg
	}
}

// Reset stops the current job and returns to idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.job++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = models.VideoJob{Status: models.VideoIdle}
	c.video = nil
}

// Status returns the current job state.
func (c *Controller) Status() models.VideoJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Video returns the finished video bytes.
func (c *Controller) Video() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.video, c.video != nil
}

func (c *Controller) notify(msg string, kind models.NotificationType) {
	if c.notifier != nil {
		c.notifier.Notify(msg, kind)
	}
}

func (c *Controller) log() *logrus.Entry {
	return logrus.WithField("user_id", c.owner)
}

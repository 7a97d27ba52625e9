package models

import "time"

// ImageFile is the raw binary behind an image reference.
type ImageFile struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// OriginalImage is the working image of an editing session.
type OriginalImage struct {
	DataURL string    `json:"data_url"`
	File    ImageFile `json:"file"`
}

// EditedImage is a generation result together with the text the model
// returned alongside it.
type EditedImage struct {
	DataURL string `json:"data_url"`
	Text    string `json:"text"`
}

// StyleReference is an optional second image whose style is transferred
// onto the working image.
type StyleReference struct {
	DataURL string    `json:"data_url"`
	File    ImageFile `json:"file"`
}

// Point is a normalized image coordinate, both axes in [0,1].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// InRange reports whether both coordinates lie in [0,1].
func (p Point) InRange() bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

// HistoryState is one entry of the undo/redo history.
type HistoryState struct {
	ID             string        `json:"id"`
	Images         []EditedImage `json:"images"`
	Prompt         string        `json:"prompt"`
	NegativePrompt string        `json:"negative_prompt"`
	CreatedAt      time.Time     `json:"created_at"`
}

// EditResult is what the edit, enhance and cutout capabilities return.
// ImageData is empty when the model produced text only.
type EditResult struct {
	ImageData []byte
	MimeType  string
	Text      string
}

type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
	AspectStandard  AspectRatio = "4:3"
	AspectTall      AspectRatio = "3:4"
)

// Valid reports whether r is one of the supported aspect ratios.
func (r AspectRatio) Valid() bool {
	switch r {
	case AspectSquare, AspectLandscape, AspectPortrait, AspectStandard, AspectTall:
		return true
	}
	return false
}

type AppMode string

const (
	AppModeImage AppMode = "image"
	AppModeVideo AppMode = "video"
)

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationInfo    NotificationType = "info"
)

// Notification is a transient, user-facing message.
type Notification struct {
	ID        int64            `json:"id"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	CreatedAt time.Time        `json:"created_at"`
}

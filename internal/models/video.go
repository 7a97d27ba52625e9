package models

type VideoStatus string

const (
	VideoIdle       VideoStatus = "idle"
	VideoGenerating VideoStatus = "generating"
	VideoDone       VideoStatus = "done"
	VideoError      VideoStatus = "error"
)

// VideoOperation is the opaque handle of a long-running video job.
// VideoURI is set once Done is true and the job produced a video.
type VideoOperation struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	VideoURI string `json:"video_uri,omitempty"`
}

// VideoJob is the observable state of the current video generation.
type VideoJob struct {
	Status   VideoStatus `json:"status"`
	Message  string      `json:"message"`
	Prompt   string      `json:"prompt,omitempty"`
	HasVideo bool        `json:"has_video"`
}

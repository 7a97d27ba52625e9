package models

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type SignupRequest struct {
	Email    string `json:"email" binding:"required,email" example:"artist@example.com"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"artist@example.com"`
	Password string `json:"password" binding:"required"`
}

type ModeRequest struct {
	Mode AppMode `json:"mode" binding:"required" example:"image"`
}

type GenerateRequest struct {
	Prompt         string      `json:"prompt" binding:"required" example:"a lighthouse at dusk"`
	NegativePrompt string      `json:"negative_prompt,omitempty"`
	AspectRatio    AspectRatio `json:"aspect_ratio,omitempty" example:"16:9"`
}

// PromptRequest updates the prompt fields that are present.
type PromptRequest struct {
	Prompt         *string `json:"prompt,omitempty"`
	NegativePrompt *string `json:"negative_prompt,omitempty"`
}

type SuggestionRequest struct {
	Suggestion string `json:"suggestion" binding:"required" example:"cinematic lighting"`
}

// ImageDataRequest carries an image as a data URL.
type ImageDataRequest struct {
	DataURL string `json:"data_url" binding:"required"`
	Name    string `json:"name,omitempty"`
}

type ToolRequest struct {
	Tool string `json:"tool" binding:"required" example:"mask"`
}

type MaskRequest struct {
	Mask string `json:"mask" binding:"required"`
}

type CoordsRequest struct {
	X *float64 `json:"x" binding:"required" example:"0.5"`
	Y *float64 `json:"y" binding:"required" example:"0.5"`
}

type EditRequest struct {
	// Prompt overrides the session prompt for this edit only.
	Prompt *string `json:"prompt,omitempty"`
}

type VariationsRequest struct {
	Count int `json:"count" example:"3"`
}

type MagicRequest struct {
	ObjectPrompt string   `json:"object_prompt" binding:"required" example:"a red balloon"`
	X            *float64 `json:"x" binding:"required"`
	Y            *float64 `json:"y" binding:"required"`
}

type ExpandRequest struct {
	Image string `json:"image" binding:"required"`
	Mask  string `json:"mask" binding:"required"`
}

type ExportRequest struct {
	// Format is png, jpeg or webp. Empty keeps the image as is.
	Format string `json:"format,omitempty" example:"webp"`
}

type VideoRequest struct {
	Prompt string `json:"prompt" binding:"required" example:"waves crashing on a beach"`
}

type SetCreditsRequest struct {
	Credits *int `json:"credits" binding:"required" example:"50"`
}

type SetPlanRequest struct {
	Plan Plan `json:"plan" binding:"required" example:"pro"`
}

type ElevateRequest struct {
	Credential string `json:"credential" binding:"required"`
}

// Package gemini wraps the Google GenAI SDK for image generation (Imagen),
// image editing (Gemini image models) and long-running video generation
// (Veo).
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"creative-studio-backend/internal/editrequest"
	"creative-studio-backend/internal/models"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/"

	ImageModel = "imagen-4.0-generate-001"
	EditModel  = "gemini-2.5-flash-image-preview"
	VideoModel = "veo-2.0-generate-001"

	enhanceInstruction = "Upscale this image to 4K resolution. Enhance details, improve sharpness, and increase clarity to a professional standard. Do not change the content or artistic style of the image."
	cutoutInstruction  = "Expert photo editor: Identify the main subject and remove the background completely. Output must be a PNG with a transparent background. Do not alter the subject."

	emptyResponseText = "The model returned an empty response. Please try again."
)

var (
	// ErrNoImages is returned when image generation yields nothing.
	ErrNoImages = errors.New("The model did not return any images. Please try a different prompt.")
	// ErrNoVideo is returned when a video download comes back empty.
	ErrNoVideo = errors.New("The generated video could not be downloaded.")
)

type Client struct {
	genai *genai.Client
}

// NewClient builds a Gemini API client. An empty baseURL uses the public
// endpoint.
func NewClient(ctx context.Context, baseURL, apiKey string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: 2 * time.Minute},
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Client{genai: gc}, nil
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("gemini request failed with status %d", e.StatusCode)
}

// HTTPStatus returns the HTTP status code of the failed call.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// GenerateImage renders a single image from text. The negative prompt is
// folded into the prompt as an exclusion clause.
func (c *Client) GenerateImage(ctx context.Context, prompt, negativePrompt string, aspect models.AspectRatio) ([]byte, error) {
	if aspect == "" {
		aspect = models.AspectSquare
	}
	resp, err := c.genai.Models.GenerateImages(ctx, ImageModel, editrequest.WithExclusion(prompt, negativePrompt), &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    string(aspect),
		OutputMIMEType: "image/jpeg",
	})
	if err != nil {
		return nil, wrap("generate image", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil || len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return nil, ErrNoImages
	}
	return resp.GeneratedImages[0].Image.ImageBytes, nil
}

// EditImage sends the working image, then the style reference or the mask
// when present, then the instruction.
func (c *Client) EditImage(ctx context.Context, req editrequest.Request) (*models.EditResult, error) {
	parts := []*genai.Part{inline(req.Image)}
	switch {
	case req.StyleReference != nil:
		parts = append(parts, inline(*req.StyleReference))
	case req.Mask != nil:
		parts = append(parts, inline(*req.Mask))
	}
	parts = append(parts, genai.NewPartFromText(req.Instruction))

	res, err := c.generateContent(ctx, parts)
	if err != nil {
		return nil, wrap("edit image", err)
	}
	if len(res.ImageData) == 0 && res.Text == "" {
		res.Text = emptyResponseText
	}
	return res, nil
}

// EnhanceImage upscales image. A result without image data carries the
// model's explanation in Text.
func (c *Client) EnhanceImage(ctx context.Context, image editrequest.Payload) (*models.EditResult, error) {
	res, err := c.generateContent(ctx, []*genai.Part{inline(image), genai.NewPartFromText(enhanceInstruction)})
	if err != nil {
		return nil, wrap("enhance image", err)
	}
	if len(res.ImageData) > 0 && res.Text == "" {
		res.Text = "Image enhanced to 4K successfully."
	}
	return res, nil
}

// RemoveBackground cuts out the main subject onto a transparent background.
func (c *Client) RemoveBackground(ctx context.Context, image editrequest.Payload) (*models.EditResult, error) {
	res, err := c.generateContent(ctx, []*genai.Part{inline(image), genai.NewPartFromText(cutoutInstruction)})
	if err != nil {
		return nil, wrap("remove background", err)
	}
	if len(res.ImageData) > 0 && res.Text == "" {
		res.Text = "Background removed successfully."
	}
	return res, nil
}

// SubmitVideo starts a video generation and returns its operation handle.
func (c *Client) SubmitVideo(ctx context.Context, prompt string) (*models.VideoOperation, error) {
	op, err := c.genai.Models.GenerateVideosFromSource(ctx, VideoModel, &genai.GenerateVideosSource{Prompt: prompt}, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
	})
	if err != nil {
		return nil, wrap("submit video", err)
	}
	return toOperation(op)
}

// PollVideo refreshes the state of a video operation.
func (c *Client) PollVideo(ctx context.Context, op *models.VideoOperation) (*models.VideoOperation, error) {
	if op == nil || op.Name == "" {
		return nil, errors.New("operation name is required")
	}

	result, err := c.genai.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: op.Name}, nil)
	if err != nil {
		return nil, wrap("poll video operation", err)
	}
	if result.Name == "" {
		result.Name = op.Name
	}
	return toOperation(result)
}

// FetchVideo downloads a generated video with the server's API key.
func (c *Client) FetchVideo(ctx context.Context, uri string) ([]byte, error) {
	data, err := c.genai.Files.Download(ctx, genai.NewDownloadURIFromVideo(&genai.Video{URI: uri}), nil)
	if err != nil {
		return nil, wrap("download video", err)
	}
	if len(data) == 0 {
		return nil, ErrNoVideo
	}
	// Download does not check the status code; error bodies come back as data.
	if apiErr := errorBody(data); apiErr != nil {
		return nil, fmt.Errorf("failed to download video: %w", apiErr)
	}
	return data, nil
}

func toOperation(op *genai.GenerateVideosOperation) (*models.VideoOperation, error) {
	if op.Error != nil {
		return nil, operationError(op.Error)
	}
	result := &models.VideoOperation{Name: op.Name, Done: op.Done}
	if op.Response != nil {
		for _, v := range op.Response.GeneratedVideos {
			if v != nil && v.Video != nil && v.Video.URI != "" {
				result.VideoURI = v.Video.URI
				break
			}
		}
	}
	return result, nil
}

func operationError(raw map[string]any) *APIError {
	apiErr := &APIError{}
	if code, ok := raw["code"].(float64); ok {
		apiErr.StatusCode = int(code)
	}
	apiErr.Message, _ = raw["message"].(string)
	apiErr.Status, _ = raw["status"].(string)
	if apiErr.Message == "" {
		apiErr.Message = "video generation failed"
	}
	return apiErr
}

func (c *Client) generateContent(ctx context.Context, parts []*genai.Part) (*models.EditResult, error) {
	resp, err := c.genai.Models.GenerateContent(ctx, EditModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseModalities: []string{string(genai.ModalityImage), string(genai.ModalityText)},
		})
	if err != nil {
		return nil, err
	}

	result := &models.EditResult{}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return result, nil
	}
	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		switch {
		case p == nil:
		case p.InlineData != nil:
			result.ImageData = p.InlineData.Data
			result.MimeType = p.InlineData.MIMEType
		case p.Text != "":
			text.WriteString(p.Text)
		}
	}
	result.Text = text.String()
	return result, nil
}

// wrap converts SDK errors to *APIError so callers can read the status.
func wrap(action string, err error) error {
	var sdkErr genai.APIError
	if errors.As(err, &sdkErr) {
		err = &APIError{StatusCode: sdkErr.Code, Status: sdkErr.Status, Message: sdkErr.Message}
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

func errorBody(data []byte) *APIError {
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	var envelope struct {
		Error *genai.APIError `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error == nil {
		return nil
	}
	return &APIError{StatusCode: envelope.Error.Code, Status: envelope.Error.Status, Message: envelope.Error.Message}
}

func inline(p editrequest.Payload) *genai.Part {
	return genai.NewPartFromBytes(p.Data, p.MimeType)
}

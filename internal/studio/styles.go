package studio

import "strings"

// StylePreset is a named prompt fragment applied as a one-click edit.
type StylePreset struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

var stylePresets = []StylePreset{
	{ID: "anime", Name: "Anime", Prompt: "masterpiece, modern anime style, vibrant, cel-shaded, sharp lines, cinematic"},
	{ID: "claymation", Name: "Claymation", Prompt: "charming claymation style, stop-motion look, handcrafted, textured, detailed"},
	{ID: "cinematic", Name: "Cinematic", Prompt: "cinematic still, dramatic lighting, high detail, professional color grading, film grain"},
	{ID: "vintage", Name: "Vintage Film", Prompt: "vintage 1970s film photograph, grainy, warm tones, nostalgic, slight motion blur"},
	{ID: "sketch", Name: "Pencil Sketch", Prompt: "detailed pencil sketch, hand-drawn, artistic, cross-hatching, monochrome"},
	{ID: "pixel-art", Name: "Pixel Art", Prompt: "8-bit pixel art style, vibrant retro colors, detailed sprites, nostalgic gaming aesthetic"},
}

// PromptSuggestions are keywords a client offers for AppendSuggestion.
var PromptSuggestions = []string{
	"Photorealistic",
	"Cinematic Lighting",
	"4K",
	"Masterpiece",
	"Epic",
	"Fantasy Art",
	"Vibrant Colors",
	"Minimalist",
}

// StylePresets returns the preset catalog.
func StylePresets() []StylePreset {
	out := make([]StylePreset, len(stylePresets))
	copy(out, stylePresets)
	return out
}

// LookupStyle finds a preset by id.
func LookupStyle(id string) (StylePreset, bool) {
	for _, p := range stylePresets {
		if p.ID == id {
			return p, true
		}
	}
	return StylePreset{}, false
}

func appendStyle(prompt, fragment string) string {
	return strings.TrimSpace(prompt + " " + fragment)
}

func appendSuggestion(prompt, suggestion string) string {
	if prompt == "" {
		return suggestion
	}
	return prompt + ", " + suggestion
}

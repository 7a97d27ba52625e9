// Package editrequest turns the inputs of an editing session into a single
// instruction for the image-edit capability.
//
// Exactly one instruction applies per request. A style reference wins over
// a magic-tool placement, which wins over a mask; a plain prompt edit is the
// fallback. A negative prompt is appended as an exclusion clause to every
// kind of instruction.
package editrequest

import (
	"errors"
	"fmt"
	"strings"

	"creative-studio-backend/internal/models"
)

var (
	ErrNoImage               = errors.New("an image is required to build an edit request")
	ErrCoordinatesOutOfRange = errors.New("magic tool coordinates must be within [0,1]")
)

// Kind identifies which instruction a Request carries.
type Kind string

const (
	KindStyleTransfer   Kind = "style_transfer"
	KindObjectPlacement Kind = "object_placement"
	KindErase           Kind = "erase"
	KindGenerativeFill  Kind = "generative_fill"
	KindMaskedEdit      Kind = "masked_edit"
	KindPromptEdit      Kind = "prompt_edit"
)

// Payload is an inline image sent to the model.
type Payload struct {
	Data     []byte
	MimeType string
}

// MagicRequest places a described object at a normalized coordinate.
type MagicRequest struct {
	ObjectPrompt string
	Coords       models.Point
}

// Inputs are the session fields an edit request is built from.
type Inputs struct {
	Image          *Payload
	Prompt         string
	NegativePrompt string
	Mask           []byte
	StyleReference *Payload
	Magic          *MagicRequest
	Erase          bool
}

// Request is a normalized edit instruction. Mask and StyleReference are
// never both set.
type Request struct {
	Kind           Kind
	Image          Payload
	Mask           *Payload
	StyleReference *Payload
	Instruction    string
}

const maskMimeType = "image/png"

// Build maps in to exactly one edit instruction.
func Build(in Inputs) (Request, error) {
	if in.Image == nil || len(in.Image.Data) == 0 {
		return Request{}, ErrNoImage
	}

	prompt := in.Prompt
	exclusion := exclusionClause(in.NegativePrompt)
	constructed := prompt + exclusion

	req := Request{Image: *in.Image}

	switch {
	case in.StyleReference != nil && len(in.StyleReference.Data) > 0:
		ref := *in.StyleReference
		req.Kind = KindStyleTransfer
		req.StyleReference = &ref
		req.Instruction = fmt.Sprintf("You are an expert photo editor. The user has provided two images. "+
			"The first is the one to be edited. The second is a style reference. "+
			"Apply the artistic style from the reference image to the first image, guided by the user's prompt. "+
			"User's prompt: \"%s\"", constructed)

	case in.Magic != nil:
		if !in.Magic.Coords.InRange() {
			return Request{}, ErrCoordinatesOutOfRange
		}
		req.Kind = KindObjectPlacement
		req.Instruction = fmt.Sprintf("Expert photo editor: add a '%s' at normalized coordinates (x: %.2f, y: %.2f), "+
			"integrating it seamlessly. User's main prompt: \"%s\"",
			in.Magic.ObjectPrompt, in.Magic.Coords.X, in.Magic.Coords.Y, constructed)

	case len(in.Mask) > 0:
		req.Mask = &Payload{Data: in.Mask, MimeType: maskMimeType}
		switch {
		case in.Erase:
			req.Kind = KindErase
			req.Instruction = "Expert photo editor: Remove the object in the masked (white) area and realistically fill the background. " +
				"Do not alter the unmasked (black) area." + exclusion
		case strings.TrimSpace(prompt) == "":
			req.Kind = KindGenerativeFill
			req.Instruction = "Expert photo editor: This is a generative fill request. " +
				"Creatively and realistically fill the masked (white) area based on the surrounding context. " +
				"Do not alter the unmasked (black) area." + exclusion
		default:
			req.Kind = KindMaskedEdit
			req.Instruction = fmt.Sprintf("Expert photo editor: Apply the user's prompt ONLY to the masked (white) area. "+
				"Do not alter the unmasked (black) area. User's prompt: \"%s\"", constructed)
		}

	default:
		req.Kind = KindPromptEdit
		req.Instruction = constructed
	}

	return req, nil
}

func exclusionClause(negativePrompt string) string {
	neg := strings.TrimSpace(negativePrompt)
	if neg == "" {
		return ""
	}
	return fmt.Sprintf("\n\nIMPORTANT: Do NOT include the following elements: \"%s\".", neg)
}

// WithExclusion appends the negative-prompt clause used by every edit
// instruction to a text-to-image prompt.
func WithExclusion(prompt, negativePrompt string) string {
	prompt = strings.TrimSpace(prompt)
	neg := strings.TrimSpace(negativePrompt)
	if neg == "" {
		return prompt
	}
	return fmt.Sprintf("%s. IMPORTANT: Do NOT include the following elements: \"%s\".", prompt, neg)
}

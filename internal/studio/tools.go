package studio

import (
	"fmt"

	"creative-studio-backend/internal/models"
)

// ToolKind names the active editing tool.
type ToolKind string

const (
	ToolNone   ToolKind = "none"
	ToolMask   ToolKind = "mask"
	ToolMagic  ToolKind = "magic"
	ToolExpand ToolKind = "expand"
	ToolErase  ToolKind = "erase"
	ToolCutout ToolKind = "cutout"
)

// Tool is the active tool together with the data only that tool owns.
// Switching tools replaces the whole value, so a mask or a pending magic
// coordinate never outlives the tool it belongs to.
type Tool interface {
	Kind() ToolKind
	isTool()
}

type noTool struct{}

// maskTool paints the region a masked edit applies to.
type maskTool struct{ mask []byte }

// magicTool holds the coordinate picked for object placement, if any.
type magicTool struct{ coords *models.Point }

// expandTool's in-progress rectangle lives in the canvas client.
type expandTool struct{}

// eraseTool paints the region to remove.
type eraseTool struct{ mask []byte }

type cutoutTool struct{}

func (noTool) Kind() ToolKind     { return ToolNone }
func (maskTool) Kind() ToolKind   { return ToolMask }
func (magicTool) Kind() ToolKind  { return ToolMagic }
func (expandTool) Kind() ToolKind { return ToolExpand }
func (eraseTool) Kind() ToolKind  { return ToolErase }
func (cutoutTool) Kind() ToolKind { return ToolCutout }

func (noTool) isTool()     {}
func (maskTool) isTool()   {}
func (magicTool) isTool()  {}
func (expandTool) isTool() {}
func (eraseTool) isTool()  {}
func (cutoutTool) isTool() {}

// newTool returns kind's tool with empty per-tool data.
func newTool(kind ToolKind) (Tool, error) {
	switch kind {
	case ToolNone, "":
		return noTool{}, nil
	case ToolMask:
		return maskTool{}, nil
	case ToolMagic:
		return magicTool{}, nil
	case ToolExpand:
		return expandTool{}, nil
	case ToolErase:
		return eraseTool{}, nil
	case ToolCutout:
		return cutoutTool{}, nil
	default:
		return nil, fmt.Errorf("unknown tool %q", kind)
	}
}

// maskOf returns the active mask, or nil when the tool carries none.
func maskOf(t Tool) []byte {
	switch t := t.(type) {
	case maskTool:
		return t.mask
	case eraseTool:
		return t.mask
	default:
		return nil
	}
}

// withMask returns t carrying mask. Only painting tools accept a mask.
func withMask(t Tool, mask []byte) (Tool, bool) {
	switch t.(type) {
	case maskTool:
		return maskTool{mask: mask}, true
	case eraseTool:
		return eraseTool{mask: mask}, true
	default:
		return t, false
	}
}

func magicCoordsOf(t Tool) *models.Point {
	if m, ok := t.(magicTool); ok && m.coords != nil {
		p := *m.coords
		return &p
	}
	return nil
}

// afterEdit is the tool left once an edit finished: the expand tool stays
// active for further expansion, every other tool is dropped with its data.
func afterEdit(t Tool) Tool {
	if _, ok := t.(expandTool); ok {
		return t
	}
	return noTool{}
}

package avatar

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-avatar/common"
)

// SelectionKind tags what an instance wants drawn.
type SelectionKind int

const (
	// SelectionStatic means draw the static fallback image.
	SelectionStatic SelectionKind = iota

	// SelectionAnimated means draw Frame.
	SelectionAnimated
)

// String returns the lowercase name of the selection kind.
func (k SelectionKind) String() string {
	switch k {
	case SelectionStatic:
		return "static"
	case SelectionAnimated:
		return "animated"
	default:
		return fmt.Sprintf("SelectionKind(%d)", int(k))
	}
}

// Selection is the answer to one render query.
// Frame, Index and Phase are only meaningful when Kind is SelectionAnimated.
// Static and Size are always set so a renderer can fall back at any time.
type Selection struct {
	Kind   SelectionKind
	Key    Key
	Static common.StaticSource
	Size   common.Size
	Frame  common.Frame
	Index  int
	Phase  Phase
}

// IsAnimated reports whether the selection carries an animation frame.
func (s Selection) IsAnimated() bool {
	return s.Kind == SelectionAnimated
}

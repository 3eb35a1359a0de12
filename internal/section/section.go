// Package section models the reorderable sections of the side panel.
package section

import (
	"fmt"

	"github.com/starford/dddot/internal/bridge"
)

// DragKindSection tags drag items that carry a panel section.
const DragKindSection = "section"

// NoIndex marks an unknown drag or hover index.
const NoIndex = -1

// Button is an extra header button. Clicking it posts Message to the host.
type Button struct {
	Icon    string         `json:"icon"`
	Tooltip string         `json:"tooltip"`
	Message bridge.Message `json:"message"`
}

// Descriptor describes one tool section. ContainerID and ContentID are opaque
// element ids used by the rendering layer.
type Descriptor struct {
	Key          string   `json:"key"`
	Title        string   `json:"title"`
	HasView      bool     `json:"hasView"`
	ExtraButtons []Button `json:"extraButtons"`
	ContainerID  string   `json:"containerId"`
	ContentID    string   `json:"contentId"`
}

// ContainerID returns the element id of a tool's section container.
func ContainerID(key string) string {
	return fmt.Sprintf("dddot-%s-tool-container", key)
}

// ContentID returns the element id of a tool's section content.
func ContentID(key string) string {
	return fmt.Sprintf("dddot-%s-tool-content", key)
}

// DragItem is the descriptor exchanged while a section is dragged.
type DragItem struct {
	Kind  string     `json:"kind"`
	Tool  Descriptor `json:"tool"`
	Index int        `json:"index"`
}

// Rect is the vertical extent of an element in screen coordinates.
type Rect struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// MidY returns the screen-space vertical midpoint.
func (r Rect) MidY() float64 {
	return r.Top + (r.Bottom-r.Top)/2
}

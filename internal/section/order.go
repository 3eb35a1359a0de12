package section

import (
	"slices"
	"sort"
)

// OrderState holds the display order of the panel sections and the state of
// an in-progress drag. It is owned by the panel and not safe for concurrent use.
type OrderState struct {
	sections []Descriptor
	initial  []string

	dragIndex  int
	hoverIndex int
}

// NewOrderState keeps the tools that have a view and orders them by their
// position in defaultOrder. Tools missing from defaultOrder go last, keeping
// their input order.
func NewOrderState(tools []Descriptor, defaultOrder []string) *OrderState {
	rank := make(map[string]int, len(defaultOrder))
	for i, key := range defaultOrder {
		if _, dup := rank[key]; !dup {
			rank[key] = i
		}
	}
	position := func(key string) int {
		if i, ok := rank[key]; ok {
			return i
		}
		return len(defaultOrder)
	}

	var sections []Descriptor
	for _, t := range tools {
		if t.HasView {
			sections = append(sections, t)
		}
	}
	sort.SliceStable(sections, func(i, j int) bool {
		return position(sections[i].Key) < position(sections[j].Key)
	})

	s := &OrderState{sections: sections, dragIndex: NoIndex, hoverIndex: NoIndex}
	s.initial = s.Keys()
	return s
}

// Sections returns the sections in display order.
func (s *OrderState) Sections() []Descriptor {
	return slices.Clone(s.sections)
}

// Keys returns the section keys in display order.
func (s *OrderState) Keys() []string {
	keys := make([]string, len(s.sections))
	for i, d := range s.sections {
		keys[i] = d.Key
	}
	return keys
}

// Changed reports whether the order differs from the initial order.
func (s *OrderState) Changed() bool {
	return !slices.Equal(s.initial, s.Keys())
}

// Len returns the number of sections.
func (s *OrderState) Len() int {
	return len(s.sections)
}

// DragIndex returns the index of the dragged section, or NoIndex.
func (s *OrderState) DragIndex() int {
	return s.dragIndex
}

// HoverIndex returns the index of the section under the pointer, or NoIndex.
func (s *OrderState) HoverIndex() int {
	return s.hoverIndex
}

// BeginDrag marks the section at index as dragged and returns its drag item.
// The order is not changed.
func (s *OrderState) BeginDrag(index int) (DragItem, bool) {
	if !s.valid(index) {
		return DragItem{}, false
	}
	s.dragIndex = index
	s.hoverIndex = index
	return DragItem{Kind: DragKindSection, Tool: s.sections[index], Index: index}, true
}

// Hover handles the pointer moving over the section at hoverIndex while the
// section at dragIndex is dragged. The two are swapped only once the pointer
// has crossed the midpoint of the hovered section in the direction of travel:
// strictly below it when moving down, strictly above it when moving up; a
// pointer exactly on the midpoint keeps the order. After a swap the drag
// index follows the dragged section. Hover reports whether it swapped.
func (s *OrderState) Hover(dragIndex, hoverIndex int, pointerY float64, bounds Rect) bool {
	if !s.valid(dragIndex) || !s.valid(hoverIndex) {
		return false
	}
	s.hoverIndex = hoverIndex
	if dragIndex == hoverIndex {
		return false
	}

	mid := bounds.MidY()
	if dragIndex < hoverIndex && pointerY <= mid {
		return false
	}
	if dragIndex > hoverIndex && pointerY >= mid {
		return false
	}

	s.Swap(dragIndex, hoverIndex)
	s.dragIndex = hoverIndex
	return true
}

// HoverItem is Hover for a drag item; it updates item.Index after a swap.
func (s *OrderState) HoverItem(item *DragItem, hoverIndex int, pointerY float64, bounds Rect) bool {
	if item == nil || item.Kind != DragKindSection {
		return false
	}
	if !s.Hover(item.Index, hoverIndex, pointerY, bounds) {
		return false
	}
	item.Index = hoverIndex
	return true
}

// Swap exchanges the sections at i and j.
func (s *OrderState) Swap(i, j int) bool {
	if !s.valid(i) || !s.valid(j) || i == j {
		return false
	}
	s.sections[i], s.sections[j] = s.sections[j], s.sections[i]
	return true
}

// EndDrag clears the drag and hover indices. The order stays as last swapped.
func (s *OrderState) EndDrag() {
	s.dragIndex = NoIndex
	s.hoverIndex = NoIndex
}

// Reset makes the current order the baseline for Changed.
func (s *OrderState) Reset() {
	s.initial = s.Keys()
}

func (s *OrderState) valid(i int) bool {
	return i >= 0 && i < len(s.sections)
}

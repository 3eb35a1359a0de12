// Package linklist implements the ordered, id-deduplicated link collection
// the panel tools use for their rolling histories and shortcut lists.
package linklist

import (
	"encoding/json"
	"slices"

	"github.com/starford/dddot/internal/models"
)

// List is an ordered sequence of links with no two entries sharing an id.
// The zero value is an empty list ready for use. A List is owned by a single
// tool and is not safe for concurrent use.
type List struct {
	links []models.Link
}

// New returns a list holding links in order. Later duplicates of an id are dropped.
func New(links ...models.Link) *List {
	l := &List{}
	for _, link := range links {
		if l.indexOf(link.ID) >= 0 {
			continue
		}
		l.links = append(l.links, link)
	}
	return l
}

// Rehydrate rebuilds a list from its persisted JSON form. It never fails:
// records that cannot be decoded or have an unknown kind are dropped, and
// input that is not a JSON array yields an empty list.
func Rehydrate(data []byte) *List {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return &List{}
	}
	links := make([]models.Link, 0, len(raw))
	for _, r := range raw {
		link, ok := models.RehydrateLink(r)
		if !ok {
			continue
		}
		links = append(links, link)
	}
	return New(links...)
}

// Dehydrate returns the storage-safe form of the list in order.
func (l *List) Dehydrate() []models.Link {
	out := make([]models.Link, len(l.links))
	for i, link := range l.links {
		link.FinalTitle = ""
		out[i] = link
	}
	return out
}

// Links returns a copy of the current links.
func (l *List) Links() []models.Link {
	return slices.Clone(l.links)
}

// Len returns the number of links.
func (l *List) Len() int {
	return len(l.links)
}

// Contains reports whether a link with id is present.
func (l *List) Contains(id string) bool {
	return l.indexOf(id) >= 0
}

// InsertFront moves link to the front, replacing any existing entry with the same id.
func (l *List) InsertFront(link models.Link) {
	l.remove(link.ID)
	l.links = slices.Insert(l.links, 0, link)
}

// Append moves link to the back, replacing any existing entry with the same id.
func (l *List) Append(link models.Link) {
	l.remove(link.ID)
	l.links = append(l.links, link)
}

// Remove deletes the link with id and reports whether it was present.
func (l *List) Remove(id string) bool {
	return l.remove(id)
}

// Update merges patch into the link with id. It returns false when id is
// absent or the patch does not change anything, so callers can skip a
// redundant save and refresh.
func (l *List) Update(id string, patch models.LinkPatch) bool {
	i := l.indexOf(id)
	if i < 0 {
		return false
	}
	return patch.Apply(&l.links[i])
}

// Truncate keeps the first maxCount links. A negative count empties the list.
func (l *List) Truncate(maxCount int) {
	maxCount = max(maxCount, 0)
	if len(l.links) > maxCount {
		l.links = l.links[:maxCount:maxCount]
	}
}

func (l *List) remove(id string) bool {
	i := l.indexOf(id)
	if i < 0 {
		return false
	}
	l.links = slices.Delete(l.links, i, i+1)
	return true
}

func (l *List) indexOf(id string) int {
	return slices.IndexFunc(l.links, func(link models.Link) bool { return link.ID == id })
}

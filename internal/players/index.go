package players

import "github.com/pable/go-nfl-metrics/internal/model"

// Index maps external ids to internal player ids. It is built once per stage
// from the stored registry and never modified afterwards.
type Index struct {
	byExt map[string]int64
}

// NewIndex builds an Index over players. Players without an external id are
// not indexed.
func NewIndex(players []model.Player) *Index {
	idx := &Index{byExt: make(map[string]int64, len(players))}
	for _, p := range players {
		if p.ExternalID != "" {
			idx.byExt[p.ExternalID] = p.ID
		}
	}
	return idx
}

// Lookup returns the internal id registered for ext.
func (i *Index) Lookup(ext string) (int64, bool) {
	if ext == "" {
		return 0, false
	}
	id, ok := i.byExt[ext]
	return id, ok
}

// Len returns the number of indexed players.
func (i *Index) Len() int { return len(i.byExt) }

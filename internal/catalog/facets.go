package catalog

import "slices"

type FacetKey string

const (
	FacetGenres       FacetKey = "genres"
	FacetPlatforms    FacetKey = "platforms"
	FacetModes        FacetKey = "modes"
	FacetPerspectives FacetKey = "perspectives"
	FacetYears        FacetKey = "years"
	FacetRating       FacetKey = "rating"
)

type Option struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// Facet is one filter group of the search screen. Checkbox facets carry
// Options, range facets carry Bounds.
type Facet struct {
	Key     FacetKey `json:"key"`
	Title   string   `json:"title"`
	Options []Option `json:"options,omitempty"`
	Bounds  *Range   `json:"bounds,omitempty"`
}

var facets = []Facet{
	{Key: FacetGenres, Title: "Genres", Options: []Option{
		{30, "Pinball"}, {31, "Adventure"}, {32, "Indie"}, {33, "Arcade"},
		{34, "Visual Novel"}, {35, "Card & Board Game"}, {36, "MOBA"},
		{2, "Point-and-click"}, {4, "Fighting"}, {5, "Shooter"}, {7, "Music"},
		{8, "Platform"}, {9, "Puzzle"}, {10, "Racing"}, {11, "RTS"}, {12, "RPG"},
		{13, "Simulator"}, {14, "Sport"}, {15, "Strategy"}, {16, "TBS"},
		{17, "Tactical"}, {18, "Hack and slash"}, {26, "Quiz/Trivia"},
	}},
	{Key: FacetPlatforms, Title: "Platforms", Options: []Option{
		{14, "Mac"}, {6, "PC"}, {3, "Linux"}, {167, "PS5"}, {169, "Xbox Series"},
		{49, "Xbox One"}, {48, "PS4"}, {130, "Switch"}, {46, "PS3"}, {45, "Xbox 360"},
	}},
	{Key: FacetModes, Title: "Game Modes", Options: []Option{
		{1, "Singleplayer"}, {2, "Multiplayer"}, {3, "Co-operative"}, {4, "Split screen"},
	}},
	{Key: FacetPerspectives, Title: "Player Perspective", Options: []Option{
		{1, "First-person"}, {2, "Third-person"}, {3, "Text"}, {4, "Side view"},
		{5, "VR"}, {6, "Bird view / Isometric"}, {7, "Auditory"},
	}},
	{Key: FacetYears, Title: "Release Year", Bounds: &Range{From: 1980, To: 2025}},
	{Key: FacetRating, Title: "Rating", Bounds: &Range{From: 0, To: 100}},
}

// Facets returns the filter groups offered by the search screen.
func Facets() []Facet {
	out := make([]Facet, len(facets))
	for i, f := range facets {
		out[i] = f
		out[i].Options = slices.Clone(f.Options)
		if f.Bounds != nil {
			b := *f.Bounds
			out[i].Bounds = &b
		}
	}
	return out
}

// FacetByKey looks up a filter group.
func FacetByKey(key FacetKey) (Facet, bool) {
	for _, f := range Facets() {
		if f.Key == key {
			return f, true
		}
	}
	return Facet{}, false
}

func toggle(ids []int, id int) []int {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(slices.Clone(ids), i, i+1)
	}
	return append(slices.Clone(ids), id)
}

// Toggle selects id in a checkbox facet, or deselects it when it is already
// selected. Range facets are left untouched.
func (f FilterSpec) Toggle(key FacetKey, id int) FilterSpec {
	out := f
	switch key {
	case FacetGenres:
		out.GenreIDs = toggle(f.GenreIDs, id)
	case FacetPlatforms:
		out.PlatformIDs = toggle(f.PlatformIDs, id)
	case FacetModes:
		out.ModeIDs = toggle(f.ModeIDs, id)
	case FacetPerspectives:
		out.PerspectiveIDs = toggle(f.PerspectiveIDs, id)
	}
	return out
}

// WithSort applies a sort selection: picking the active field flips the
// direction, picking a new field starts descending.
func (f FilterSpec) WithSort(field SortField) FilterSpec {
	out := f.Normalize()
	if out.Sort == field {
		out.Direction = out.Direction.Flip()
		return out
	}
	out.Sort = field
	out.Direction = SortDesc
	return out
}

// WithDirectionFlipped reverses the sort direction.
func (f FilterSpec) WithDirectionFlipped() FilterSpec {
	out := f.Normalize()
	out.Direction = out.Direction.Flip()
	return out
}

// Reset clears every filter but keeps the search text.
func (f FilterSpec) Reset() FilterSpec {
	out := DefaultFilterSpec()
	out.Query = f.Query
	return out
}

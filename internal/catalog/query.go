package catalog

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// PageSize is the number of games requested per search page.
const PageSize = 15

// Field projections for the different views.
const (
	searchFields  = "name, genres.name, platforms.name, cover.image_id, total_rating, rating_count, first_release_date, game_type"
	listFields    = "name, cover.image_id, total_rating, rating_count, first_release_date, platforms.name, genres.name"
	libraryFields = "name, cover.image_id, total_rating, first_release_date, platforms.name, genres.name"
	detailsFields = "id,name,summary,storyline,genres.name,platforms.name,first_release_date," +
		"release_dates.human,involved_companies.company.name,involved_companies.developer," +
		"screenshots.image_id,cover.image_id,total_rating,rating_count," +
		"themes.name,game_modes.name,player_perspectives.name,game_engines.name," +
		"similar_games.name,similar_games.cover.image_id,similar_games.genres.name,similar_games.total_rating," +
		"collections.name"
)

type SortField string

const (
	SortRelevance   SortField = "relevance"
	SortRating      SortField = "rating"
	SortName        SortField = "name"
	SortReleaseDate SortField = "release_date"
	SortPopularity  SortField = "popularity"
)

// sortColumns maps sort fields to catalog field names. Relevance has no
// column: the catalog orders by relevance on its own.
var sortColumns = map[SortField]string{
	SortRating:      "total_rating",
	SortName:        "name",
	SortReleaseDate: "first_release_date",
	SortPopularity:  "rating_count",
}

func ParseSortField(s string) (SortField, bool) {
	f := SortField(strings.ToLower(strings.TrimSpace(s)))
	if f == SortRelevance {
		return f, true
	}
	_, ok := sortColumns[f]
	return f, ok
}

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

func ParseSortDirection(s string) (SortDirection, bool) {
	switch d := SortDirection(strings.ToLower(strings.TrimSpace(s))); d {
	case SortAsc, SortDesc:
		return d, true
	default:
		return "", false
	}
}

func (d SortDirection) Flip() SortDirection {
	if d == SortAsc {
		return SortDesc
	}
	return SortAsc
}

// Range is an inclusive integer range.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (r Range) ordered() Range {
	if r.From > r.To {
		return Range{From: r.To, To: r.From}
	}
	return r
}

// Default bounds of the rating and release-year filters.
var (
	DefaultRatingRange = Range{From: 0, To: 100}
	DefaultYearRange   = Range{From: 1947, To: 2030}
)

// FilterSpec describes one search: free text, facet selections, ranges and
// sort. It is treated as an immutable value; edits produce a new spec.
type FilterSpec struct {
	Query          string        `json:"query"`
	GenreIDs       []int         `json:"genre_ids,omitempty"`
	PlatformIDs    []int         `json:"platform_ids,omitempty"`
	ModeIDs        []int         `json:"mode_ids,omitempty"`
	PerspectiveIDs []int         `json:"perspective_ids,omitempty"`
	Rating         Range         `json:"rating"`
	Years          Range         `json:"years"`
	Sort           SortField     `json:"sort"`
	Direction      SortDirection `json:"direction"`
}

// DefaultFilterSpec is the spec a fresh search screen starts from.
func DefaultFilterSpec() FilterSpec {
	return FilterSpec{
		Rating:    DefaultRatingRange,
		Years:     DefaultYearRange,
		Sort:      SortRelevance,
		Direction: SortDesc,
	}
}

// Normalize returns a copy with id selections sorted and de-duplicated,
// ranges ordered and an empty sort replaced by relevance/desc.
func (f FilterSpec) Normalize() FilterSpec {
	out := f
	out.GenreIDs = idSet(f.GenreIDs)
	out.PlatformIDs = idSet(f.PlatformIDs)
	out.ModeIDs = idSet(f.ModeIDs)
	out.PerspectiveIDs = idSet(f.PerspectiveIDs)
	out.Rating = f.Rating.ordered()
	out.Years = f.Years.ordered()
	if out.Sort == "" {
		out.Sort = SortRelevance
	}
	if out.Direction == "" {
		out.Direction = SortDesc
	}
	return out
}

// Equal compares two specs treating the id selections as sets.
func (f FilterSpec) Equal(o FilterSpec) bool {
	a, b := f.Normalize(), o.Normalize()
	return a.Query == b.Query &&
		slices.Equal(a.GenreIDs, b.GenreIDs) &&
		slices.Equal(a.PlatformIDs, b.PlatformIDs) &&
		slices.Equal(a.ModeIDs, b.ModeIDs) &&
		slices.Equal(a.PerspectiveIDs, b.PerspectiveIDs) &&
		a.Rating == b.Rating &&
		a.Years == b.Years &&
		a.Sort == b.Sort &&
		a.Direction == b.Direction
}

func idSet(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// YearBounds converts a year range into UTC epoch seconds: Jan 1 00:00:00 of
// the first year and Dec 31 23:59:59 of the last.
func YearBounds(from, to int) (start, end int64) {
	start = time.Date(from, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	end = time.Date(to, time.December, 31, 23, 59, 59, 0, time.UTC).Unix()
	return start, end
}

// statement accumulates `clause;` parts of a catalog query.
type statement []string

func (s *statement) add(format string, args ...any) {
	*s = append(*s, fmt.Sprintf(format, args...)+";")
}

func (s statement) String() string {
	return strings.Join(s, " ")
}

func joinIDs[T int | int64](ids []T) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprint(id))
	}
	return strings.Join(parts, ", ")
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// anyOrNull matches items carrying any of ids, or no value at all, so that
// missing catalog data never hard-excludes a game.
func anyOrNull(field string, ids []int) string {
	return fmt.Sprintf("(%s = (%s) | %s = null)", field, joinIDs(ids), field)
}

// BuildSearchQuery renders a filter spec and page number into the catalog
// query language. It is pure: equal inputs give byte-identical output.
func BuildSearchQuery(spec FilterSpec, page int) string {
	spec = spec.Normalize()
	if page < 0 {
		page = 0
	}

	var q statement
	q.add("fields %s", searchFields)
	q.add("limit %d", PageSize)
	q.add("offset %d", page*PageSize)

	text := strings.TrimSpace(spec.Query)
	if text != "" {
		q.add("search %s", quote(text))
	}

	var where []string
	facets := []struct {
		field string
		ids   []int
	}{
		{"genres", spec.GenreIDs},
		{"platforms", spec.PlatformIDs},
		{"game_modes", spec.ModeIDs},
		{"player_perspectives", spec.PerspectiveIDs},
	}
	for _, f := range facets {
		if len(f.ids) > 0 {
			where = append(where, anyOrNull(f.field, f.ids))
		}
	}

	where = append(where, fmt.Sprintf("(total_rating >= %d & total_rating <= %d | total_rating = null)",
		spec.Rating.From, spec.Rating.To))

	start, end := YearBounds(spec.Years.From, spec.Years.To)
	where = append(where, fmt.Sprintf("(first_release_date = null | (first_release_date >= %d & first_release_date <= %d))",
		start, end))

	q.add("where %s", strings.Join(where, " & "))

	// a free-text search is ordered by relevance, so it overrides any sort
	if column, ok := sortColumns[spec.Sort]; ok && text == "" {
		q.add("sort %s %s", column, spec.Direction)
	}

	return q.String()
}

// Section is one of the home feed carousels.
type Section string

const (
	SectionPopular     Section = "popular"
	SectionNewReleases Section = "new_releases"
	SectionTopRated    Section = "top_rated"
	SectionUpcoming    Section = "upcoming"
)

// Sections lists the home feed carousels in display order.
var Sections = []Section{SectionPopular, SectionNewReleases, SectionTopRated, SectionUpcoming}

// SectionPageSize is the page size of the home feed carousels.
const SectionPageSize = 10

// SectionQuery renders the query for one page of a home feed section.
// now decides what counts as released.
func SectionQuery(section Section, page int, now time.Time) (string, error) {
	conditions := []string{"cover != null", "first_release_date != null"}
	var sort string
	switch section {
	case SectionPopular:
		sort = "rating_count desc"
	case SectionNewReleases:
		sort = "first_release_date desc"
		conditions = append(conditions, fmt.Sprintf("first_release_date <= %d", now.Unix()))
	case SectionTopRated:
		sort = "total_rating desc"
	case SectionUpcoming:
		sort = "first_release_date asc"
		conditions = append(conditions, fmt.Sprintf("first_release_date > %d", now.Unix()))
	default:
		return "", fmt.Errorf("unknown section %q", section)
	}
	if page < 0 {
		page = 0
	}

	var q statement
	q.add("fields %s", listFields)
	q.add("sort %s", sort)
	q.add("limit %d", SectionPageSize)
	q.add("offset %d", page*SectionPageSize)
	q.add("where %s", strings.Join(conditions, " & "))
	return q.String(), nil
}

// IDsQuery fetches fresh catalog records for the given game ids, typically
// the ids of a user's library.
func IDsQuery(ids []int64) string {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var q statement
	q.add("fields %s", libraryFields)
	q.add("where id = (%s)", joinIDs(ids))
	q.add("limit %d", len(ids))
	return q.String()
}

// RecommendationQuery lists the best rated games of a genre.
func RecommendationQuery(genre string, limit int) string {
	var q statement
	q.add("fields %s", libraryFields)
	q.add("where genres.name = %s & cover != null & first_release_date != null", quote(genre))
	q.add("sort total_rating desc")
	q.add("limit %d", limit)
	return q.String()
}

// DetailsQuery fetches everything the details view shows for one game.
func DetailsQuery(id int64) string {
	var q statement
	q.add("fields %s", detailsFields)
	q.add("where id = %d", id)
	return q.String()
}

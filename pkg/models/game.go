package models

import "fmt"

// CoverImageURL is the catalog image CDN template; the size and image id are
// substituted in.
const CoverImageURL = "https://images.igdb.com/igdb/image/upload/t_%s/%s.jpg"

type Named struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
}

type Image struct {
	ImageID string `json:"image_id"`
}

type ReleaseDate struct {
	Human string `json:"human,omitempty"`
}

// Game is the catalog summary record returned by search and list queries.
// Every field except the id may be missing in the catalog.
type Game struct {
	ID               int64         `json:"id"`
	Name             string        `json:"name,omitempty"`
	Genres           []Named       `json:"genres,omitempty"`
	Platforms        []Named       `json:"platforms,omitempty"`
	Cover            *Image        `json:"cover,omitempty"`
	TotalRating      *float64      `json:"total_rating,omitempty"`
	RatingCount      *int          `json:"rating_count,omitempty"`
	FirstReleaseDate *int64        `json:"first_release_date,omitempty"` // unix seconds
	GameType         *int          `json:"game_type,omitempty"`
	ReleaseDates     []ReleaseDate `json:"release_dates,omitempty"`
}

// CoverURL renders the cover image URL at the given size ("cover_big",
// "thumb", ...). It returns "" when the game has no cover.
func (g Game) CoverURL(size string) string {
	if g.Cover == nil || g.Cover.ImageID == "" {
		return ""
	}
	if size == "" {
		size = "cover_big"
	}
	return fmt.Sprintf(CoverImageURL, size, g.Cover.ImageID)
}

// GenreNames returns the names of the game's genres in catalog order.
func (g Game) GenreNames() []string {
	out := make([]string, 0, len(g.Genres))
	for _, genre := range g.Genres {
		out = append(out, genre.Name)
	}
	return out
}

// Owned converts a catalog record into a library entry with the given state.
func (g Game) Owned(status PlayState) OwnedGame {
	owned := OwnedGame{GameID: g.ID, Name: g.Name, Status: status}
	if u := g.CoverURL("cover_big"); u != "" {
		owned.CoverURL = &u
	}
	return owned
}

type InvolvedCompany struct {
	Company   Named `json:"company"`
	Developer *bool `json:"developer,omitempty"`
}

// GameDetails is the full record used by the details view.
type GameDetails struct {
	ID                 int64             `json:"id"`
	Name               string            `json:"name,omitempty"`
	Summary            string            `json:"summary,omitempty"`
	Storyline          string            `json:"storyline,omitempty"`
	ReleaseDates       []ReleaseDate     `json:"release_dates,omitempty"`
	Genres             []Named           `json:"genres,omitempty"`
	Cover              *Image            `json:"cover,omitempty"`
	TotalRating        *float64          `json:"total_rating,omitempty"`
	RatingCount        *int              `json:"rating_count,omitempty"`
	AggregatedRating   *float64          `json:"aggregated_rating,omitempty"`
	Screenshots        []Image           `json:"screenshots,omitempty"`
	Platforms          []Named           `json:"platforms,omitempty"`
	InvolvedCompanies  []InvolvedCompany `json:"involved_companies,omitempty"`
	GameModes          []Named           `json:"game_modes,omitempty"`
	PlayerPerspectives []Named           `json:"player_perspectives,omitempty"`
	Themes             []Named           `json:"themes,omitempty"`
	Collections        []Named           `json:"collections,omitempty"`
	GameEngines        []Named           `json:"game_engines,omitempty"`
	FirstReleaseDate   *int64            `json:"first_release_date,omitempty"`
	SimilarGames       []Game            `json:"similar_games,omitempty"`
}

// Developers lists the companies flagged as developers.
func (d GameDetails) Developers() []string {
	var out []string
	for _, ic := range d.InvolvedCompanies {
		if ic.Developer != nil && *ic.Developer {
			out = append(out, ic.Company.Name)
		}
	}
	return out
}

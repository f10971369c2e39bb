package models

import (
	"slices"
	"strings"
	"time"
)

// PlayState is the play status a user tags an owned game with.
// The empty value means "not set" and is left untouched by merge writes.
type PlayState string

const (
	PlayStateUnspecified PlayState = "UNSPECIFIED"
	PlayStateWantToPlay  PlayState = "WANT_TO_PLAY"
	PlayStatePlaying     PlayState = "PLAYING"
	PlayStateCompleted   PlayState = "COMPLETED"
)

// PlayStates lists every valid state in display order.
var PlayStates = []PlayState{
	PlayStateUnspecified,
	PlayStateWantToPlay,
	PlayStatePlaying,
	PlayStateCompleted,
}

// ParsePlayState accepts the canonical names plus the spaced, dashed and
// lower-case spellings users type on the command line.
func ParsePlayState(s string) (PlayState, bool) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	switch key {
	case "UNSPECIFIED", "NONE":
		return PlayStateUnspecified, true
	case "WANT_TO_PLAY", "WANTTOPLAY", "WISHLIST", "WISH_LIST", "BACKLOG":
		return PlayStateWantToPlay, true
	case "PLAYING":
		return PlayStatePlaying, true
	case "COMPLETED", "DONE", "FINISHED":
		return PlayStateCompleted, true
	default:
		return "", false
	}
}

func (s PlayState) Valid() bool {
	return slices.Contains(PlayStates, s)
}

func (s PlayState) String() string {
	if s == "" {
		return string(PlayStateUnspecified)
	}
	return string(s)
}

// OwnedGame is one entry of a user's library, keyed by the catalog game id.
type OwnedGame struct {
	GameID    int64     `json:"gameId"`
	Name      string    `json:"name"`
	CoverURL  *string   `json:"coverUrl,omitempty"`
	Status    PlayState `json:"status"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// MergeInto applies the fields set on g over base. Empty name, nil cover and
// empty status keep the values already stored.
func (g OwnedGame) MergeInto(base OwnedGame) OwnedGame {
	out := base
	out.GameID = g.GameID
	if g.Name != "" {
		out.Name = g.Name
	}
	if g.CoverURL != nil {
		cover := *g.CoverURL
		out.CoverURL = &cover
	}
	if g.Status != "" {
		out.Status = g.Status
	}
	return out
}

// GameIDs projects entries to their ids, preserving order.
func GameIDs(games []OwnedGame) []int64 {
	ids := make([]int64, 0, len(games))
	for _, g := range games {
		ids = append(ids, g.GameID)
	}
	return ids
}

// UserStats summarises a library for the home screen.
type UserStats struct {
	Total       int            `json:"total"`
	WantToPlay  int            `json:"want_to_play"`
	Playing     int            `json:"playing"`
	Completed   int            `json:"completed"`
	GenreCounts map[string]int `json:"genre_counts"`
}

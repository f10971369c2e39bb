package sync

import (
	"time"

	"gamevault/pkg/models"
)

const (
	EventLibraryUpdated = "library.updated"
	EventLibraryDeleted = "library.deleted"
)

// LibraryEvent announces a change to a user's cloud library.
type LibraryEvent struct {
	Type   string           `json:"type"`
	UserID string           `json:"user_id"`
	GameID int64            `json:"game_id"`
	Name   string           `json:"name,omitempty"`
	Status models.PlayState `json:"status,omitempty"`
	At     time.Time        `json:"at"`
}

func UpdatedEvent(userID string, g models.OwnedGame) LibraryEvent {
	return LibraryEvent{
		Type:   EventLibraryUpdated,
		UserID: userID,
		GameID: g.GameID,
		Name:   g.Name,
		Status: g.Status,
		At:     time.Now().UTC(),
	}
}

func DeletedEvent(userID string, gameID int64) LibraryEvent {
	return LibraryEvent{
		Type:   EventLibraryDeleted,
		UserID: userID,
		GameID: gameID,
		At:     time.Now().UTC(),
	}
}

// subscribeMsg is what a client sends to only receive one user's events.
type subscribeMsg struct {
	Type   string `json:"type"` // "subscribe"
	UserID string `json:"user_id"`
}

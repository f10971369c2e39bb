package events

import (
	"context"

	gvsync "gamevault/internal/sync"
)

// Subjects of library events. TopicLibraryAll matches both.
const (
	TopicLibraryUpdated = "gamevault.library.updated"
	TopicLibraryDeleted = "gamevault.library.deleted"
	TopicLibraryAll     = "gamevault.library.>"
)

// Publisher sends events to a message bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// TopicFor maps a library event to its subject.
func TopicFor(ev gvsync.LibraryEvent) string {
	if ev.Type == gvsync.EventLibraryDeleted {
		return TopicLibraryDeleted
	}
	return TopicLibraryUpdated
}

// PublishLibrary publishes ev on its subject.
func PublishLibrary(ctx context.Context, p Publisher, ev gvsync.LibraryEvent) error {
	return p.Publish(ctx, TopicFor(ev), ev)
}

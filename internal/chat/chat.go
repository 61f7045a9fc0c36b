// Package chat defines the host chat-platform collaborators the backend
// delivers results through: sending messages, uploading files, and resolving
// users and rooms by id. The interfaces are consumed by the service layer;
// rest.go provides the HTTP implementation against the platform's REST API.
package chat

import (
	"context"
	"errors"
)

// ErrNotFound is returned by resolvers when no user or room exists for an id.
var ErrNotFound = errors.New("chat: not found")

// User is a chat platform account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Room is a chat channel or direct-message room.
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Messenger sends messages into a room.
type Messenger interface {
	// SendSelfVisible posts text into room so that only recipient sees it,
	// optionally inside a thread.
	SendSelfVisible(ctx context.Context, room Room, recipient User, threadID, text string) error
}

// Uploader stores binary assets into a room.
type Uploader interface {
	// UploadFile uploads data into room as filename, attributed to owner.
	UploadFile(ctx context.Context, room Room, owner User, filename string, data []byte) error
}

// Directory resolves platform entities by id.
type Directory interface {
	// UserByID returns the user, or ErrNotFound.
	UserByID(ctx context.Context, id string) (*User, error)
	// RoomByID returns the room, or ErrNotFound.
	RoomByID(ctx context.Context, id string) (*Room, error)
}

// Package session stores immutable snapshots of an editing session so they
// can be listed, reloaded and compared later.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/kozaktomas/face-sculptor/internal/params"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrNotOwner = errors.New("session belongs to another owner")
	// ErrDuplicateID is returned by repositories when an id is already taken.
	// Sessions are never overwritten.
	ErrDuplicateID = errors.New("session id already exists")
	ErrValidation  = params.ErrValidation
)

// Session is one saved parameter set. It is immutable once saved.
type Session struct {
	ID                 string            `json:"id"`
	OwnerRef           string            `json:"ownerRef" validate:"required,max=255"`
	Name               string            `json:"name,omitempty" validate:"max=200"`
	CreatedAt          time.Time         `json:"createdAt"`
	Category           string            `json:"category" validate:"required"`
	Values             params.Values     `json:"values" validate:"required"`
	Selections         map[string]string `json:"selections,omitempty"`
	ReferenceImage     []byte            `json:"referenceImage,omitempty"`
	ReferenceImageType string            `json:"referenceImageType,omitempty" validate:"required_with=ReferenceImage"`
	ParentID           string            `json:"parentId,omitempty"`
}

// Snapshot returns the parameter snapshot stored in the session.
func (s *Session) Snapshot() params.Snapshot {
	return params.Snapshot{Category: s.Category, Values: s.Values.Clone()}
}

// Metadata returns the list view of the session.
func (s *Session) Metadata() Metadata {
	return Metadata{
		ID:                s.ID,
		OwnerRef:          s.OwnerRef,
		Name:              s.Name,
		CreatedAt:         s.CreatedAt,
		Category:          s.Category,
		ParentID:          s.ParentID,
		HasReferenceImage: len(s.ReferenceImage) > 0,
	}
}

// clone deep-copies s so stored sessions never alias caller memory.
func (s *Session) clone() *Session {
	c := *s
	c.Values = s.Values.Clone()
	if s.Selections != nil {
		c.Selections = make(map[string]string, len(s.Selections))
		for k, v := range s.Selections {
			c.Selections[k] = v
		}
	}
	if s.ReferenceImage != nil {
		c.ReferenceImage = append([]byte(nil), s.ReferenceImage...)
	}
	return &c
}

// Metadata is the summary returned by List.
type Metadata struct {
	ID                string    `json:"id"`
	OwnerRef          string    `json:"ownerRef"`
	Name              string    `json:"name,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	Category          string    `json:"category"`
	ParentID          string    `json:"parentId,omitempty"`
	HasReferenceImage bool      `json:"hasReferenceImage"`
}

// Repository is a session persistence backend. Implementations never
// update an existing row: Insert fails with ErrDuplicateID on collision.
type Repository interface {
	Insert(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// ListByOwner returns the owner's sessions, newest first.
	ListByOwner(ctx context.Context, owner string) ([]Metadata, error)
	// Delete removes a session; ErrNotOwner when owner does not match.
	Delete(ctx context.Context, id, owner string) error
	Close() error
}

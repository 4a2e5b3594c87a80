// Package store persists meeting metadata. The signaling core only
// consults it at the edges (join admission, end-meeting); room state
// itself is ephemeral and never stored.
package store

import (
	"context"
	"errors"

	"github.com/svarvel/meethub/internal/domain"
)

// ErrMeetingNotFound indicates that the requested meeting does not
// exist or has already ended.
var ErrMeetingNotFound = errors.New("meeting not found")

// MeetingStore is a backend store for meeting records. Ending a meeting
// is a soft delete: the record keeps its history with active=false.
type MeetingStore interface {
	Create(ctx context.Context, name string) (*domain.Meeting, error)
	Get(ctx context.Context, code string) (*domain.Meeting, error)
	List(ctx context.Context) ([]domain.Meeting, error)
	End(ctx context.Context, code string) error
	Exists(ctx context.Context, code string) (bool, error)
}

package defense

import (
	"errors"
	"time"
)

// Transcript is the recorded text of a defense session. Analysis of the
// text is handled by an external collaborator; the hub only stores it.
type Transcript struct {
	ID        string
	SessionID int64
	StudentID string
	Content   string
	Language  string

	IsActive  bool
	CreatedAt time.Time
}

// Validate checks transcript invariants.
func (t *Transcript) Validate() error {
	if t.SessionID == 0 {
		return errors.New("transcript: session is required")
	}
	if t.Content == "" {
		return errors.New("transcript: content is required")
	}
	return nil
}

package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID generates a unique session ID.
func NewID() string {
	id := uuid.NewString()
	if id == "" {
		id = fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return id
}

package store

import (
	"github.com/hrygo/learnengine/plugin/learning/performance"
)

// Response is a stored interaction response. Creating a response whose UID
// already exists leaves the stored row untouched.
type Response struct {
	UID       string
	StudentID string
	CourseID  string
	CreatedTs int64

	performance.Response
}

// FindResponse is the find condition for responses.
// Results are ordered by submission time, then insertion order.
type FindResponse struct {
	StudentID string
	CourseID  string
}

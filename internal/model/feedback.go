package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Feedback limits.
const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 2000
)

var (
	ErrInvalidRating  = errors.New("rating must be between 1 and 5")
	ErrCommentTooLong = errors.New("comment must be at most 2000 characters")
)

// Feedback is a user's rating of the product.
type Feedback struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedbackRequest is the POST /feedback body.
type FeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Validate normalizes the comment and checks the bounds.
func (r *FeedbackRequest) Validate() error {
	r.Comment = strings.TrimSpace(r.Comment)
	if r.Rating < MinRating || r.Rating > MaxRating {
		return ErrInvalidRating
	}
	if utf8.RuneCountInString(r.Comment) > MaxCommentLength {
		return ErrCommentTooLong
	}
	return nil
}

// FeedbackSummary is the aggregate rating.
type FeedbackSummary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

package domain

import "time"

// PostTextMaxLen bounds the length of a post body.
const PostTextMaxLen = 280

// Post is a short public message attributed to a user.
type Post struct {
	ID        int64
	UserID    int64
	Text      string
	CreatedAt time.Time
}

// Package models contains data structures for the application's domain models.
package models

import (
	"cmp"
	"encoding/json"
	"slices"
	"time"

	"socialfeed/internal/timeago"
)

// Post is the aggregate root: it exclusively owns its embedded comments and likes,
// which are persisted with it as a single document.
type Post struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Body     string `gorm:"type:text;not null" json:"body"`
	Username string `gorm:"not null;index" json:"username"`
	UserID   string `gorm:"type:varchar(36);not null;index" json:"user_id"`
	User     *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	// Comments are stored in append order; readers apply SortComments.
	Comments []Comment `gorm:"serializer:json;type:text" json:"comments"`
	Likes    []Like    `gorm:"serializer:json;type:text" json:"likes"`
	// LikeCount and CommentCount must equal len(Likes) and len(Comments) at rest.
	LikeCount    int `gorm:"not null" json:"like_count"`
	CommentCount int `gorm:"not null" json:"comment_count"`
	// Version guards conditional updates.
	Version   int64     `gorm:"not null" json:"-"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// Comment is embedded in a Post. Username is the author's display name at write time.
type Comment struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalJSON accepts any timestamp shape timeago.Parse understands; a missing or
// unparseable created_at decodes to the zero time instead of failing the document.
func (c *Comment) UnmarshalJSON(data []byte) error {
	type alias Comment
	aux := struct {
		*alias
		CreatedAt any `json:"created_at"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.CreatedAt, _ = timeago.Parse(aux.CreatedAt)
	return nil
}

// Like is embedded in a Post; at most one per display name.
type Like struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// RecomputeCounts brings the derived counters in line with the embedded collections.
func (p *Post) RecomputeCounts() {
	p.LikeCount = len(p.Likes)
	p.CommentCount = len(p.Comments)
}

// Clone returns a deep copy of the aggregate.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Comments = slices.Clone(p.Comments)
	cp.Likes = slices.Clone(p.Likes)
	if cp.Comments == nil {
		cp.Comments = []Comment{}
	}
	if cp.Likes == nil {
		cp.Likes = []Like{}
	}
	if p.User != nil {
		u := *p.User
		cp.User = &u
	}
	return &cp
}

// SortComments orders comments oldest first. The sort is stable and a zero
// timestamp sorts as the unix epoch.
func SortComments(comments []Comment) {
	slices.SortStableFunc(comments, func(a, b Comment) int {
		return cmp.Compare(commentSortKey(a), commentSortKey(b))
	})
}

func commentSortKey(c Comment) int64 {
	if c.CreatedAt.IsZero() {
		return 0
	}
	return c.CreatedAt.UnixMilli()
}

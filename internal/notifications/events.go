// Package notifications provides in-process change notification and live
// delivery to websocket clients.
package notifications

import (
	"fmt"
	"strings"
	"time"

	"socialfeed/internal/models"
)

// Topic names a stream of change events.
type Topic string

const (
	TopicPostAdded    Topic = "post-added"
	TopicPostDeleted  Topic = "post-deleted"
	TopicCommentAdded Topic = "comment-added"
	TopicPostLiked    Topic = "post-liked"
	// TopicPostUpdated carries a post after a change with no dedicated topic,
	// such as a comment removal.
	TopicPostUpdated Topic = "post-updated"
)

// AllTopics lists every topic the broker carries.
var AllTopics = []Topic{
	TopicPostAdded,
	TopicPostDeleted,
	TopicCommentAdded,
	TopicPostLiked,
	TopicPostUpdated,
}

func (t Topic) Valid() bool {
	for _, known := range AllTopics {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTopics parses a comma-separated topic list. An empty list means every topic.
func ParseTopics(raw string) ([]Topic, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var topics []Topic
	for _, part := range strings.Split(raw, ",") {
		topic := Topic(strings.TrimSpace(part))
		if topic == "" {
			continue
		}
		if !topic.Valid() {
			return nil, fmt.Errorf("unknown topic %q", topic)
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

// Event is one published change. Post is a private copy owned by the event;
// it is nil for post-deleted, where only PostID is set.
type Event struct {
	Topic       Topic
	Post        *models.Post
	PostID      string
	PublishedAt time.Time
	Seq         uint64
}

// Payload is the value delivered to clients: the post id for deletions and the
// post itself otherwise.
func (e Event) Payload() any {
	if e.Topic == TopicPostDeleted {
		return e.PostID
	}
	return e.Post
}

func postEvent(topic Topic, post *models.Post) Event {
	return Event{Topic: topic, Post: post.Clone(), PostID: post.ID}
}

func PostAdded(post *models.Post) Event    { return postEvent(TopicPostAdded, post) }
func CommentAdded(post *models.Post) Event { return postEvent(TopicCommentAdded, post) }
func PostLiked(post *models.Post) Event    { return postEvent(TopicPostLiked, post) }
func PostUpdated(post *models.Post) Event  { return postEvent(TopicPostUpdated, post) }

func PostDeleted(postID string) Event {
	return Event{Topic: TopicPostDeleted, PostID: postID}
}

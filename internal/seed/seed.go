package seed

import (
	"context"
	"fmt"
	"log/slog"

	"socialfeed/internal/identity"
	"socialfeed/internal/models"
	"socialfeed/internal/observability"
	"socialfeed/internal/service"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	MaxComments int
	MaxLikes    int
	// Seed makes runs reproducible; zero picks a random seed.
	Seed int64
}

// Summary reports what a run created.
type Summary struct {
	Users    int
	Posts    int
	Comments int
	Likes    int
}

type member struct {
	caller *identity.Caller
	user   *models.User
}

// Seeder drives the feed service with generated data.
type Seeder struct {
	feed    *service.FeedService
	factory *Factory
	opts    Options
}

func NewSeeder(feed *service.FeedService, opts Options) *Seeder {
	return &Seeder{feed: feed, factory: NewFactory(opts.Seed), opts: opts}
}

// Run registers users, then creates posts with comments and likes from
// randomly chosen members.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	members, err := s.seedUsers(ctx)
	if err != nil {
		return sum, err
	}
	sum.Users = len(members)
	if len(members) == 0 {
		return sum, nil
	}

	for range s.opts.NumPosts {
		author := members[s.factory.Intn(len(members))]
		post, err := s.feed.CreatePost(ctx, author.caller, s.factory.PostBody())
		if err != nil {
			return sum, fmt.Errorf("create post: %w", err)
		}
		sum.Posts++

		for range s.factory.Intn(s.opts.MaxComments + 1) {
			commenter := members[s.factory.Intn(len(members))]
			if _, err := s.feed.CreateComment(ctx, commenter.caller, post.ID, s.factory.CommentBody()); err != nil {
				return sum, fmt.Errorf("create comment: %w", err)
			}
			sum.Comments++
		}

		// Distinct likers; liking twice would toggle the like off.
		likes := min(s.factory.Intn(s.opts.MaxLikes+1), len(members))
		for _, i := range s.pick(len(members), likes) {
			if _, err := s.feed.LikePost(ctx, members[i].caller, post.ID); err != nil {
				return sum, fmt.Errorf("like post: %w", err)
			}
			sum.Likes++
		}
	}

	observability.Logger.InfoContext(ctx, "seed complete",
		slog.Int("users", sum.Users),
		slog.Int("posts", sum.Posts),
		slog.Int("comments", sum.Comments),
		slog.Int("likes", sum.Likes),
	)
	return sum, nil
}

func (s *Seeder) seedUsers(ctx context.Context) ([]member, error) {
	members := make([]member, 0, s.opts.NumUsers)
	for range s.opts.NumUsers {
		caller := s.factory.Caller()
		name := s.factory.Username()
		user, err := s.feed.RegisterUser(ctx, caller, name, s.factory.Email(name))
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
		members = append(members, member{caller: caller, user: user})
	}
	return members, nil
}

// pick returns k distinct indexes from [0, n).
func (s *Seeder) pick(n, k int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + s.factory.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}

// ClearAll removes every post and user.
func ClearAll(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		session := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := session.Delete(&models.Post{}).Error; err != nil {
			return fmt.Errorf("clear posts: %w", err)
		}
		if err := session.Delete(&models.User{}).Error; err != nil {
			return fmt.Errorf("clear users: %w", err)
		}
		return nil
	})
}

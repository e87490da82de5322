package service

import (
	"context"

	"socialfeed/internal/models"
	"socialfeed/internal/validation"

	"github.com/samber/lo"
)

// ListPosts returns every post, newest first, each with comments oldest first.
func (s *FeedService) ListPosts(ctx context.Context) (posts []*models.Post, err error) {
	ctx, done := s.observe(ctx, "listPosts")
	defer func() { done(err) }()

	stored, err := s.posts.List(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(stored, func(p *models.Post, _ int) *models.Post { return present(p) }), nil
}

func (s *FeedService) GetPost(ctx context.Context, postID string) (post *models.Post, err error) {
	ctx, done := s.observe(ctx, "getPost")
	defer func() { done(err) }()

	if !validation.IsValidID(postID) {
		return nil, models.NewNotFoundError("Post", postID)
	}
	stored, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	return present(stored), nil
}

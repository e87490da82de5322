package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"socialfeed/internal/identity"
	"socialfeed/internal/models"
	"socialfeed/internal/notifications"
	"socialfeed/internal/observability"
	"socialfeed/internal/repository"
	"socialfeed/internal/validation"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
)

// Publisher receives change events after a mutation commits.
type Publisher interface {
	Publish(ev notifications.Event)
}

// FeedService owns every state transition on posts, comments and likes.
// Read-modify-write on a post runs under a per-post lock, and the matching
// event is published before the lock is released, so subscribers observe a
// post's events in commit order.
type FeedService struct {
	users     repository.UserRepository
	posts     repository.PostRepository
	publisher Publisher
	locks     *keyedLocker

	now      func() time.Time
	newID    func() string
	newSubID func() string
}

func NewFeedService(users repository.UserRepository, posts repository.PostRepository, publisher Publisher) *FeedService {
	return &FeedService{
		users:     users,
		posts:     posts,
		publisher: publisher,
		locks:     newKeyedLocker(),
		now:       time.Now,
		newID:     uuid.NewString,
		newSubID:  func() string { return ulid.Make().String() },
	}
}

func (s *FeedService) CreatePost(ctx context.Context, caller *identity.Caller, body string) (post *models.Post, err error) {
	ctx, done := s.observe(ctx, "createPost")
	defer func() { done(err) }()

	user, err := s.requireUser(ctx, caller, "create a post")
	if err != nil {
		return nil, err
	}
	body, err = validation.PostBody(body)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post = &models.Post{
		ID:        s.newID(),
		Body:      body,
		Username:  user.Username,
		UserID:    user.ID,
		User:      user,
		Comments:  []models.Comment{},
		Likes:     []models.Like{},
		Version:   1,
		CreatedAt: s.now().UTC(),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	s.publish(notifications.PostAdded(post))
	observability.Logger.InfoContext(ctx, "post created", slog.String("post_id", post.ID), slog.String("user_id", user.ID))
	return present(post), nil
}

// DeletePost removes a post owned by the caller and returns its id. Ownership
// compares user ids, never display names.
func (s *FeedService) DeletePost(ctx context.Context, caller *identity.Caller, postID string) (deletedID string, err error) {
	ctx, done := s.observe(ctx, "deletePost", attribute.String("post.id", postID))
	defer func() { done(err) }()

	if caller == nil || caller.IdentityID == "" {
		return "", models.NewUnauthenticatedError("delete a post")
	}
	if !validation.IsValidID(postID) {
		return "", models.NewNotFoundError("Post", postID)
	}

	unlock, err := s.lockPost(ctx, postID)
	if err != nil {
		return "", err
	}
	defer unlock()

	post, err := s.posts.FindForUpdate(ctx, postID)
	if err != nil {
		return "", err
	}
	user, err := s.requireUser(ctx, caller, "delete a post")
	if err != nil {
		return "", err
	}
	if post.UserID != user.ID {
		return "", models.NewForbiddenError("You can only delete your own posts")
	}

	if err := s.posts.Delete(ctx, postID); err != nil {
		return "", err
	}
	s.publish(notifications.PostDeleted(postID))
	observability.Logger.InfoContext(ctx, "post deleted", slog.String("post_id", postID))
	return postID, nil
}

func (s *FeedService) CreateComment(ctx context.Context, caller *identity.Caller, postID, body string) (post *models.Post, err error) {
	ctx, done := s.observe(ctx, "createComment", attribute.String("post.id", postID))
	defer func() { done(err) }()

	user, err := s.requireUser(ctx, caller, "comment")
	if err != nil {
		return nil, err
	}
	body, err = validation.CommentBody(body)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if !validation.IsValidID(postID) {
		return nil, models.NewNotFoundError("Post", postID)
	}

	return s.mutatePost(ctx, postID, notifications.CommentAdded, func(p *models.Post) error {
		p.Comments = append(p.Comments, models.Comment{
			ID:        s.newSubID(),
			Body:      body,
			Username:  user.Username,
			CreatedAt: s.now().UTC(),
		})
		return nil
	})
}

// DeleteComment removes a comment whose captured display name matches the
// caller's current username. A renamed user can no longer delete comments
// written under the old name.
func (s *FeedService) DeleteComment(ctx context.Context, caller *identity.Caller, postID, commentID string) (post *models.Post, err error) {
	ctx, done := s.observe(ctx, "deleteComment", attribute.String("post.id", postID), attribute.String("comment.id", commentID))
	defer func() { done(err) }()

	user, err := s.requireUser(ctx, caller, "delete a comment")
	if err != nil {
		return nil, err
	}
	if !validation.IsValidID(postID) {
		return nil, models.NewNotFoundError("Post", postID)
	}

	return s.mutatePost(ctx, postID, notifications.PostUpdated, func(p *models.Post) error {
		if !validation.IsValidSubID(commentID) {
			return models.NewNotFoundError("Comment", commentID)
		}
		comment, idx, ok := lo.FindIndexOf(p.Comments, func(c models.Comment) bool { return c.ID == commentID })
		if !ok {
			return models.NewNotFoundError("Comment", commentID)
		}
		if comment.Username != user.Username {
			return models.NewForbiddenError("You can only delete your own comments")
		}
		p.Comments = slices.Delete(p.Comments, idx, idx+1)
		return nil
	})
}

// LikePost toggles the caller's like, keyed by current display name.
func (s *FeedService) LikePost(ctx context.Context, caller *identity.Caller, postID string) (post *models.Post, err error) {
	ctx, done := s.observe(ctx, "likePost", attribute.String("post.id", postID))
	defer func() { done(err) }()

	user, err := s.requireUser(ctx, caller, "like a post")
	if err != nil {
		return nil, err
	}
	if !validation.IsValidID(postID) {
		return nil, models.NewNotFoundError("Post", postID)
	}

	return s.mutatePost(ctx, postID, notifications.PostLiked, func(p *models.Post) error {
		_, idx, liked := lo.FindIndexOf(p.Likes, func(l models.Like) bool { return l.Username == user.Username })
		if liked {
			p.Likes = slices.Delete(p.Likes, idx, idx+1)
			return nil
		}
		p.Likes = append(p.Likes, models.Like{
			ID:        s.newSubID(),
			Username:  user.Username,
			CreatedAt: s.now().UTC(),
		})
		return nil
	})
}

// mutatePost runs one locked read-modify-write on a post, persists it and
// publishes event(post) on success. A failing mutate leaves the store untouched.
func (s *FeedService) mutatePost(ctx context.Context, postID string, event func(*models.Post) notifications.Event, mutate func(*models.Post) error) (*models.Post, error) {
	unlock, err := s.lockPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	post, err := s.posts.FindForUpdate(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := mutate(post); err != nil {
		return nil, err
	}
	post.RecomputeCounts()
	if err := s.posts.Save(ctx, post); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			observability.Logger.WarnContext(ctx, "concurrent post update detected", slog.String("post_id", postID))
		}
		return nil, err
	}

	out := present(post)
	s.publish(event(out))
	return out, nil
}

func (s *FeedService) lockPost(ctx context.Context, postID string) (func(), error) {
	unlock, err := s.locks.Lock(ctx, postID)
	if err != nil {
		return nil, models.NewStorageError(err)
	}
	return unlock, nil
}

// requireUser resolves the caller's registered User. It fails Unauthenticated
// for anonymous callers and NotRegistered when no User row exists.
func (s *FeedService) requireUser(ctx context.Context, caller *identity.Caller, action string) (*models.User, error) {
	if caller == nil || caller.IdentityID == "" {
		return nil, models.NewUnauthenticatedError(action)
	}
	user, err := s.users.FindByIdentity(ctx, caller.IdentityID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, models.NewNotRegisteredError()
		}
		return nil, err
	}
	return user, nil
}

func (s *FeedService) publish(ev notifications.Event) {
	if s.publisher != nil {
		s.publisher.Publish(ev)
	}
}

func (s *FeedService) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := observability.StartSpan(ctx, "feed."+op, attrs...)
	return ctx, func(err error) {
		observability.OperationsTotal.WithLabelValues(op, outcome(err)).Inc()
		observability.EndSpan(span, err)
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "error"
}

// present returns a copy of post with comments in canonical order.
func present(post *models.Post) *models.Post {
	out := post.Clone()
	models.SortComments(out.Comments)
	return out
}

package repository

import (
	"context"
	"fmt"

	"socialfeed/internal/cache"
	"socialfeed/internal/models"
	"socialfeed/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	// FindByID may serve from the read cache.
	FindByID(ctx context.Context, id string) (*models.Post, error)
	// FindForUpdate always reads the store.
	FindForUpdate(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context) ([]*models.Post, error)
	// Save persists the whole aggregate if its version is unchanged since it was read.
	Save(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id string) error
}

// postRepository implements PostRepository
type postRepository struct {
	db    *gorm.DB
	cache *cache.Store
}

// cachedPost carries the version alongside the aggregate since Post hides it
// from JSON. A Deleted entry is a tombstone left by Delete.
type cachedPost struct {
	Post    *models.Post `json:"post,omitempty"`
	Version int64        `json:"version"`
	Deleted bool         `json:"deleted,omitempty"`
}

var saveColumns = []string{"body", "comments", "likes", "like_count", "comment_count", "version"}

// NewPostRepository creates a new post repository. store may be nil.
func NewPostRepository(db *gorm.DB, store *cache.Store) PostRepository {
	return &postRepository{db: db, cache: store}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	normalize(post)
	post.RecomputeCounts()
	if post.Version == 0 {
		post.Version = 1
	}
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error
	return translate(err, "Post", post.ID)
}

func (r *postRepository) FindByID(ctx context.Context, id string) (*models.Post, error) {
	entry, err := cache.Aside(ctx, r.cache, cache.PostKey(id), func(ctx context.Context) (cachedPost, error) {
		post, err := r.FindForUpdate(ctx, id)
		if err != nil {
			return cachedPost{}, err
		}
		return cachedPost{Post: post, Version: post.Version}, nil
	})
	if err != nil {
		return nil, err
	}
	if entry.Deleted {
		return nil, models.NewNotFoundError("Post", id)
	}
	if entry.Post == nil {
		r.cache.Invalidate(ctx, cache.PostKey(id))
		return r.FindForUpdate(ctx, id)
	}
	entry.Post.Version = entry.Version
	normalize(entry.Post)
	return entry.Post, nil
}

func (r *postRepository) FindForUpdate(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Preload("User").First(&post, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "Post", id)
	}
	normalize(&post)
	return &post, nil
}

func (r *postRepository) List(ctx context.Context) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Order("id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, translate(err, "Post", "*")
	}
	for _, p := range posts {
		normalize(p)
	}
	return posts, nil
}

func (r *postRepository) Save(ctx context.Context, post *models.Post) error {
	normalize(post)
	post.RecomputeCounts()

	expected := post.Version
	next := *post
	next.User = nil
	next.Version = expected + 1

	result := r.db.WithContext(ctx).
		Model(&models.Post{ID: post.ID}).
		Omit(clause.Associations).
		Select(saveColumns).
		Where("version = ?", expected).
		Updates(&next)
	if result.Error != nil {
		return translate(result.Error, "Post", post.ID)
	}
	if result.RowsAffected == 0 {
		observability.VersionConflicts.Inc()
		return models.NewStorageError(fmt.Errorf("save post %s at version %d: %w", post.ID, expected, ErrVersionConflict))
	}

	post.Version = next.Version
	r.refresh(ctx, post)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Post{}, "id = ?", id)
	if result.Error != nil {
		return translate(result.Error, "Post", id)
	}
	r.cache.SetJSONWithTTL(ctx, cache.PostKey(id), cachedPost{Deleted: true}, cache.TombstoneTTL)
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func normalize(post *models.Post) {
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	if post.Likes == nil {
		post.Likes = []models.Like{}
	}
}

// refresh overwrites the cache entry with the committed aggregate. Reads fill
// with SET NX, so an older copy loaded concurrently cannot replace it.
func (r *postRepository) refresh(ctx context.Context, post *models.Post) {
	r.cache.SetJSON(ctx, cache.PostKey(post.ID), cachedPost{Post: post, Version: post.Version})
}

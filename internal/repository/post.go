package repository

import (
	"context"

	"socialdb/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations. Every write
// is scoped by owner so a non-owner cannot distinguish "missing" from "not
// mine": both surface as NotFound.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	ListByOwner(ctx context.Context, ownerID uint) ([]*models.Post, error)
	UpdateOwned(ctx context.Context, id, ownerID uint, text string) (*models.Post, error)
	DeleteOwned(ctx context.Context, id, ownerID uint) (*models.Post, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) ListByOwner(ctx context.Context, ownerID uint) ([]*models.Post, error) {
	var posts []*models.Post
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// UpdateOwned changes a post's text in a single UPDATE filtered by id and
// owner, returning the updated row. Zero rows affected means the post does
// not exist or belongs to someone else.
func (r *postRepository) UpdateOwned(ctx context.Context, id, ownerID uint, text string) (*models.Post, error) {
	var post models.Post
	tx := r.db.WithContext(ctx).
		Model(&post).
		Clauses(clause.Returning{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Update("text", text)
	if tx.Error != nil {
		return nil, models.NewInternalError(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, models.NewNotFoundError("Post")
	}
	return &post, nil
}

// DeleteOwned soft-deletes a post in a single statement filtered by id and
// owner, returning the deleted row. Deleting the same id twice yields
// NotFound on the second call.
func (r *postRepository) DeleteOwned(ctx context.Context, id, ownerID uint) (*models.Post, error) {
	var post models.Post
	tx := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&post)
	if tx.Error != nil {
		return nil, models.NewInternalError(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, models.NewNotFoundError("Post")
	}
	return &post, nil
}

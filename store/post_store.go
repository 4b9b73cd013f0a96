// Package store persists posts through gorm.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ghosttalk/ghosttalk/models"
)

// ErrPostNotFound is returned when no post has the requested id.
var ErrPostNotFound = errors.New("post not found")

// PostStore reads and writes the posts table.
type PostStore struct {
	db *gorm.DB
}

// NewPostStore wraps an opened database handle.
func NewPostStore(db *gorm.DB) *PostStore {
	return &PostStore{db: db}
}

// Migrate creates the posts table or adds missing columns.
func (s *PostStore) Migrate() error {
	return s.db.AutoMigrate(&models.Post{})
}

// Create inserts a post, letting the database assign id, created_at and is_admin.
func (s *PostStore) Create(ctx context.Context, content string) (*models.Post, error) {
	post := models.Post{Content: content, Replies: models.Replies{}}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// List returns every post, newest first.
func (s *PostStore) List(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// FindByID loads one post.
func (s *PostStore) FindByID(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// AppendReply adds reply to the end of the post's replies in a single UPDATE.
// The append happens inside the database, so concurrent calls never overwrite each other.
func (s *PostStore) AppendReply(ctx context.Context, id int64, reply string) error {
	expr, err := appendExpr(s.db.Dialector.Name())
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("replies", gorm.Expr(expr, reply))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPostNotFound
	}
	return nil
}

// Count returns the number of posts.
func (s *PostStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func appendExpr(dialect string) (string, error) {
	switch dialect {
	case "mysql":
		return "JSON_ARRAY_APPEND(replies, '$', ?)", nil
	case "postgres":
		return "replies || jsonb_build_array(?::text)", nil
	case "sqlite":
		return "json_insert(replies, '$[#]', ?)", nil
	default:
		return "", fmt.Errorf("atomic reply append not supported on %q", dialect)
	}
}

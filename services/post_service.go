// Package services implements the post operations on top of a PostStore.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/ghosttalk/ghosttalk/models"
	"github.com/ghosttalk/ghosttalk/store"
	"github.com/ghosttalk/ghosttalk/validation"
)

// Cached lists live under listCachePrefix+"all:<generation>". Every write bumps the
// generation after it commits, so a list read before the write can only refill a key
// nobody reads any more.
const (
	listCachePrefix = "cache:posts:list:"
	listCacheGenKey = listCachePrefix + "gen"
	listCacheKeys   = listCachePrefix + "all:"
)

// PostStore is the storage collaborator.
type PostStore interface {
	Create(ctx context.Context, content string) (*models.Post, error)
	List(ctx context.Context) ([]models.Post, error)
	FindByID(ctx context.Context, id int64) (*models.Post, error)
	AppendReply(ctx context.Context, id int64, reply string) error
}

// ListCache caches the serialized post list. Failures degrade to misses.
type ListCache interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool)
	SetBytes(ctx context.Context, key string, b []byte)
	InvalidateByPrefix(ctx context.Context, prefix string)
	// Generation reads a counter; an absent counter is 0. ok is false when the cache is unreachable.
	Generation(ctx context.Context, key string) (gen int64, ok bool)
	BumpGeneration(ctx context.Context, key string)
}

// PostService orchestrates create, list and reply.
type PostService struct {
	store PostStore
	cache ListCache
	log   *zap.Logger
}

// NewPostService builds a service. cache may be nil.
func NewPostService(s PostStore, c ListCache, log *zap.Logger) *PostService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostService{store: s, cache: c, log: log}
}

// Create stores a new post and returns it as the database reported it.
func (s *PostService) Create(ctx context.Context, content string) (*models.Post, error) {
	content, err := validation.ValidateCreate(content)
	if err != nil {
		return nil, err
	}

	post, err := s.store.Create(ctx, content)
	if err != nil {
		s.fail("create", err)
		return nil, internal(MsgCreateFailed, err)
	}

	postsCreatedTotal.Inc()
	s.invalidate(ctx)
	return post, nil
}

// List returns all posts, newest first.
func (s *PostService) List(ctx context.Context) ([]models.Post, error) {
	key, cacheable := s.listKey(ctx)
	if cacheable {
		if posts, ok := s.cachedList(ctx, key); ok {
			return posts, nil
		}
	}

	posts, err := s.store.List(ctx)
	if err != nil {
		s.fail("list", err)
		return nil, internal(MsgListFailed, err)
	}
	if posts == nil {
		posts = []models.Post{}
	}

	if cacheable {
		if b, err := json.Marshal(posts); err == nil {
			s.cache.SetBytes(ctx, key, b)
		}
	}
	return posts, nil
}

// AddReply appends reply to the post with id postID and returns the updated post.
func (s *PostService) AddReply(ctx context.Context, postID int64, reply string) (*models.Post, error) {
	postID, reply, err := validation.ValidateReply(postID, reply)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindByID(ctx, postID)
	if err != nil {
		if errors.Is(err, store.ErrPostNotFound) {
			return nil, notFound()
		}
		s.fail("reply", err)
		return nil, internal(MsgReplyFailed, err)
	}

	if err := s.store.AppendReply(ctx, postID, reply); err != nil {
		if errors.Is(err, store.ErrPostNotFound) {
			return nil, notFound()
		}
		s.fail("reply", err)
		return nil, internal(MsgReplyFailed, err)
	}

	repliesAddedTotal.Inc()
	s.invalidate(ctx)

	updated, err := s.store.FindByID(ctx, postID)
	if err != nil {
		// The append is durable; report what we know rather than a failure.
		// Replies appended by other writers since the lookup are missing from this copy.
		s.log.Warn("reload after reply failed, returning possibly partial replies",
			zap.Int64("post_id", postID), zap.Int("known_replies", len(existing.Replies)+1), zap.Error(err))
		existing.Replies = append(existing.Replies, reply)
		return existing, nil
	}
	return updated, nil
}

// listKey reads the generation before the store is queried. Without a readable
// generation the cache is bypassed entirely.
func (s *PostService) listKey(ctx context.Context) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	gen, ok := s.cache.Generation(ctx, listCacheGenKey)
	if !ok {
		return "", false
	}
	return listCacheKeys + strconv.FormatInt(gen, 10), true
}

func (s *PostService) cachedList(ctx context.Context, key string) ([]models.Post, bool) {
	b, ok := s.cache.GetBytes(ctx, key)
	if !ok {
		return nil, false
	}
	var posts []models.Post
	if err := json.Unmarshal(b, &posts); err != nil {
		s.log.Warn("discarding corrupt cached post list", zap.Error(err))
		return nil, false
	}
	return posts, true
}

func (s *PostService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.cache.BumpGeneration(ctx, listCacheGenKey)
	s.cache.InvalidateByPrefix(ctx, listCacheKeys)
}

func (s *PostService) fail(op string, err error) {
	storageFailuresTotal.WithLabelValues(op).Inc()
	s.log.Error("storage failure", zap.String("operation", op), zap.Error(err))
}

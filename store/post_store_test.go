package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *PostStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := NewPostStore(db)
	require.NoError(t, s.Migrate())
	return s
}

func TestCreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	post, err := s.Create(ctx, "hello")
	require.NoError(t, err)
	assert.NotZero(t, post.ID)
	assert.Equal(t, "hello", post.Content)
	assert.Empty(t, post.Replies)
	assert.False(t, post.IsAdmin)
	assert.False(t, post.CreatedAt.IsZero())

	other, err := s.Create(ctx, "world")
	require.NoError(t, err)
	assert.NotEqual(t, post.ID, other.ID)

	loaded, err := s.FindByID(ctx, int64(post.ID))
	require.NoError(t, err)
	assert.Equal(t, "hello", loaded.Content)
	assert.NotNil(t, loaded.Replies)
	assert.Empty(t, loaded.Replies)
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	posts, err := s.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)

	a, err := s.Create(ctx, "A")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	b, err := s.Create(ctx, "B")
	require.NoError(t, err)

	posts, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, b.ID, posts[0].ID)
	assert.Equal(t, a.ID, posts[1].ID)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestFindByIDMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.FindByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestNonPositiveIDsAreMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.Create(ctx, "exists")
	require.NoError(t, err)

	for _, id := range []int64{0, -7} {
		_, err := s.FindByID(ctx, id)
		assert.ErrorIs(t, err, ErrPostNotFound, "find %d", id)
		assert.ErrorIs(t, s.AppendReply(ctx, id, "r"), ErrPostNotFound, "append %d", id)
	}
}

func TestAppendReplyKeepsOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	post, err := s.Create(ctx, "thread")
	require.NoError(t, err)
	id := int64(post.ID)

	require.NoError(t, s.AppendReply(ctx, id, "r1"))
	require.NoError(t, s.AppendReply(ctx, id, "r2"))
	require.NoError(t, s.AppendReply(ctx, id, "r2"))

	loaded, err := s.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r2"}, []string(loaded.Replies))
	assert.Equal(t, "thread", loaded.Content)
}

func TestAppendReplyQuotesAndUnicode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	post, err := s.Create(ctx, "x")
	require.NoError(t, err)

	reply := `she said "boo" 👻 \ done`
	require.NoError(t, s.AppendReply(ctx, int64(post.ID), reply))

	loaded, err := s.FindByID(ctx, int64(post.ID))
	require.NoError(t, err)
	assert.Equal(t, []string{reply}, []string(loaded.Replies))
}

func TestAppendReplyMissingPost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	post, err := s.Create(ctx, "x")
	require.NoError(t, err)

	err = s.AppendReply(ctx, int64(post.ID)+100, "lost")
	assert.ErrorIs(t, err, ErrPostNotFound)

	loaded, err := s.FindByID(ctx, int64(post.ID))
	require.NoError(t, err)
	assert.Empty(t, loaded.Replies)
}

func TestAppendReplyConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	post, err := s.Create(ctx, "busy")
	require.NoError(t, err)
	id := int64(post.ID)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.AppendReply(ctx, id, fmt.Sprintf("reply-%d", i))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	loaded, err := s.FindByID(ctx, id)
	require.NoError(t, err)
	require.Len(t, loaded.Replies, n)

	seen := make(map[string]int, n)
	for _, r := range loaded.Replies {
		seen[r]++
	}
	for i := 0; i < n; i++ {
		assert.Equal(t, 1, seen[fmt.Sprintf("reply-%d", i)])
	}
}

func TestAppendExprUnknownDialect(t *testing.T) {
	_, err := appendExpr("sqlserver")
	assert.Error(t, err)

	for _, d := range []string{"mysql", "postgres", "sqlite"} {
		expr, err := appendExpr(d)
		require.NoError(t, err)
		assert.Contains(t, expr, "?")
	}
}

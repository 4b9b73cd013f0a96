package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghosttalk/ghosttalk/models"
	"github.com/ghosttalk/ghosttalk/services"
	"github.com/ghosttalk/ghosttalk/validation"
)

// MockPostService implements PostService with overridable behaviour.
type MockPostService struct {
	MockCreate   func(ctx context.Context, content string) (*models.Post, error)
	MockList     func(ctx context.Context) ([]models.Post, error)
	MockAddReply func(ctx context.Context, postID int64, reply string) (*models.Post, error)
}

func (m *MockPostService) Create(ctx context.Context, content string) (*models.Post, error) {
	if m.MockCreate != nil {
		return m.MockCreate(ctx, content)
	}
	return &models.Post{ID: 1, Content: content}, nil
}

func (m *MockPostService) List(ctx context.Context) ([]models.Post, error) {
	if m.MockList != nil {
		return m.MockList(ctx)
	}
	return []models.Post{}, nil
}

func (m *MockPostService) AddReply(ctx context.Context, postID int64, reply string) (*models.Post, error) {
	if m.MockAddReply != nil {
		return m.MockAddReply(ctx, postID, reply)
	}
	return &models.Post{ID: uint(postID), Replies: models.Replies{reply}}, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupPostRouter(svc PostService, sanitize bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	c := NewPostController(svc, sanitize)
	r := gin.New()
	r.POST("/posts", c.CreatePost)
	r.GET("/posts", c.ListPosts)
	r.POST("/posts/:id/replies", c.AddReply)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return w, env
}

func TestCreatePostHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		svc := &MockPostService{MockCreate: func(_ context.Context, content string) (*models.Post, error) {
			assert.Equal(t, "hello", content)
			return &models.Post{ID: 5, Content: content, CreatedAt: created}, nil
		}}
		w, env := do(t, setupPostRouter(svc, false), http.MethodPost, "/posts", `{"content":"hello"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0, env.Code)
		var data struct {
			Post map[string]interface{} `json:"post"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, float64(5), data.Post["id"])
		assert.Equal(t, "hello", data.Post["content"])
		assert.Equal(t, []interface{}{}, data.Post["replies"])
		assert.Equal(t, false, data.Post["isAdmin"])
		assert.Equal(t, "2024-05-01T12:00:00Z", data.Post["createdAt"])
	})

	t.Run("name alias", func(t *testing.T) {
		var got string
		svc := &MockPostService{MockCreate: func(_ context.Context, content string) (*models.Post, error) {
			got = content
			return &models.Post{ID: 1, Content: content}, nil
		}}
		w, _ := do(t, setupPostRouter(svc, false), http.MethodPost, "/posts", `{"name":"legacy"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "legacy", got)
	})

	t.Run("sanitizes when enabled", func(t *testing.T) {
		var got string
		svc := &MockPostService{MockCreate: func(_ context.Context, content string) (*models.Post, error) {
			got = content
			return &models.Post{ID: 1, Content: content}, nil
		}}
		do(t, setupPostRouter(svc, true), http.MethodPost, "/posts", `{"content":"<b>hi</b> & bye"}`)
		assert.Equal(t, "hi & bye", got)
	})

	t.Run("invalid json", func(t *testing.T) {
		w, env := do(t, setupPostRouter(&MockPostService{}, false), http.MethodPost, "/posts", `{"content":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40020, env.Code)
	})

	t.Run("validation error", func(t *testing.T) {
		svc := &MockPostService{MockCreate: func(_ context.Context, content string) (*models.Post, error) {
			_, err := validation.ValidateCreate(content)
			return nil, err
		}}
		w, env := do(t, setupPostRouter(svc, false), http.MethodPost, "/posts", `{"content":"`+strings.Repeat("a", 1001)+`"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40022, env.Code)
		assert.Equal(t, "Post is too long (max 1000 characters)", env.Message)
		assert.JSONEq(t, `{"field":"content","reason":"too_long"}`, string(env.Data))

		w, env = do(t, setupPostRouter(svc, false), http.MethodPost, "/posts", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40021, env.Code)
		assert.Equal(t, "Post content cannot be empty", env.Message)
	})

	t.Run("internal error hides cause", func(t *testing.T) {
		svc := &MockPostService{MockCreate: func(context.Context, string) (*models.Post, error) {
			return nil, &services.APIError{Kind: services.KindInternal, Message: services.MsgCreateFailed, Cause: errors.New("dial tcp: refused")}
		}}
		w, env := do(t, setupPostRouter(svc, false), http.MethodPost, "/posts", `{"content":"x"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, 50020, env.Code)
		assert.Equal(t, services.MsgCreateFailed, env.Message)
		assert.NotContains(t, w.Body.String(), "refused")
	})
}

func TestListPostsHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &MockPostService{MockList: func(context.Context) ([]models.Post, error) {
			return []models.Post{{ID: 2, Content: "B"}, {ID: 1, Content: "A", Replies: models.Replies{"r"}}}, nil
		}}
		w, env := do(t, setupPostRouter(svc, false), http.MethodGet, "/posts", "")
		assert.Equal(t, http.StatusOK, w.Code)

		var data struct {
			Items []models.Post `json:"items"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		require.Len(t, data.Items, 2)
		assert.Equal(t, "B", data.Items[0].Content)
		assert.Equal(t, []string{"r"}, []string(data.Items[1].Replies))
	})

	t.Run("empty list is an array", func(t *testing.T) {
		w, env := do(t, setupPostRouter(&MockPostService{}, false), http.MethodGet, "/posts", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"items":[]}`, string(env.Data))
	})

	t.Run("internal error", func(t *testing.T) {
		svc := &MockPostService{MockList: func(context.Context) ([]models.Post, error) {
			return nil, &services.APIError{Kind: services.KindInternal, Message: services.MsgListFailed}
		}}
		w, env := do(t, setupPostRouter(svc, false), http.MethodGet, "/posts", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, 50022, env.Code)
		assert.Equal(t, services.MsgListFailed, env.Message)
	})
}

func TestAddReplyHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &MockPostService{MockAddReply: func(_ context.Context, id int64, reply string) (*models.Post, error) {
			assert.Equal(t, int64(42), id)
			assert.Equal(t, "me too", reply)
			return &models.Post{ID: 42, Replies: models.Replies{"first", reply}}, nil
		}}
		w, env := do(t, setupPostRouter(svc, false), http.MethodPost, "/posts/42/replies", `{"reply":"me too"}`)
		assert.Equal(t, http.StatusOK, w.Code)

		var data struct {
			Post models.Post `json:"post"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, []string{"first", "me too"}, []string(data.Post.Replies))
	})

	t.Run("bad id", func(t *testing.T) {
		w, env := do(t, setupPostRouter(&MockPostService{}, false), http.MethodPost, "/posts/abc/replies", `{"reply":"x"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40025, env.Code)
		assert.JSONEq(t, `{"field":"postId","reason":"invalid"}`, string(env.Data))
	})

	t.Run("not found", func(t *testing.T) {
		svc := &MockPostService{MockAddReply: func(context.Context, int64, string) (*models.Post, error) {
			return nil, &services.APIError{Kind: services.KindNotFound, Message: services.MsgPostNotFound}
		}}
		w, env := do(t, setupPostRouter(svc, false), http.MethodPost, "/posts/7/replies", `{"reply":"x"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, 40401, env.Code)
		assert.Equal(t, "Post not found", env.Message)
	})

	t.Run("empty reply", func(t *testing.T) {
		svc := &MockPostService{MockAddReply: func(_ context.Context, id int64, reply string) (*models.Post, error) {
			_, _, err := validation.ValidateReply(id, reply)
			return nil, err
		}}
		w, env := do(t, setupPostRouter(svc, false), http.MethodPost, "/posts/7/replies", `{"reply":""}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40023, env.Code)
		assert.Equal(t, "Reply cannot be empty", env.Message)
	})

	t.Run("internal error", func(t *testing.T) {
		svc := &MockPostService{MockAddReply: func(context.Context, int64, string) (*models.Post, error) {
			return nil, &services.APIError{Kind: services.KindInternal, Message: services.MsgReplyFailed}
		}}
		w, env := do(t, setupPostRouter(svc, false), http.MethodPost, "/posts/7/replies", `{"reply":"x"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, 50024, env.Code)
	})

	t.Run("unexpected error", func(t *testing.T) {
		svc := &MockPostService{MockAddReply: func(context.Context, int64, string) (*models.Post, error) {
			return nil, errors.New("raw driver error")
		}}
		w, env := do(t, setupPostRouter(svc, false), http.MethodPost, "/posts/7/replies", `{"reply":"x"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, 50000, env.Code)
		assert.NotContains(t, w.Body.String(), "raw driver error")
	})
}

type fakeCounter struct {
	n   int64
	err error
}

func (f fakeCounter) Count(context.Context) (int64, error) { return f.n, f.err }

func TestGetStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, tc := range []struct {
		counter fakeCounter
		want    string
	}{
		{fakeCounter{n: 3}, `{"post_count":3}`},
		{fakeCounter{err: errors.New("down")}, `{"post_count":0}`},
	} {
		r := gin.New()
		r.GET("/stats", NewStatsController(tc.counter).GetStats)
		w, env := do(t, r, http.MethodGet, "/stats", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, tc.want, string(env.Data))
	}
}

package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ghosttalk/ghosttalk/models"
	"github.com/ghosttalk/ghosttalk/services"
	"github.com/ghosttalk/ghosttalk/utils"
	"github.com/ghosttalk/ghosttalk/validation"
)

// PostService is the subset of services.PostService the HTTP layer needs.
type PostService interface {
	Create(ctx context.Context, content string) (*models.Post, error)
	List(ctx context.Context) ([]models.Post, error)
	AddReply(ctx context.Context, postID int64, reply string) (*models.Post, error)
}

// PostController exposes create, list and reply over HTTP.
type PostController struct {
	posts    PostService
	sanitize bool
}

// NewPostController creates a PostController. With sanitize set, markup is
// stripped from content and replies before validation.
func NewPostController(posts PostService, sanitize bool) *PostController {
	return &PostController{posts: posts, sanitize: sanitize}
}

// CreatePost stores a new anonymous post.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Content string `json:"content"`
		// Name is the field name older clients send
		Name string `json:"name"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	content := req.Content
	if content == "" {
		content = req.Name
	}

	post, err := p.posts.Create(ctx.Request.Context(), p.clean(content))
	if err != nil {
		writeError(ctx, err, 50020)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// ListPosts returns every post, newest first.
func (p *PostController) ListPosts(ctx *gin.Context) {
	posts, err := p.posts.List(ctx.Request.Context())
	if err != nil {
		writeError(ctx, err, 50022)
		return
	}
	utils.Success(ctx, gin.H{"items": posts})
}

// AddReply appends a reply to the post named in the path.
func (p *PostController) AddReply(ctx *gin.Context) {
	postID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		writeError(ctx, validation.InvalidPostID(), 50024)
		return
	}

	var req struct {
		Reply string `json:"reply"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	post, err := p.posts.AddReply(ctx.Request.Context(), postID, p.clean(req.Reply))
	if err != nil {
		writeError(ctx, err, 50024)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

func (p *PostController) clean(s string) string {
	if !p.sanitize {
		return s
	}
	return utils.StripMarkup(s)
}

// validationCodes maps field and reason onto envelope codes.
var validationCodes = map[string]map[string]int{
	"content": {validation.ReasonEmpty: 40021, validation.ReasonTooLong: 40022},
	"reply":   {validation.ReasonEmpty: 40023, validation.ReasonTooLong: 40024},
	"postId":  {validation.ReasonInvalid: 40025},
}

// writeError maps service errors onto the JSON envelope. internalCode
// identifies the operation when storage failed.
func writeError(ctx *gin.Context, err error, internalCode int) {
	var ve *validation.ValidationError
	if errors.As(err, &ve) {
		code, ok := validationCodes[ve.Field][ve.Reason]
		if !ok {
			code = 40000
		}
		utils.Respond(ctx, http.StatusBadRequest, code, ve.Message, gin.H{
			"field":  ve.Field,
			"reason": ve.Reason,
		})
		return
	}

	var apiErr *services.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case services.KindNotFound:
			utils.Error(ctx, http.StatusNotFound, 40401, apiErr.Message)
		default:
			_ = ctx.Error(err)
			utils.Error(ctx, http.StatusInternalServerError, internalCode, apiErr.Message)
		}
		return
	}

	_ = ctx.Error(err)
	utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
}

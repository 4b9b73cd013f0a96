// Package validation checks post and reply input before it reaches storage.
package validation

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	MaxContentLength = 1000
	MaxReplyLength   = 500
)

// Failure reasons reported in ValidationError.Reason.
const (
	ReasonEmpty   = "empty"
	ReasonTooLong = "too_long"
	ReasonInvalid = "invalid"
)

// ValidationError describes input the caller must correct.
type ValidationError struct {
	Field   string
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// min/max on strings count runes, so limits are in characters rather than bytes.
type createInput struct {
	Content string `validate:"min=1,max=1000"`
}

type replyInput struct {
	Reply string `validate:"min=1,max=500"`
}

var messages = map[string]map[string]string{
	"content": {
		ReasonEmpty:   "Post content cannot be empty",
		ReasonTooLong: fmt.Sprintf("Post is too long (max %d characters)", MaxContentLength),
	},
	"reply": {
		ReasonEmpty:   "Reply cannot be empty",
		ReasonTooLong: fmt.Sprintf("Reply is too long (max %d characters)", MaxReplyLength),
	},
	"postId": {
		ReasonInvalid: "Invalid post id",
	},
}

// InvalidPostID is reported when a post id is not an integer at all.
func InvalidPostID() *ValidationError {
	return &ValidationError{Field: "postId", Reason: ReasonInvalid, Message: messageFor("postId", ReasonInvalid)}
}

var fieldNames = map[string]string{
	"Content": "content",
	"Reply":   "reply",
}

// ValidateCreate checks the content of a new post.
func ValidateCreate(content string) (string, error) {
	if err := check(createInput{Content: content}); err != nil {
		return "", err
	}
	return content, nil
}

// ValidateReply checks a reply. Any integer is an acceptable post id; ids that
// match no post are reported as not found by storage.
func ValidateReply(postID int64, reply string) (int64, string, error) {
	if err := check(replyInput{Reply: reply}); err != nil {
		return 0, "", err
	}
	return postID, reply, nil
}

func check(in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	field := fieldNames[fe.StructField()]
	reason := reasonFor(fe.Tag())
	return &ValidationError{
		Field:   field,
		Reason:  reason,
		Message: messageFor(field, reason),
	}
}

func reasonFor(tag string) string {
	switch tag {
	case "min":
		return ReasonEmpty
	case "max":
		return ReasonTooLong
	default:
		return ReasonInvalid
	}
}

func messageFor(field, reason string) string {
	if msg, ok := messages[field][reason]; ok {
		return msg
	}
	return fmt.Sprintf("Field '%s' is invalid", field)
}

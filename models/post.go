package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Post is a single anonymous message with its appended replies.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index;autoCreateTime" json:"createdAt"`
	IsAdmin   bool      `gorm:"not null;default:false" json:"isAdmin"`
	Replies   Replies   `gorm:"not null" json:"replies"`
}

// Replies is stored as a JSON array of strings. Order is append order.
type Replies []string

// Value always encodes a JSON array, so a new post starts with "[]" rather than NULL.
func (r Replies) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes the JSON array read back from the database.
func (r *Replies) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*r = Replies{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("replies: unsupported scan type %T", src)
	}
	out := Replies{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &out); err != nil {
			return fmt.Errorf("replies: %w", err)
		}
	}
	*r = out
	return nil
}

// MarshalJSON keeps an empty list as [] instead of null.
func (r Replies) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(r))
}

// GormDBDataType picks a column type the dialect can append to atomically.
func (Replies) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	case "mysql":
		return "JSON"
	default:
		return "TEXT"
	}
}

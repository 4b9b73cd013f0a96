package controllers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ghosttalk/ghosttalk/utils"
)

// PostCounter reports how many posts exist.
type PostCounter interface {
	Count(ctx context.Context) (int64, error)
}

// StatsController provides board statistics.
type StatsController struct {
	counter PostCounter
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(counter PostCounter) *StatsController {
	return &StatsController{counter: counter}
}

// GetStats returns aggregate statistics for the board.
func (s *StatsController) GetStats(ctx *gin.Context) {
	postCount, err := s.counter.Count(ctx.Request.Context())
	if err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		_ = ctx.Error(err)
		postCount = 0
	}
	utils.Success(ctx, gin.H{"post_count": postCount})
}

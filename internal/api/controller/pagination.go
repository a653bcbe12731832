package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/abdelslam1997/light-messages-backend/internal/messenger"
)

// ContextUserKey is where the auth middleware stores the resolved user id.
const ContextUserKey = "auth_user_id"

// Paginator reads page-number pagination from query parameters and renders
// the {count,next,previous,results} envelope.
type Paginator struct {
	DefaultSize int
	MaxSize     int
}

// FromQuery parses "page" and "page_size", clamping the size to MaxSize.
func (p Paginator) FromQuery(c *gin.Context) messenger.Page {
	page := messenger.Page{Number: 1, Size: p.DefaultSize}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page.Number = n
		}
	}
	if v := c.Query("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page.Size = n
		}
	}
	if p.MaxSize > 0 && page.Size > p.MaxSize {
		page.Size = p.MaxSize
	}
	if page.Size <= 0 {
		page.Size = 25
	}
	return page
}

// Envelope wraps one page of results with page numbers instead of URLs.
func Envelope(page messenger.Page, total int64, results any) gin.H {
	var next, previous any
	if int64(page.Number*page.Size) < total {
		next = page.Number + 1
	}
	if page.Number > 1 {
		previous = page.Number - 1
	}
	return gin.H{
		"count":    total,
		"next":     next,
		"previous": previous,
		"results":  results,
	}
}

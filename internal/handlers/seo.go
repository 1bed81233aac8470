package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type SEOHandler struct{}

func NewSEOHandler() *SEOHandler {
	return &SEOHandler{}
}

// RobotsTxt lets crawlers index the public statistics page only.
func (h *SEOHandler) RobotsTxt(c *gin.Context) {
	content := `User-agent: *
Allow: /stats/dashboard

# accounts, admin and the data API require sign-in
Disallow: /user
Disallow: /admin/
Disallow: /login
Disallow: /signup
Disallow: /passwords
Disallow: /auth/
Disallow: /oauth/
Disallow: /hikes
Disallow: /hike_histories
Disallow: /hike_paths

Crawl-delay: 1
`
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, content)
}

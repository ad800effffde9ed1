package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

// retrieves *model.User from Gin context (after JWTMiddleware has run).
func GetCurrentUser(c *gin.Context) (*model.User, bool) {
	u, exists := c.Get("currentUser")
	if !exists {
		return nil, false
	}
	user, ok := u.(*model.User)
	return user, ok
}

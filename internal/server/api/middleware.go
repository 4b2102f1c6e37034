package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sharegate/internal/common"
	"sharegate/internal/server/auth"
)

const subjectKey = "subject"

// resolveSubject turns an optional bearer identity token into a stable
// subject id in the gin context. The core protocol only needs the subject
// identifier, not the token internals. An invalid token is rejected rather
// than downgraded to anonymous.
func (s *Server) resolveSubject() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AuthorizationHeaderName)
		if header == "" {
			c.Next()
			return
		}

		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(common.ErrorUnauthorized))
			return
		}

		userID, err := auth.GetUserIDFromToken(tokenString, s.jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(common.ErrorUnauthorized))
			return
		}

		c.Set(subjectKey, userID)
		c.Next()
	}
}

// requireSubject guards routes that only make sense for authenticated
// callers.
func (s *Server) requireSubject() gin.HandlerFunc {
	return func(c *gin.Context) {
		if subjectFrom(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(common.ErrorUnauthorized))
			return
		}
		c.Next()
	}
}

func subjectFrom(c *gin.Context) string {
	v, _ := c.Get(subjectKey)
	subject, _ := v.(string)
	return subject
}

// helpers.go holds small utilities shared by the v1 handlers: pagination
// parsing, context accessors, and random token generation.
package v1

import (
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aroha-app/aroha-backend/internal/db/models"
	"github.com/aroha-app/aroha-backend/internal/middleware"
)

// randomToken returns a URL-safe random string suitable for OAuth state values.
func randomToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// pagination parses page/per_page query parameters with the same bounds the
// rest of the API uses (per_page capped at 100, default 20).
func pagination(c *gin.Context) (page, perPage, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	return page, perPage, (page - 1) * perPage
}

// splitJWT returns the decoded claims segment of a JWT, or nil when the token
// is malformed.
func splitJWT(raw string) []byte {
	parts := strings.SplitN(raw, ".", 3)
	if len(parts) != 3 {
		return nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil
	}
	return decoded
}

// requestUser returns the authenticated user set by the auth middleware.
func requestUser(c *gin.Context) (*models.UserWithMemberships, bool) {
	value, exists := c.Get(middleware.ContextUser)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.UserWithMemberships)
	return user, ok
}

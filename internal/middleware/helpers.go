// internal/middleware/helpers.go
package middleware

import "github.com/gin-gonic/gin"

// GetPeerKey gets the authenticated caller's peer key from context
func GetPeerKey(c *gin.Context) (string, bool) {
	v, exists := c.Get("peer_key")
	if !exists {
		return "", false
	}
	key, ok := v.(string)
	return key, ok
}

// MustGetPeerKey gets the caller's peer key from context or panics
func MustGetPeerKey(c *gin.Context) string {
	key, exists := GetPeerKey(c)
	if !exists {
		panic("peer_key not found in context")
	}
	return key
}

package routes

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// OwnerKey is the gin context key holding the authenticated owner id.
const OwnerKey = "owner_id"

// AuthMiddleware verifies the Bearer token minted by the account service
// and puts the owner uuid into the request context. Token issuance lives
// outside this server; only HMAC verification happens here.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		raw := strings.TrimPrefix(authHeader, "Bearer ")
		if raw == "" || raw == authHeader {
			c.AbortWithStatusJSON(401, gin.H{"error": "missing bearer token"})
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(401, gin.H{"error": "invalid token"})
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "invalid token"})
			return
		}
		owner, err := uuid.Parse(sub)
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "invalid token"})
			return
		}

		c.Set(OwnerKey, owner.String())
		c.Next()
	}
}

func ownerFromContext(c *gin.Context) string {
	return c.GetString(OwnerKey)
}

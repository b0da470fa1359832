package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"video-gate/constant"
	"video-gate/dto"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// AuthClaims is the bearer token issued by the surrounding application's login flow.
type AuthClaims struct {
	Role constant.Role `json:"role"`
	jwt.RegisteredClaims
}

func SignAuthToken(secret string, userID uint, role constant.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AuthClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseAuthToken(secret, raw string) (*AuthClaims, uint, error) {
	claims := &AuthClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, 0, err
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, 0, errors.New("subject is not a user id")
	}
	return claims, uint(id), nil
}

// Auth requires a valid bearer token and stores the caller's id and role on the context.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized", Message: "missing authorization"})
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized", Message: "invalid authorization"})
			return
		}
		claims, userID, err := parseAuthToken(secret, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized", Message: "invalid token"})
			return
		}
		c.Set(userIDKey, userID)
		c.Set(roleKey, claims.Role)
		c.Next()
	}
}

// RequirePublisher restricts a route to roles allowed to upload and run operator actions.
func RequirePublisher() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Role(c).CanPublish() {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{Error: "forbidden", Message: "instructor or admin role required"})
			return
		}
		c.Next()
	}
}

func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func Role(c *gin.Context) constant.Role {
	if v, ok := c.Get(roleKey); ok {
		if r, ok := v.(constant.Role); ok {
			return r
		}
	}
	return ""
}

package webserver

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/matchday-bot/matchday/src/config"
)

type Auth struct {
	adminKey  string
	jwtSecret []byte
}

func NewAuth(cfg config.Config) Auth {
	return Auth{adminKey: cfg.AdminKey, jwtSecret: []byte(cfg.JWTSecret)}
}

// Login exchanges the deployment admin key for a bearer token.
func (a Auth) Login(c *gin.Context) {
	var req struct {
		Key string `json:"key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if a.adminKey == "" || len(a.jwtSecret) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"err": "admin access not configured"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Key), []byte(a.adminKey)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "bad key"})
		return
	}
	token, err := issueJWT(a.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func issueJWT(secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "admin",
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString(secret)
}

func JWTMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		tok, err := jwt.Parse(h[7:], func(t *jwt.Token) (interface{}, error) { return secret, nil })
		if err != nil || !tok.Valid {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

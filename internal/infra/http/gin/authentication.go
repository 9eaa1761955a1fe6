package ginserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"staysettle/internal/domain/auth"
)

// tokenClaims is what the identity provider signs: the subject is the user id.
type tokenClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// AuthMiddleware resolves a bearer token into an auth.Principal stored on the
// request context. Requests without a valid token continue anonymously and
// are rejected by the handlers that need a principal.
type AuthMiddleware struct {
	Secret []byte
	Logger *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || len(m.Secret) == 0 {
		c.Next()
		return
	}
	p, err := m.parse(token)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
	c.Next()
}

func (m AuthMiddleware) parse(raw string) (auth.Principal, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return m.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return auth.Principal{}, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return auth.Principal{}, errors.New("token subject missing")
	}
	p := auth.Principal{ID: claims.Subject}
	for _, r := range claims.Roles {
		p.Roles = append(p.Roles, auth.Role(strings.ToLower(strings.TrimSpace(r))))
	}
	return p, nil
}

// IssueToken signs a token for p. Used by tests and the dev token command.
func IssueToken(secret []byte, p auth.Principal, claims jwt.RegisteredClaims) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("jwt secret not configured")
	}
	roles := make([]string, 0, len(p.Roles))
	for _, r := range p.Roles {
		roles = append(roles, string(r))
	}
	claims.Subject = p.ID
	return jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{Roles: roles, RegisteredClaims: claims}).SignedString(secret)
}

func currentPrincipal(c *gin.Context) (auth.Principal, bool) {
	return auth.FromContext(c.Request.Context())
}

// requirePrincipal answers 401 when the request carries no valid token. Role
// checks are left to the bus so every entry point enforces them the same way.
func requirePrincipal(c *gin.Context) (auth.Principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return auth.Principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

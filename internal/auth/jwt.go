package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the subset of a Supabase access token we rely on.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks Supabase-issued HS256 access tokens.
type Verifier struct {
	secret []byte
	// Touch is called in the background after a successful verification.
	Touch func(ctx context.Context, userID, email string)
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(strings.TrimSpace(secret))}
}

// Parse validates the token and returns the user id and claims.
func (v *Verifier) Parse(raw string) (string, *Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", nil, ErrInvalidToken
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return "", nil, ErrInvalidToken
	}
	return uid.String(), claims, nil
}

func bearer(c *fiber.Ctx) (string, error) {
	h := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if h == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(parts[1]), nil
}

func (v *Verifier) authenticate(c *fiber.Ctx, raw string) error {
	userID, claims, err := v.Parse(raw)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}

	SetUser(c, userID, claims.Email)

	if v.Touch != nil && !skipTouch(c) {
		go func(uid, email string) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			v.Touch(ctx, uid, email)
		}(userID, claims.Email)
	}
	return nil
}

// RequireAuth rejects requests without a valid bearer token.
func (v *Verifier) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserID(c) != "" {
			return c.Next()
		}
		raw, err := bearer(c)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		if err := v.authenticate(c, raw); err != nil {
			return err
		}
		return c.Next()
	}
}

// OptionalAuth lets anonymous requests through but still rejects bad tokens.
func (v *Verifier) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, err := bearer(c)
		if errors.Is(err, ErrMissingToken) {
			return c.Next()
		}
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		if err := v.authenticate(c, raw); err != nil {
			return err
		}
		return c.Next()
	}
}

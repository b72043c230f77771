package auth

import (
	"fmt"
	"time"

	"dispatch-gateway/core"

	"github.com/golang-jwt/jwt/v5"
)

// AppClaims represents the custom claims for the JWT.
type AppClaims struct {
	jwt.RegisteredClaims
	Login     string    `json:"login"`
	Role      core.Role `json:"role"`
	Email     string    `json:"email,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Name      string    `json:"name"`
}

// Tokens issues and validates HS256 application tokens. It is the gateway's
// core.TokenValidator.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for user.
func (t *Tokens) Issue(user *core.User) (string, error) {
	if len(t.secret) == 0 {
		return "", fmt.Errorf("JWT_SECRET is not set")
	}
	if user.Subject == "" {
		return "", fmt.Errorf("user subject is required")
	}

	role := user.Role
	if role == "" {
		role = core.RoleCustomer
	}

	now := t.now()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Login:     user.Login,
		Role:      role,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		Name:      user.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse verifies the signature and expiry of tokenString.
func (t *Tokens) Parse(tokenString string) (*AppClaims, error) {
	if len(t.secret) == 0 {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}

	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// Validate implements core.TokenValidator.
func (t *Tokens) Validate(tokenString string) (*core.Actor, error) {
	claims, err := t.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	role := claims.Role
	switch role {
	case core.RoleCustomer, core.RoleStaff, core.RoleAdmin:
	default:
		return nil, fmt.Errorf("token has unknown role %q", role)
	}

	return &core.Actor{
		ID:    claims.Subject,
		Role:  role,
		Login: claims.Login,
		Name:  claims.Name,
	}, nil
}

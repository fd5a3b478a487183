package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sprayline/foamops-api/internal/config"
	"github.com/sprayline/foamops-api/internal/domain"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrMissingTenant = errors.New("token missing company")
)

// Claims is what the session service puts in a bearer token
type Claims struct {
	CompanyID string   `json:"company_id"`
	Name      string   `json:"name,omitempty"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTValidator validates HS256 session tokens
type JWTValidator struct {
	key    []byte
	issuer string
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(cfg *config.AuthConfig) *JWTValidator {
	return &JWTValidator{
		key:    []byte(cfg.JWTSigningKey),
		issuer: cfg.JWTIssuer,
	}
}

// ValidateToken validates a JWT token and returns user context
func (v *JWTValidator) ValidateToken(tokenString string) (*UserContext, error) {
	if len(v.key) == 0 {
		return nil, fmt.Errorf("%w: no signing key configured", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	companyID := strings.TrimSpace(claims.CompanyID)
	if companyID == "" {
		return nil, ErrMissingTenant
	}

	user := &UserContext{
		UserID:      claims.Subject,
		DisplayName: claims.Name,
		Email:       claims.Email,
		Roles:       ParseRoles(claims.Roles),
		CompanyID:   domain.CompanyID(companyID),
	}
	if user.UserID == "" {
		user.UserID = user.Email
	}
	return user, nil
}

// IssueToken signs a session token. Used by tooling and tests; production
// tokens come from the session service with the same key.
func (v *JWTValidator) IssueToken(user *UserContext, ttl time.Duration) (string, error) {
	if len(v.key) == 0 {
		return "", fmt.Errorf("%w: no signing key configured", ErrInvalidToken)
	}
	now := time.Now()
	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, string(r))
	}
	claims := Claims{
		CompanyID: string(user.CompanyID),
		Name:      user.DisplayName,
		Email:     user.Email,
		Roles:     roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

// ParseRoles keeps the roles this API understands and drops the rest
func ParseRoles(raw []string) []domain.UserRole {
	roles := []domain.UserRole{}
	for _, r := range raw {
		switch role := domain.UserRole(strings.ToLower(strings.TrimSpace(r))); role {
		case domain.RoleAdmin, domain.RoleCrew:
			roles = append(roles, role)
		}
	}
	return roles
}

// Package auth verifies the tokens riding on realtime envelopes and holds
// the credential attached to outbound traffic. Token issuance and refresh
// belong to the host application, not this module.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
)

// Claims represents the JWT claims
type Claims struct {
	UserID string   `json:"sub"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT verification configuration
type JWTConfig struct {
	SigningMethod string   // RS256 or HS256
	PublicKey     string   // For RS256
	SecretKey     string   // For HS256
	Issuer        string   // Expected issuer
	Audience      []string // Expected audience
}

// JWTVerifier checks envelope auth tokens
type JWTVerifier struct {
	publicKey     *rsa.PublicKey
	secretKey     []byte
	signingMethod jwt.SigningMethod
	issuer        string
	audience      []string
}

// NewJWTVerifier creates a new JWT verifier
func NewJWTVerifier(config JWTConfig) (*JWTVerifier, error) {
	verifier := &JWTVerifier{
		issuer:   config.Issuer,
		audience: config.Audience,
	}

	switch config.SigningMethod {
	case "RS256":
		verifier.signingMethod = jwt.SigningMethodRS256
		if config.PublicKey == "" {
			return nil, errors.New("public key required for RS256")
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(config.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		verifier.publicKey = key
	case "HS256":
		verifier.signingMethod = jwt.SigningMethodHS256
		if config.SecretKey == "" {
			return nil, errors.New("secret key required for HS256")
		}
		verifier.secretKey = []byte(config.SecretKey)
	default:
		return nil, fmt.Errorf("unsupported signing method: %s", config.SigningMethod)
	}

	return verifier, nil
}

// Validate checks a token and returns an UNAUTHORIZED error when it cannot
// be trusted.
func (v *JWTVerifier) Validate(tokenString string) error {
	_, err := v.ValidateClaims(tokenString)
	return err
}

// ValidateClaims validates a token and returns the claims
func (v *JWTVerifier) ValidateClaims(tokenString string) (*Claims, error) {
	// Remove "Bearer " prefix if present
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	tokenString = strings.TrimSpace(tokenString)

	if tokenString == "" {
		return nil, pkgerrors.NewUnauthorized("missing authentication token")
	}

	// Parse token with claims
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if token.Method != v.signingMethod {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method)
		}

		// Return appropriate key based on method
		switch v.signingMethod {
		case jwt.SigningMethodRS256:
			return v.publicKey, nil
		case jwt.SigningMethodHS256:
			return v.secretKey, nil
		default:
			return nil, errors.New("unknown signing method")
		}
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, pkgerrors.NewUnauthorized("token has expired")
		}
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, pkgerrors.NewUnauthorized("invalid token signature")
		}
		return nil, pkgerrors.NewUnauthorized("invalid token")
	}

	// Extract and validate claims
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, pkgerrors.NewUnauthorized("invalid token claims")
	}

	// Validate issuer
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, pkgerrors.NewUnauthorized("invalid token issuer")
	}

	// Validate audience
	if len(v.audience) > 0 {
		validAudience := false
		for _, aud := range v.audience {
			if contains(claims.Audience, aud) {
				validAudience = true
				break
			}
		}
		if !validAudience {
			return nil, pkgerrors.NewUnauthorized("invalid token audience")
		}
	}

	if claims.UserID == "" {
		return nil, pkgerrors.NewUnauthorized("token missing user ID")
	}

	return claims, nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// Package identity is the boundary to the external identity provider: session
// token verification against its JWKS and signed webhook verification.
package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer is returned when the token issuer is invalid
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience is returned when the token audience is invalid
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrInvalidAuthorizedParty is returned when azp is not an allowed origin
	ErrInvalidAuthorizedParty = errors.New("invalid authorized party")

	// ErrJWKSFetchFailed is returned when JWKS fetching fails
	ErrJWKSFetchFailed = errors.New("failed to fetch JWKS")
)

// JWKS represents the JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// sessionClaims are the JWT claims of a provider session token
type sessionClaims struct {
	jwt.RegisteredClaims
	SessionID       string `json:"sid"`
	Email           string `json:"email,omitempty"`
	AuthorizedParty string `json:"azp,omitempty"`
}

// Config holds configuration for the Validator
type Config struct {
	Issuer            string
	JWKSURL           string
	Audience          string   // optional
	AuthorizedParties []string // optional; checked against azp when set
	CacheTTL          time.Duration
	HTTPTimeout       time.Duration
	Leeway            time.Duration
}

// Validator verifies RS256 session tokens issued by the identity provider
type Validator struct {
	issuer            string
	audience          string
	authorizedParties map[string]struct{}
	jwksURL           string
	leeway            time.Duration
	httpClient        *http.Client

	jwksCache    *JWKS
	jwksCacheExp time.Time
	jwksCacheTTL time.Duration
	cacheMu      sync.RWMutex

	keyCache   map[string]*rsa.PublicKey
	keyCacheMu sync.RWMutex
}

// NewValidator creates a new session token validator
func NewValidator(config Config) *Validator {
	if config.CacheTTL == 0 {
		config.CacheTTL = 1 * time.Hour
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 10 * time.Second
	}
	if config.Leeway == 0 {
		config.Leeway = 5 * time.Second
	}

	parties := make(map[string]struct{}, len(config.AuthorizedParties))
	for _, p := range config.AuthorizedParties {
		parties[p] = struct{}{}
	}

	return &Validator{
		issuer:            config.Issuer,
		audience:          config.Audience,
		authorizedParties: parties,
		jwksURL:           config.JWKSURL,
		leeway:            config.Leeway,
		jwksCacheTTL:      config.CacheTTL,
		httpClient: &http.Client{
			Timeout: config.HTTPTimeout,
		},
		keyCache: make(map[string]*rsa.PublicKey),
	}
}

// ValidateToken verifies the token signature and claims and returns the session
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("kid header not found")
		}

		publicKey, err := v.getPublicKey(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("failed to get public key: %w", err)
		}
		return publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrInvalidIssuer, v.issuer, claims.Issuer)
	}

	if v.audience != "" && !containsAudience(claims.Audience, v.audience) {
		return nil, ErrInvalidAudience
	}

	if len(v.authorizedParties) > 0 && claims.AuthorizedParty != "" {
		if _, ok := v.authorizedParties[claims.AuthorizedParty]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidAuthorizedParty, claims.AuthorizedParty)
		}
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}

	out := &Claims{
		Subject:         claims.Subject,
		SessionID:       claims.SessionID,
		Email:           claims.Email,
		AuthorizedParty: claims.AuthorizedParty,
		Issuer:          claims.Issuer,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// FetchJWKS fetches the JWKS from the provider
func (v *Validator) FetchJWKS(ctx context.Context) (*JWKS, error) {
	v.cacheMu.RLock()
	if v.jwksCache != nil && time.Now().Before(v.jwksCacheExp) {
		defer v.cacheMu.RUnlock()
		return v.jwksCache, nil
	}
	v.cacheMu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrJWKSFetchFailed, resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	v.cacheMu.Lock()
	v.jwksCache = &jwks
	v.jwksCacheExp = time.Now().Add(v.jwksCacheTTL)
	v.cacheMu.Unlock()

	return &jwks, nil
}

// getPublicKey retrieves the public key for a given kid. An unknown kid forces
// one JWKS refresh so rotated keys are picked up before the cache expires.
func (v *Validator) getPublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.keyCacheMu.RLock()
	if key, exists := v.keyCache[kid]; exists {
		v.keyCacheMu.RUnlock()
		return key, nil
	}
	v.keyCacheMu.RUnlock()

	jwks, err := v.FetchJWKS(ctx)
	if err != nil {
		return nil, err
	}

	jwk := findKey(jwks, kid)
	if jwk == nil {
		v.InvalidateCache()
		if jwks, err = v.FetchJWKS(ctx); err != nil {
			return nil, err
		}
		if jwk = findKey(jwks, kid); jwk == nil {
			return nil, fmt.Errorf("key with kid %s not found in JWKS", kid)
		}
	}

	publicKey, err := jwkToRSAPublicKey(jwk)
	if err != nil {
		return nil, fmt.Errorf("failed to convert JWK to RSA public key: %w", err)
	}

	v.keyCacheMu.Lock()
	v.keyCache[kid] = publicKey
	v.keyCacheMu.Unlock()

	return publicKey, nil
}

func findKey(jwks *JWKS, kid string) *JWK {
	for i := range jwks.Keys {
		if jwks.Keys[i].Kid == kid {
			return &jwks.Keys[i]
		}
	}
	return nil
}

func jwkToRSAPublicKey(jwk *JWK) (*rsa.PublicKey, error) {
	if jwk.Kty != "" && jwk.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type %s", jwk.Kty)
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var e int
	for _, b := range eBytes {
		e = e*256 + int(b)
	}

	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}

func containsAudience(audiences jwt.ClaimStrings, expected string) bool {
	for _, aud := range audiences {
		if aud == expected {
			return true
		}
	}
	return false
}

// InvalidateCache drops the cached JWKS and parsed keys
func (v *Validator) InvalidateCache() {
	v.cacheMu.Lock()
	v.jwksCache = nil
	v.jwksCacheExp = time.Time{}
	v.cacheMu.Unlock()

	v.keyCacheMu.Lock()
	v.keyCache = make(map[string]*rsa.PublicKey)
	v.keyCacheMu.Unlock()
}

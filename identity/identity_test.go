package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer = "https://clerk.example.com"
	testKid    = "test-kid-123"
)

func generateTestKeyPair(t *testing.T) *rsa.PrivateKey {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return privateKey
}

func createMockJWKSServer(t *testing.T, publicKey *rsa.PublicKey, kid string, hits *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		jwks := JWKS{Keys: []JWK{{
			Kid: kid,
			Kty: "RSA",
			Alg: "RS256",
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(publicKey.E)).Bytes()),
		}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims *sessionClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKid
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() *sessionClaims {
	now := time.Now()
	return &sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "user_2abc",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		SessionID:       "sess_123",
		AuthorizedParty: "https://books.example.com",
	}
}

func newTestValidator(url string) *Validator {
	return NewValidator(Config{
		Issuer:            testIssuer,
		JWKSURL:           url,
		AuthorizedParties: []string{"https://books.example.com"},
	})
}

func TestValidateToken_Success(t *testing.T) {
	key := generateTestKeyPair(t)
	server := createMockJWKSServer(t, &key.PublicKey, testKid, nil)
	defer server.Close()

	claims, err := newTestValidator(server.URL).ValidateToken(context.Background(), signToken(t, key, validClaims()))

	require.NoError(t, err)
	assert.Equal(t, "user_2abc", claims.Subject)
	assert.Equal(t, "sess_123", claims.SessionID)
	assert.Equal(t, testIssuer, claims.Issuer)
	assert.False(t, claims.ExpiresAt.IsZero())
}

func TestValidateToken_Failures(t *testing.T) {
	key := generateTestKeyPair(t)
	other := generateTestKeyPair(t)
	server := createMockJWKSServer(t, &key.PublicKey, testKid, nil)
	defer server.Close()

	tests := []struct {
		name    string
		signer  *rsa.PrivateKey
		mutate  func(c *sessionClaims)
		wantErr error
	}{
		{"wrong signing key", other, func(c *sessionClaims) {}, ErrInvalidToken},
		{"expired", key, func(c *sessionClaims) {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		}, ErrTokenExpired},
		{"wrong issuer", key, func(c *sessionClaims) { c.Issuer = "https://evil.example.com" }, ErrInvalidIssuer},
		{"unknown authorized party", key, func(c *sessionClaims) { c.AuthorizedParty = "https://evil.example.com" }, ErrInvalidAuthorizedParty},
		{"missing subject", key, func(c *sessionClaims) { c.Subject = "" }, ErrInvalidToken},
		{"missing expiry", key, func(c *sessionClaims) { c.ExpiresAt = nil }, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(claims)
			_, err := newTestValidator(server.URL).ValidateToken(context.Background(), signToken(t, tt.signer, claims))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateToken_Audience(t *testing.T) {
	key := generateTestKeyPair(t)
	server := createMockJWKSServer(t, &key.PublicKey, testKid, nil)
	defer server.Close()

	v := NewValidator(Config{Issuer: testIssuer, JWKSURL: server.URL, Audience: "books"})

	claims := validClaims()
	claims.Audience = jwt.ClaimStrings{"other"}
	_, err := v.ValidateToken(context.Background(), signToken(t, key, claims))
	assert.ErrorIs(t, err, ErrInvalidAudience)

	claims.Audience = jwt.ClaimStrings{"books"}
	_, err = v.ValidateToken(context.Background(), signToken(t, key, claims))
	assert.NoError(t, err)
}

func TestFetchJWKS_Cached(t *testing.T) {
	key := generateTestKeyPair(t)
	var hits int32
	server := createMockJWKSServer(t, &key.PublicKey, testKid, &hits)
	defer server.Close()

	v := newTestValidator(server.URL)
	for i := 0; i < 3; i++ {
		_, err := v.ValidateToken(context.Background(), signToken(t, key, validClaims()))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	v.InvalidateCache()
	_, err := v.FetchJWKS(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFetchJWKS_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestValidator(server.URL).FetchJWKS(context.Background())
	assert.ErrorIs(t, err, ErrJWKSFetchFailed)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, ClaimsFromContext(ctx))
	assert.Nil(t, ActorFromContext(ctx))

	claims := &Claims{Subject: "user_1"}
	ctx = WithClaims(ctx, claims)
	assert.Equal(t, claims, ClaimsFromContext(ctx))

	ctx = WithSystemActor(ctx)
	actor := ActorFromContext(ctx)
	require.NotNil(t, actor)
	assert.True(t, actor.System)
	assert.Equal(t, models.RoleSysAdmin, actor.Role)
}

func newTestVerifier(t *testing.T, now time.Time) *WebhookVerifier {
	secret := "whsec_" + base64.StdEncoding.EncodeToString([]byte("super-secret-signing-key"))
	v, err := NewWebhookVerifier(secret, 5*time.Minute)
	require.NoError(t, err)
	v.clock = func() time.Time { return now }
	return v
}

func signedHeader(v *WebhookVerifier, id string, ts time.Time, body []byte) http.Header {
	h := http.Header{}
	h.Set(HeaderWebhookID, id)
	h.Set(HeaderWebhookTimestamp, strconv.FormatInt(ts.Unix(), 10))
	h.Set(HeaderWebhookSignature, "v1,bm90LXRoaXMtb25l v1,"+v.Sign(id, ts, body))
	return h
}

func TestWebhookVerifier(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestVerifier(t, now)
	body := []byte(`{"type":"user.created"}`)

	t.Run("valid signature among several", func(t *testing.T) {
		assert.NoError(t, v.Verify(signedHeader(v, "msg_1", now, body), body))
	})

	t.Run("tampered body", func(t *testing.T) {
		h := signedHeader(v, "msg_1", now, body)
		assert.ErrorIs(t, v.Verify(h, []byte(`{"type":"user.deleted"}`)), ErrWebhookSignature)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		old := now.Add(-6 * time.Minute)
		assert.ErrorIs(t, v.Verify(signedHeader(v, "msg_1", old, body), body), ErrWebhookTimestamp)
	})

	t.Run("future timestamp", func(t *testing.T) {
		future := now.Add(6 * time.Minute)
		assert.ErrorIs(t, v.Verify(signedHeader(v, "msg_1", future, body), body), ErrWebhookTimestamp)
	})

	t.Run("missing headers", func(t *testing.T) {
		assert.ErrorIs(t, v.Verify(http.Header{}, body), ErrMissingWebhookHeaders)
	})
}

func TestNewWebhookVerifier_InvalidSecret(t *testing.T) {
	_, err := NewWebhookVerifier("whsec_!!!", time.Minute)
	assert.Error(t, err)

	_, err = NewWebhookVerifier("", time.Minute)
	assert.Error(t, err)
}

func TestParseUserEvent(t *testing.T) {
	body := []byte(`{
		"type": "user.created",
		"data": {
			"id": "user_2abc",
			"first_name": "Ana",
			"last_name": "Cruz",
			"image_url": "https://img.example.com/a.png",
			"primary_email_address_id": "idn_2",
			"email_addresses": [
				{"id": "idn_1", "email_address": "old@example.com"},
				{"id": "idn_2", "email_address": "ana@example.com"}
			]
		}
	}`)

	evt, err := ParseUserEvent(body)
	require.NoError(t, err)
	assert.Equal(t, EventUserCreated, evt.Type)
	assert.Equal(t, "user_2abc", evt.ExternalID)
	assert.Equal(t, "ana@example.com", evt.Email)
	assert.Equal(t, "Ana", evt.FirstName)

	deleted, err := ParseUserEvent([]byte(`{"type":"user.deleted","data":{"id":"user_2abc","deleted":true}}`))
	require.NoError(t, err)
	assert.Equal(t, EventUserDeleted, deleted.Type)
	assert.Empty(t, deleted.Email)

	_, err = ParseUserEvent([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidWebhookPayload)

	_, err = ParseUserEvent([]byte(`{"type":"user.created","data":{}}`))
	assert.ErrorIs(t, err, ErrInvalidWebhookPayload)
}

// Package pagination turns DynamoDB resume keys into opaque continuation
// tokens safe to hand to untrusted callers.
//
// A token is the JSON resume key plus an expiry, sealed with AES-256-GCM and
// base64url encoded. GCM authentication makes any bit-level tampering fail on
// decode, and rotating the secret invalidates every outstanding token.
package pagination

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrInvalidToken indicates a token that is malformed, fails authentication,
// or has expired. Callers should restart pagination from the first page.
var ErrInvalidToken = errors.New("invalid pagination token")

// TokenSerializer encodes and decodes continuation tokens.
type TokenSerializer struct {
	aead    cipher.AEAD
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewTokenSerializer derives an AES-256 key from secret and returns a
// serializer issuing tokens valid for ttl.
func NewTokenSerializer(secret string, ttl time.Duration) (*TokenSerializer, error) {
	if secret == "" {
		return nil, errors.New("pagination: secret must not be empty")
	}
	if ttl <= 0 {
		return nil, errors.New("pagination: ttl must be positive")
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("pagination: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("pagination: new gcm: %w", err)
	}
	return &TokenSerializer{
		aead:    aead,
		ttl:     ttl,
		nowFunc: time.Now,
	}, nil
}

// tokenAttr carries one resume-key attribute with its DynamoDB type tag, so
// string and number values survive the round trip unchanged.
type tokenAttr struct {
	S *string `json:"s,omitempty"`
	N *string `json:"n,omitempty"`
}

type tokenPayload struct {
	Key       map[string]tokenAttr `json:"k"`
	ExpiresAt int64                `json:"e"`
}

// Serialize seals the resume key into an opaque token expiring ttl from now.
// Resume keys only ever hold string and number attributes; anything else is
// an error, not a silent drop.
func (ts *TokenSerializer) Serialize(resumeKey map[string]types.AttributeValue) (string, error) {
	if len(resumeKey) == 0 {
		return "", errors.New("pagination: empty resume key")
	}

	payload := tokenPayload{
		Key:       make(map[string]tokenAttr, len(resumeKey)),
		ExpiresAt: ts.nowFunc().Add(ts.ttl).Unix(),
	}
	for name, av := range resumeKey {
		switch v := av.(type) {
		case *types.AttributeValueMemberS:
			s := v.Value
			payload.Key[name] = tokenAttr{S: &s}
		case *types.AttributeValueMemberN:
			n := v.Value
			payload.Key[name] = tokenAttr{N: &n}
		default:
			return "", fmt.Errorf("pagination: unsupported attribute type for %q", name)
		}
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("pagination: marshal payload: %w", err)
	}

	nonce := make([]byte, ts.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("pagination: read nonce: %w", err)
	}
	sealed := ts.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Deserialize opens a token and returns the original resume key. Every
// failure mode collapses to ErrInvalidToken: callers get no oracle about
// which check rejected the token.
func (ts *TokenSerializer) Deserialize(token string) (map[string]types.AttributeValue, error) {
	// strict decoding: trailing padding bits must be zero, so every bit of
	// the token is covered by tamper detection
	data, err := base64.RawURLEncoding.Strict().DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if len(data) < ts.aead.NonceSize() {
		return nil, ErrInvalidToken
	}

	nonce, ciphertext := data[:ts.aead.NonceSize()], data[ts.aead.NonceSize():]
	plaintext, err := ts.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidToken
	}

	var payload tokenPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, ErrInvalidToken
	}
	if len(payload.Key) == 0 {
		return nil, ErrInvalidToken
	}
	if ts.nowFunc().After(time.Unix(payload.ExpiresAt, 0)) {
		return nil, ErrInvalidToken
	}

	resumeKey := make(map[string]types.AttributeValue, len(payload.Key))
	for name, attr := range payload.Key {
		switch {
		case attr.S != nil:
			resumeKey[name] = &types.AttributeValueMemberS{Value: *attr.S}
		case attr.N != nil:
			resumeKey[name] = &types.AttributeValueMemberN{Value: *attr.N}
		default:
			return nil, ErrInvalidToken
		}
	}
	return resumeKey, nil
}

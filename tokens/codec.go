package tokens

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/kbukum/filepipe/errors"
	"github.com/kbukum/filepipe/pipeline"
)

// Claims is the JWT payload carried by a pipeline token.
type Claims struct {
	PipelineSteps []pipeline.StepSpec `json:"pipeline_steps"`
	jwt.RegisteredClaims
}

// Codec verifies and decodes pipeline payloads. With an empty secret,
// payloads are treated as unsigned JSON documents.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec with an HS256 signing secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Decode parses a token payload into the pipeline steps it requests.
func (c *Codec) Decode(payload string) ([]pipeline.StepSpec, error) {
	if len(c.secret) == 0 {
		var claims Claims
		if err := json.Unmarshal([]byte(payload), &claims); err != nil {
			return nil, apperrors.InvalidToken().WithCause(err)
		}
		return claims.PipelineSteps, nil
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(payload, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.TokenExpired()
		}
		return nil, apperrors.InvalidToken().WithCause(err)
	}
	if !token.Valid {
		return nil, apperrors.InvalidToken()
	}
	return claims.PipelineSteps, nil
}

// Encode signs a pipeline payload valid for ttl. Used by tests and by
// tooling that seeds tokens.
func (c *Codec) Encode(steps []pipeline.StepSpec, ttl time.Duration) (string, error) {
	if len(c.secret) == 0 {
		raw, err := json.Marshal(Claims{PipelineSteps: steps})
		if err != nil {
			return "", apperrors.Internal(err)
		}
		return string(raw), nil
	}

	now := time.Now()
	claims := Claims{
		PipelineSteps: steps,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", apperrors.Internal(err)
	}
	return signed, nil
}

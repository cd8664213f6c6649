// Package token issues compact JWS tokens of the form
// base64url(header).base64url(claims).base64url(signature) and reuses a
// signed token until it's older than the configured lifetime.
package token

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/signatory-io/sigengine/logger"
	"github.com/signatory-io/sigengine/signature"
)

// MessageSigner produces a signature over message using alg.
type MessageSigner interface {
	SignMessage(ctx context.Context, alg *signature.SigningAlgorithm, message []byte) ([]byte, error)
}

// SignerFunc adapts a function to MessageSigner.
type SignerFunc func(ctx context.Context, alg *signature.SigningAlgorithm, message []byte) ([]byte, error)

func (f SignerFunc) SignMessage(ctx context.Context, alg *signature.SigningAlgorithm, message []byte) ([]byte, error) {
	return f(ctx, alg, message)
}

// FromKeyPair signs with an in-memory key pair.
func FromKeyPair(kp signature.KeyPair, rng io.Reader) MessageSigner {
	return SignerFunc(func(_ context.Context, alg *signature.SigningAlgorithm, message []byte) ([]byte, error) {
		return kp.SignMessage(alg, rng, message)
	})
}

type Config struct {
	KeyID  string
	Issuer string
	// TTL is the token lifetime. Zero issues a new token on every call.
	TTL time.Duration
	// Algorithm defaults to ECDSA_P256_SHA256_FIXED_SIGNING (ES256)
	Algorithm *signature.SigningAlgorithm
}

type cachedToken struct {
	token    string
	issuedAt time.Time
}

type Signer struct {
	signer MessageSigner
	conf   Config
	name   string
	log    logger.Logger
	cur    atomic.Pointer[cachedToken]
	mtx    sync.Mutex

	// Now returns the current time. Set it before the first call to Token.
	Now func() time.Time
}

// New validates the configuration. The first token is issued on the first
// call to Token.
func New(s MessageSigner, conf *Config, log logger.Logger) (*Signer, error) {
	c := *conf
	if c.Algorithm == nil {
		c.Algorithm = signature.ECDSA_P256_SHA256_FIXED_SIGNING
	}
	name, ok := algNames[c.Algorithm]
	if !ok {
		return nil, fmt.Errorf("token: %v has no JWS name", c.Algorithm)
	}
	if c.TTL < 0 {
		return nil, fmt.Errorf("token: negative TTL: %v", c.TTL)
	}
	if log == nil {
		log = logger.Nop
	}
	return &Signer{
		signer: s,
		conf:   c,
		name:   name,
		log:    log.WithFields(map[string]any{"kid": c.KeyID, "iss": c.Issuer}),
		Now:    time.Now,
	}, nil
}

func (s *Signer) expired(t *cachedToken, now time.Time) bool {
	return t == nil || now.Sub(t.issuedAt) >= s.conf.TTL
}

// Token returns the cached token, renewing it first if it has expired.
// Concurrent callers share a single renewal.
func (s *Signer) Token(ctx context.Context) (string, error) {
	t := s.cur.Load()
	if s.expired(t, s.Now()) {
		s.mtx.Lock()
		defer s.mtx.Unlock()
		now := s.Now()
		if t = s.cur.Load(); s.expired(t, now) {
			var err error
			if t, err = s.issue(ctx, now); err != nil {
				return "", err
			}
			s.cur.Store(t)
		}
	}
	s.log.Tracef("Token valid for %v", s.conf.TTL-s.Now().Sub(t.issuedAt))
	return t.token, nil
}

func (s *Signer) issue(ctx context.Context, now time.Time) (*cachedToken, error) {
	issuedAt := now.Truncate(time.Second)
	input, err := signingInput(&Header{Algorithm: s.name, KeyID: s.conf.KeyID}, &Claims{Issuer: s.conf.Issuer, IssuedAt: issuedAt.Unix()})
	if err != nil {
		return nil, err
	}
	sig, err := s.signer.SignMessage(ctx, s.conf.Algorithm, []byte(input))
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	s.log.Tracef("Token renewed, issued at %d, valid for %v", issuedAt.Unix(), s.conf.TTL)
	return &cachedToken{
		token:    input + "." + b64.EncodeToString(sig),
		issuedAt: issuedAt,
	}, nil
}

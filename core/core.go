// Package core assembles the signing service from its configuration.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/signatory-io/sigengine/crypto"
	"github.com/signatory-io/sigengine/logger"
	"github.com/signatory-io/sigengine/signature"
	"github.com/signatory-io/sigengine/signer"
	"github.com/signatory-io/sigengine/token"
	"github.com/signatory-io/sigengine/vault"

	// vault drivers
	_ "github.com/signatory-io/sigengine/vault/awskms"
	_ "github.com/signatory-io/sigengine/vault/local"
)

type Service struct {
	signer *signer.Signer
	conf   *Config
	logger logger.Logger
}

func New(ctx context.Context, conf *Config, log logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.Nop
	}
	s, err := signer.NewWithConfig(ctx, conf, log)
	if err != nil {
		return nil, err
	}
	log.With("base_path", conf.BasePath).Debug("Signing service is ready")
	return &Service{
		signer: s,
		conf:   conf,
		logger: log,
	}, nil
}

func (s *Service) Signer() *signer.Signer { return s.signer }

// TokenSigner returns a token issuer signing with the configured vault key.
// sm is used if the key is locked.
func (s *Service) TokenSigner(sm vault.SecretManager) (*token.Signer, error) {
	tc := s.conf.Token
	if tc == nil {
		return nil, fmt.Errorf("%w: token issuer is not configured", vault.ErrConfig)
	}
	var pkh crypto.PublicKeyHash
	if err := pkh.UnmarshalText([]byte(tc.Key)); err != nil {
		return nil, fmt.Errorf("%w: token key: %v", vault.ErrConfig, err)
	}
	conf := token.Config{
		KeyID:  tc.KeyID,
		Issuer: tc.Issuer,
	}
	if tc.TTL != "" {
		ttl, err := time.ParseDuration(tc.TTL)
		if err != nil {
			return nil, fmt.Errorf("%w: token ttl: %v", vault.ErrConfig, err)
		}
		conf.TTL = ttl
	}
	if tc.Algorithm != "" {
		alg, err := token.AlgorithmByName(tc.Algorithm)
		if err != nil {
			return nil, err
		}
		conf.Algorithm = alg
	}
	sign := token.SignerFunc(func(ctx context.Context, alg *signature.SigningAlgorithm, message []byte) ([]byte, error) {
		return s.signer.Sign(ctx, &signer.SignRequest{PublicKeyHash: &pkh, Algorithm: alg, Message: message}, sm)
	})
	return token.New(sign, &conf, s.logger.With("component", "token"))
}

func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Debug("Closing vaults")
	return s.signer.Close(ctx)
}

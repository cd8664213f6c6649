package signer

import (
	"context"
	"errors"
	"iter"
	"maps"

	"github.com/signatory-io/sigengine/logger"
	"github.com/signatory-io/sigengine/utils"
	"github.com/signatory-io/sigengine/vault"
)

type Config interface {
	utils.GlobalOptions
	GetVaults() iter.Seq2[string, *vault.Config]
}

// NewWithConfig instantiates every configured vault. Vaults created before a
// failure are closed.
func NewWithConfig(ctx context.Context, conf Config, log logger.Logger) (*Signer, error) {
	if log == nil {
		log = logger.Nop
	}
	vaults := make(map[string]vault.Vault)
	for id, vc := range conf.GetVaults() {
		v, err := vault.New(ctx, vc, conf, nil, log.With("vault", id))
		if err != nil {
			errs := []error{err}
			for _, v := range vaults {
				errs = append(errs, v.Close(ctx))
			}
			return nil, errors.Join(errs...)
		}
		vaults[id] = v
	}
	return New(maps.All(vaults), log), nil
}

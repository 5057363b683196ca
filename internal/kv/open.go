package kv

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/caja/internal/paths"
	"github.com/mesh-intelligence/caja/pkg/types"
)

// Open builds a store on the substrate named in cfg.KV.
func Open(ctx context.Context, cfg types.Config, log *slog.Logger) (*Store, error) {
	sub, err := OpenSubstrate(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(sub, Options{
		Prefix:       cfg.KV.GetPrefix(),
		Seed:         cfg.Seed,
		SeedExamples: cfg.KV.SeedExamples,
		Logger:       log,
	}), nil
}

// OpenSubstrate returns the substrate named in cfg.KV.
func OpenSubstrate(ctx context.Context, cfg types.Config) (Substrate, error) {
	switch name := cfg.KV.GetSubstrate(); name {
	case types.SubstrateFile:
		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir = "."
		}
		return NewFileSubstrate(paths.KVDir(dataDir))
	case types.SubstrateRedis:
		return NewRedisSubstrate(ctx, cfg.Redis)
	case types.SubstrateMemory:
		return NewMemorySubstrate(), nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrSubstrateUnknown, name)
	}
}

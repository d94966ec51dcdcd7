package config

import (
	"context"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"

	"github.com/centurysys/linux-kernel-MAE-sub003/logging"
)

// Read reads a config from the given file. Environment variables in the file are expanded
// before it is parsed as JSON5. Comments, unquoted keys and trailing commas are accepted;
// string values must be double quoted.
func Read(ctx context.Context, filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return fromBytes(ctx, filePath, buf, logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(ctx context.Context, originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	buf, err := envsubst.Bytes(raw)
	if err != nil {
		return nil, err
	}
	return fromBytes(ctx, originalPath, buf, logger)
}

func fromBytes(ctx context.Context, originalPath string, buf []byte, logger logging.Logger) (*Config, error) {
	cfg := Config{ConfigFilePath: originalPath}
	if err := json5.Unmarshal(buf, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode config from %q", originalPath)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %q", originalPath)
	}
	logger.CDebugw(ctx, "read config", "path", originalPath, "boards", len(cfg.Boards))
	return &cfg, nil
}

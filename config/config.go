// Package config reads the configuration file of the xio tools: one or more boards, each an
// xio block with its pins and interrupts.
package config

import (
	"fmt"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/centurysys/linux-kernel-MAE-sub003/components/board/xioboard"
	"github.com/centurysys/linux-kernel-MAE-sub003/logging"
)

// A Config describes the boards of one machine.
type Config struct {
	// ConfigFilePath is the file the config was read from, if any.
	ConfigFilePath string `json:"-"`

	Boards []Board `json:"boards"`
	// LogLevel is debug, info, warn or error. The default is info.
	LogLevel string `json:"log_level,omitempty"`
}

// A Board is a named xio board.
type Board struct {
	Name string `json:"name"`
	xioboard.Config
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate() error {
	if conf.LogLevel != "" {
		if _, err := logging.LevelFromString(conf.LogLevel); err != nil {
			return utils.NewConfigValidationError("log_level", err)
		}
	}
	if len(conf.Boards) == 0 {
		return utils.NewConfigValidationFieldRequiredError("", "boards")
	}
	seen := make(map[string]bool, len(conf.Boards))
	for idx, b := range conf.Boards {
		path := fmt.Sprintf("%s.%d", "boards", idx)
		if b.Name == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "name")
		}
		if seen[b.Name] {
			return utils.NewConfigValidationError(path, errors.Errorf("duplicate board name %q", b.Name))
		}
		seen[b.Name] = true
		if _, err := b.Config.Validate(path); err != nil {
			return err
		}
	}
	return nil
}

// Level returns the configured log level.
func (conf *Config) Level() logging.Level {
	if conf.LogLevel == "" {
		return logging.INFO
	}
	level, err := logging.LevelFromString(conf.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// FindBoard returns the board with the given name. An empty name selects the only board of a
// single board config.
func (conf *Config) FindBoard(name string) (*Board, error) {
	if name == "" {
		if len(conf.Boards) == 1 {
			return &conf.Boards[0], nil
		}
		return nil, errors.Errorf("config has %d boards, pick one by name", len(conf.Boards))
	}
	for i := range conf.Boards {
		if conf.Boards[i].Name == name {
			return &conf.Boards[i], nil
		}
	}
	return nil, errors.Errorf("no board named %q", name)
}

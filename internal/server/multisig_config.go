package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
	"github.com/jacksonlee411/board-multisig/modules/multisig/infrastructure/targets"
	"github.com/jacksonlee411/board-multisig/modules/multisig/services"
	"gopkg.in/yaml.v3"
)

const defaultMaxPageLimit = 200

type multisigConfig struct {
	Version         int            `yaml:"version"`
	BoardID         string         `yaml:"board_id"`
	RosterAuthority string         `yaml:"roster_authority"`
	Targets         []targetConfig `yaml:"targets"`
	TargetPolicy    string         `yaml:"target_policy"`
	Limits          limitsConfig   `yaml:"limits"`
	Page            pageConfig     `yaml:"page"`
}

type targetConfig struct {
	ID       string `yaml:"id"`
	Endpoint string `yaml:"endpoint"`
	Timeout  string `yaml:"timeout"`
}

type limitsConfig struct {
	MaxDescriptionLen int `yaml:"max_description_len"`
	MaxPayloadBytes   int `yaml:"max_payload_bytes"`
}

type pageConfig struct {
	MaxLimit int `yaml:"max_limit"`
}

func parseMultisigConfigYAML(b []byte) (multisigConfig, error) {
	var c multisigConfig
	if err := yaml.Unmarshal(b, &c); err != nil {
		return multisigConfig{}, err
	}
	if c.Version != 1 {
		return multisigConfig{}, errors.New("multisig config: unsupported version")
	}
	if c.Limits.MaxDescriptionLen < 0 || c.Limits.MaxPayloadBytes < 0 || c.Page.MaxLimit < 0 {
		return multisigConfig{}, errors.New("multisig config: limits must not be negative")
	}
	if c.Page.MaxLimit == 0 {
		c.Page.MaxLimit = defaultMaxPageLimit
	}
	seen := map[types.Identity]struct{}{}
	for i, t := range c.Targets {
		id := types.NormalizeIdentity(t.ID)
		if id.IsZero() {
			return multisigConfig{}, fmt.Errorf("multisig config: targets[%d]: id is required", i)
		}
		if _, dup := seen[id]; dup {
			return multisigConfig{}, fmt.Errorf("multisig config: targets[%d]: duplicate id %s", i, id)
		}
		seen[id] = struct{}{}
		if strings.TrimSpace(t.Endpoint) == "" {
			return multisigConfig{}, fmt.Errorf("multisig config: targets[%d]: endpoint is required", i)
		}
		if t.Timeout != "" {
			if _, err := time.ParseDuration(t.Timeout); err != nil {
				return multisigConfig{}, fmt.Errorf("multisig config: targets[%d]: %w", i, err)
			}
		}
	}
	return c, nil
}

func loadMultisigConfig(path string) (multisigConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return multisigConfig{}, err
	}
	return parseMultisigConfigYAML(b)
}

// multisigConfigFromEnv reads MULTISIG_CONFIG_PATH (or the repo default) and
// applies MULTISIG_ROSTER_AUTHORITY and MULTISIG_BOARD_ID overrides.
func multisigConfigFromEnv() (multisigConfig, error) {
	path := os.Getenv("MULTISIG_CONFIG_PATH")
	if path == "" {
		p, err := defaultMultisigConfigPath()
		if err != nil {
			return multisigConfig{}, err
		}
		path = p
	}
	c, err := loadMultisigConfig(path)
	if err != nil {
		return multisigConfig{}, err
	}
	c.RosterAuthority = getenvDefault("MULTISIG_ROSTER_AUTHORITY", c.RosterAuthority)
	c.BoardID = getenvDefault("MULTISIG_BOARD_ID", c.BoardID)
	return c, nil
}

func defaultMultisigConfigPath() (string, error) {
	path := "config/multisig.yaml"
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: multisig config not found")
}

func (c multisigConfig) targetIDs() []types.Identity {
	out := make([]types.Identity, 0, len(c.Targets))
	for _, t := range c.Targets {
		out = append(out, types.NormalizeIdentity(t.ID))
	}
	return out
}

func (c multisigConfig) httpInvoker() targets.HTTPInvoker {
	endpoints := make(map[types.Identity]targets.Endpoint, len(c.Targets))
	for _, t := range c.Targets {
		var timeout time.Duration
		if t.Timeout != "" {
			timeout, _ = time.ParseDuration(t.Timeout)
		}
		endpoints[types.NormalizeIdentity(t.ID)] = targets.Endpoint{URL: strings.TrimSpace(t.Endpoint), Timeout: timeout}
	}
	return targets.HTTPInvoker{Endpoints: endpoints}
}

func (c multisigConfig) limits() services.Limits {
	return services.Limits{
		MaxDescriptionLen: c.Limits.MaxDescriptionLen,
		MaxPayloadBytes:   c.Limits.MaxPayloadBytes,
	}
}

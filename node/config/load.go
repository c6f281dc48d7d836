package config

import (
	"bytes"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/xerrors"
)

// FromFile loads config from a specified file overriding defaults specified in
// the def parameter. If file does not exist or is empty defaults are assumed.
func FromFile(path string, def *Agent) (*Agent, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, xerrors.Errorf("expanding config path: %w", err)
	}

	file, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
		if def == nil {
			return nil, xerrors.Errorf("couldn't load config: %w", err)
		}
		return def, nil
	case err != nil:
		return nil, err
	}

	defer file.Close() //nolint:errcheck // The file is RO
	return FromReader(file, def)
}

// FromReader loads config from a reader instance.
func FromReader(reader io.Reader, def *Agent) (*Agent, error) {
	cfg := def
	if cfg == nil {
		cfg = Default()
	}

	_, err := toml.NewDecoder(reader).Decode(cfg)
	if err != nil {
		return nil, xerrors.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no sensible fallback.
func (c *Agent) Validate() error {
	switch c.Store.Backend {
	case BackendLevelDB:
		if c.Store.Path == "" {
			return xerrors.New("Store.Path must be set for the leveldb backend")
		}
	case BackendMemory:
	default:
		return xerrors.Errorf("unknown Store.Backend %q", c.Store.Backend)
	}
	if c.Store.Collection == "" {
		return xerrors.New("Store.Collection must be set")
	}
	if c.Worker.Concurrency < 1 {
		return xerrors.Errorf("Worker.Concurrency must be at least 1, got %d", c.Worker.Concurrency)
	}
	if c.Worker.QueueSize < 0 {
		return xerrors.Errorf("Worker.QueueSize can't be negative, got %d", c.Worker.QueueSize)
	}
	return nil
}

// ConfigComment returns the config as TOML, as written by `config default`.
func ConfigComment(cfg *Agent) ([]byte, error) {
	buf := new(bytes.Buffer)
	_, _ = buf.WriteString("# Default config:\n")
	e := toml.NewEncoder(buf)
	if err := e.Encode(cfg); err != nil {
		return nil, xerrors.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

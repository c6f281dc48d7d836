package config

import (
	"encoding"
	"time"
)

const (
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"
)

// DefaultPath is where the agent looks for its config file.
const DefaultPath = "~/.filecoin-pickaxe/pickaxe-config"

// Default returns the default config
func Default() *Agent {
	return &Agent{
		Store: Store{
			Backend:    BackendLevelDB,
			Path:       "~/.filecoin-pickaxe/store",
			Collection: "deal-requests",
		},
		Deals: Deals{
			SettleDelay: Duration(time.Second),
		},
		Worker: Worker{
			Concurrency:  4,
			QueueSize:    64,
			ProposeDelay: Duration(2 * time.Second),
		},
		API: API{
			ListenAddress: "127.0.0.1:3456",
			Timeout:       Duration(30 * time.Second),
		},
		Journal: Journal{
			Path: "~/.filecoin-pickaxe",
		},
		Logging: Logging{
			SubsystemLevels: map[string]string{},
		},
	}
}

var _ encoding.TextMarshaler = (*Duration)(nil)
var _ encoding.TextUnmarshaler = (*Duration)(nil)

// Duration is a wrapper type for time.Duration
// for decoding and encoding from/to TOML
type Duration time.Duration

// UnmarshalText implements interface for TOML decoding
func (dur *Duration) UnmarshalText(text []byte) error {
	d, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*dur = Duration(d)
	return err
}

func (dur Duration) MarshalText() ([]byte, error) {
	d := time.Duration(dur)
	return []byte(d.String()), nil
}

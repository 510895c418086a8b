package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix for all settings.
const Prefix = "UPNPD"

type (
	// Settings are the process-level knobs read from the environment. Values
	// left empty fall back to the active database profile. The groups are
	// embedded so every variable is UPNPD_<TAG>.
	Settings struct {
		Database   `json:"database"`
		Logging    `json:"logging"`
		Device     `json:"device"`
		Network    `json:"network"`
		HTTPServer `json:"http_server"`
	}

	Database struct {
		Path string `envconfig:"DB_PATH" default:"" json:"path"`
	}

	Logging struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info" json:"level"`
		Format string `envconfig:"LOG_FORMAT" default:"console" json:"format"`
	}

	Device struct {
		DescriptionFile string `envconfig:"DESCRIPTION_FILE" default:"" json:"description_file"`
		AdvertiseHost   string `envconfig:"ADVERTISE_HOST" default:"" json:"advertise_host"`
	}

	Network struct {
		Interface string `envconfig:"INTERFACE" default:"" json:"interface"`
	}

	HTTPServer struct {
		Address         string        `envconfig:"API_ADDRESS" default:"" json:"address"`
		ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" json:"shutdown_timeout"`
	}
)

// Load reads Settings from UPNPD_* environment variables.
func Load() (*Settings, error) {
	s := &Settings{}
	if err := envconfig.Process(Prefix, s); err != nil {
		return nil, fmt.Errorf("unable to parse settings: %w", err)
	}
	return s, nil
}

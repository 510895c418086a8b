package stack

import (
	"fmt"
	"os"

	"github.com/urmzd/upnpd/pkg/config"
	"github.com/urmzd/upnpd/pkg/db"
)

// Resolve merges environment settings over the active profile. Environment
// values win when set; the description file, if any, is read into Options.
func Resolve(settings *config.Settings, cfg *db.Config) (Options, error) {
	opts := Options{Network: cfg.NetworkOrDefault()}

	descriptionFile := settings.DescriptionFile
	if cfg.Profile != nil {
		if descriptionFile == "" {
			descriptionFile = cfg.Profile.DescriptionFile
		}
		opts.AdvertiseHost = cfg.Profile.AdvertiseHost
	}
	if settings.AdvertiseHost != "" {
		opts.AdvertiseHost = settings.AdvertiseHost
	}
	if settings.Interface != "" {
		opts.Network.Interface = settings.Interface
	}

	if descriptionFile != "" {
		data, err := os.ReadFile(descriptionFile)
		if err != nil {
			return Options{}, fmt.Errorf("read description: %w", err)
		}
		opts.Description = string(data)
	}
	return opts, nil
}

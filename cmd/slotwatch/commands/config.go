package commands

import (
	"errors"

	"slotwatch/lib/configutil"
	"slotwatch/lib/notify"
)

type PortalConfig struct {
	EntryUrl string `json:"entry_url"`
	// Region is the country to select on the entry page, e.g. "India".
	Region   string `json:"region"`
	Username string `json:"username"`
	Password string `json:"password"`
	// Categories are the center/category names to watch, e.g. city names.
	Categories []string `json:"categories"`
}

type Config struct {
	Portal   PortalConfig           `json:"portal"`
	Telegram *notify.TelegramConfig `json:"telegram"`
	Smtp     *notify.SmtpConfig     `json:"smtp"`
	// HealthPort exposes a liveness endpoint when set.
	HealthPort int `json:"health_port"`
}

func readConfig() (Config, error) {
	cfg, err := configutil.ReadConfig[Config](*configPath)
	if err != nil {
		return cfg, err
	}
	if cfg.Portal.EntryUrl == "" {
		return cfg, errors.New("portal.entry_url is required")
	}
	if len(cfg.Portal.Categories) == 0 {
		return cfg, errors.New("portal.categories must name at least one category")
	}
	return cfg, nil
}

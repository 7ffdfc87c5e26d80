package tracking

import "strings"

// Config controls URL construction and which tracking kinds are applied.
type Config struct {
	// BaseURL is the externally reachable origin serving the tracking
	// endpoints, e.g. "https://mail.example.com".
	BaseURL string `env:"TRACKING_BASE_URL" yaml:"base_url"`

	// Prefix is the path prefix the handler is mounted under.
	Prefix string `env:"TRACKING_PREFIX" envDefault:"track" yaml:"prefix"`

	TrackOpens  bool `env:"TRACKING_OPENS" envDefault:"true" yaml:"track_opens"`
	TrackClicks bool `env:"TRACKING_CLICKS" envDefault:"true" yaml:"track_clicks"`
}

func (c Config) normalized() Config {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	c.Prefix = strings.Trim(c.Prefix, "/")
	if c.Prefix == "" {
		c.Prefix = "track"
	}
	return c
}

func (c Config) openURL(logUUID string) string {
	return c.BaseURL + "/" + c.Prefix + "/open/" + logUUID
}

func (c Config) clickURL(logUUID, token string) string {
	return c.BaseURL + "/" + c.Prefix + "/click/" + logUUID + "/" + token
}

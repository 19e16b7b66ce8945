package config

import (
	"net/url"
	"strings"

	"github.com/percona/search-clone/errors"
	"github.com/percona/search-clone/validate"
)

// Validate checks the format and range of the options that are set. Presence
// of the connection options is checked later, per client role, when a client
// is first needed.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err != nil {
		return errors.Wrap(err, "invalid options")
	}

	if cfg.SourceEndpoint != "" && sameEndpoint(cfg.SourceEndpoint, cfg.TargetEndpoint) {
		return errors.New("source endpoint and target endpoint are identical")
	}

	return nil
}

func sameEndpoint(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}

	ub, err := url.Parse(b)
	if err != nil {
		return false
	}

	return strings.EqualFold(ua.Host, ub.Host) &&
		strings.TrimSuffix(ua.Path, "/") == strings.TrimSuffix(ub.Path, "/")
}

package doro

import (
	"encoding/json"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// A Config is the optional persisted bootstrap for a Session: a JSON
// file holding the host and, for authenticated use, the credentials.
// No other on-disk state is kept.
type Config struct {
	Host     string `json:"host" validate:"required,url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

var validate = validator.New()

// LoadConfig reads and validates a JSON config file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "cannot read config")
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "cannot parse config "+path)
	}
	if err := validate.Struct(&cfg); err != nil {
		return cfg, errors.Wrap(err, "bad config "+path)
	}
	return cfg, nil
}

// Open opens a Session from the config: authenticated when a username
// is present, anonymous otherwise.
func (c Config) Open(opts ...Option) (*Session, error) {
	if c.Username == "" {
		return OpenAnonymous(c.Host, opts...)
	}
	return Open(c.Host, c.Username, c.Password, opts...)
}

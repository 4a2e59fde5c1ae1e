package redis

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/nats-redis-io/goresp/resp"
)

// Config is the configuration contract a Client is built from: host/port of
// the server, the text encoding used to decode bulks, the base address
// pub/sub notifications are routed under, and the reserved binary flag.
// Loading a Config from flags/env files is outside the core's scope; this
// struct is the contract those loaders hand to NewClient.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Encoding string `mapstructure:"encoding"`
	Binary   bool   `mapstructure:"binary"`
	Address  string `mapstructure:"address"`
}

// DefaultConfig returns the configuration contract's documented defaults.
func DefaultConfig() Config {
	return Config{
		Host:     "localhost",
		Port:     6379,
		Encoding: "UTF-8",
		Binary:   false,
		Address:  "io.vertx.mod-redis",
	}
}

// ConfigFromMap decodes a loosely-typed configuration map (the shape a
// generic config loader hands the core) into a Config, filling in any key
// left unset with DefaultConfig's value.
func ConfigFromMap(m map[string]interface{}) (Config, error) {
	cfg := DefaultConfig()
	if len(m) == 0 {
		return cfg, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, errors.Wrap(err, "redis: building config decoder")
	}
	if err := dec.Decode(m); err != nil {
		return Config{}, errors.Wrap(err, "redis: decoding config map")
	}
	return cfg, nil
}

// addr renders the TCP dial address for this configuration.
func (c Config) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// charset resolves the configured text encoding.
func (c Config) charset() (resp.Charset, error) {
	return resp.CharsetByName(c.Encoding)
}

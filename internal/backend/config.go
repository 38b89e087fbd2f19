package backend

import (
	"errors"
	"fmt"
	"strings"

	"moneymate/internal/config"
)

var ErrUnknownBackend = errors.New("unknown backend")

// FromAppConfig picks the backend settings out of the application config.
// AMQP settings are only carried for sqlite, the one backend the worker can
// share.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("nil application config")
	}

	c := Config{
		Type:           BackendType(strings.ToLower(strings.TrimSpace(appConfig.DataBackend))),
		SQLiteDBPath:   appConfig.SQLiteDBPath,
		MemorySeedFile: appConfig.MemorySeedFile,
	}
	if c.Type == SQLiteBackend && appConfig.AMQPEnabled() {
		c.AMQPURL = appConfig.AMQPURL
		c.AMQPExchange = appConfig.AMQPExchange
		c.AMQPQueue = appConfig.AMQPQueue
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("%w %q (want one of %s)", ErrUnknownBackend, c.Type, strings.Join(GetBackendTypeStrings(), ", "))
	}
	if c.Type == SQLiteBackend && strings.TrimSpace(c.SQLiteDBPath) == "" {
		return errors.New("sqlite backend needs SQLITE_DB_PATH")
	}
	return nil
}

// GetBackendTypes lists the supported backends, default first.
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}

func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, t.String())
	}
	return out
}

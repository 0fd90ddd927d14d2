package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type KeyStoreFileConfig struct {
	Path            string `yaml:"path"`
	EncryptionKey   string `yaml:"encryptionKey"`
	CreateIfMissing bool   `yaml:"createIfMissing"`
}

type KeyConfig struct {
	KeyStoreFile *KeyStoreFileConfig `yaml:"keyStoreFile"`
}

type DBConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"inMemory"`
}

type MPCConfig struct {
	// ResultTimeout bounds the wait for a computation callback. Observed
	// latency in this domain is minutes.
	ResultTimeout time.Duration `yaml:"resultTimeout"`
}

type Config struct {
	Key     *KeyConfig `yaml:"key"`
	DB      *DBConfig  `yaml:"db"`
	MPC     *MPCConfig `yaml:"mpc"`
	LogFile string     `yaml:"logFile"`
}

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	defer file.Close()

	config := &Config{}
	d := yaml.NewDecoder(file)
	if err := d.Decode(config); err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	return config.WithDefaults(), nil
}

func (c *Config) WithDefaults() *Config {
	if c.DB == nil {
		c.DB = &DBConfig{Path: ".kage/store"}
	}
	if c.MPC == nil {
		c.MPC = &MPCConfig{}
	}
	if c.MPC.ResultTimeout == 0 {
		c.MPC.ResultTimeout = 5 * time.Minute
	}
	return c
}

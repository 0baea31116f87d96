package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Конечная структура конфигурации приложения.
type Config struct {
	Server struct {
		Address  string `mapstructure:"address"`   // 0.0.0.0
		HTTPPort string `mapstructure:"http_port"` // 8080
	} `mapstructure:"server"`

	Provisioning struct {
		// Секрет процесса для подписи provisioning-токенов.
		Secret string `mapstructure:"secret"`
	} `mapstructure:"provisioning"`

	API struct {
		// Bearer-секрет административного JSON API.
		SharedSecret string `mapstructure:"shared_secret"`
	} `mapstructure:"api"`

	PKI struct {
		RSAKeySize int `mapstructure:"rsa_keysize"` // 4096
		PSKEntropy int `mapstructure:"psk_entropy"` // бит, 96
	} `mapstructure:"pki"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
		File   string `mapstructure:"file"`
	} `mapstructure:"logs"`

	Database struct {
		Driver string `mapstructure:"driver"` // "postgres" | "mysql" | "sqlite" | "" (без БД)
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`
}

// Load читает конфиг из env/файла с дефолтами.
func Load() (*Config, error) {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.address", "0.0.0.0")
	viper.SetDefault("server.http_port", "8080")

	viper.SetDefault("provisioning.secret", "CHANGE_ME")
	viper.SetDefault("api.shared_secret", "")

	viper.SetDefault("pki.rsa_keysize", 4096)
	viper.SetDefault("pki.psk_entropy", 96)

	viper.SetDefault("logs.level", "info")
	viper.SetDefault("logs.format", "text")
	viper.SetDefault("logs.file", "")

	viper.SetDefault("database.driver", "")
	viper.SetDefault("database.dsn", "")

	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			viper.AddConfigPath(filepath.Join(xdg, "ipsec-me"))
		}
		viper.AddConfigPath("/etc/ipsec-me")
	}

	if err := viper.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func validate(c *Config) error {
	if strings.TrimSpace(c.Provisioning.Secret) == "" || c.Provisioning.Secret == "CHANGE_ME" {
		return errors.New("provisioning.secret must be set (not empty and not CHANGE_ME)")
	}
	if c.PKI.RSAKeySize < 2048 {
		return errors.New("pki.rsa_keysize must be at least 2048")
	}
	if c.PKI.PSKEntropy <= 0 {
		return errors.New("pki.psk_entropy must be positive")
	}
	if strings.TrimSpace(c.Server.Address) == "" {
		return errors.New("server.address must not be empty")
	}
	if strings.TrimSpace(c.Server.HTTPPort) == "" {
		return errors.New("server.http_port must not be empty")
	}
	return nil
}

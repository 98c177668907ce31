package config

import (
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	App struct {
		Env        string
		Timezone   string
		TerminalID string `mapstructure:"terminal_id"`
		CashierID  string `mapstructure:"cashier_id"`
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	SQLite struct {
		Path string
	} `mapstructure:"sqlite"`

	Remote struct {
		BaseURL     string `mapstructure:"base_url"`
		Token       string
		CallTimeout time.Duration `mapstructure:"call_timeout"`
	} `mapstructure:"remote"`

	Network struct {
		ProbeURL      string        `mapstructure:"probe_url"`
		ProbeInterval time.Duration `mapstructure:"probe_interval"`
	} `mapstructure:"network"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`
}

func Load(path string) (Config, error) {
	// .env (токен удалённого API и т.п.) подхватываем до viper
	_ = gotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if c.Remote.CallTimeout <= 0 {
		c.Remote.CallTimeout = 30 * time.Second
	}
	if c.Network.ProbeInterval <= 0 {
		c.Network.ProbeInterval = 15 * time.Second
	}
	return c, nil
}

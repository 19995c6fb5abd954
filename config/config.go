// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

// Package config loads plugcall configuration from file, .env and environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "PLUGCALL"

type Config struct {
	LogLevel string         `mapstructure:"log_level" yaml:"log_level"`
	SIP      SIPConfig      `mapstructure:"sip" yaml:"sip"`
	Greeting GreetingConfig `mapstructure:"greeting" yaml:"greeting"`
	Outlet   OutletConfig   `mapstructure:"outlet" yaml:"outlet"`
	Display  DisplayConfig  `mapstructure:"display" yaml:"display"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Status   StatusConfig   `mapstructure:"status" yaml:"status"`
}

type SIPConfig struct {
	User         string `mapstructure:"user" yaml:"user"`
	Password     string `mapstructure:"password" yaml:"password"`
	Domain       string `mapstructure:"domain" yaml:"domain"`
	Register     bool   `mapstructure:"register" yaml:"register"`
	Transport    string `mapstructure:"transport" yaml:"transport"`
	BindHost     string `mapstructure:"bind_host" yaml:"bind_host"`
	BindPort     int    `mapstructure:"bind_port" yaml:"bind_port"`
	ExternalHost string `mapstructure:"external_host" yaml:"external_host"`
}

type GreetingConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

type OutletConfig struct {
	// URL of relay command endpoint. Empty runs without relay
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type DisplayConfig struct {
	// Driver is console, ssd1306 or none
	Driver string `mapstructure:"driver" yaml:"driver"`
	I2CBus string `mapstructure:"i2c_bus" yaml:"i2c_bus"`
	Width  int    `mapstructure:"width" yaml:"width"`
	Height int    `mapstructure:"height" yaml:"height"`
}

type SessionConfig struct {
	MaxDuration time.Duration `mapstructure:"max_duration" yaml:"max_duration"`
	EndedHold   time.Duration `mapstructure:"ended_hold" yaml:"ended_hold"`
}

type StatusConfig struct {
	// Listen address for status API, empty disables it
	Listen string `mapstructure:"listen" yaml:"listen"`
}

const (
	DisplayConsole = "console"
	DisplaySSD1306 = "ssd1306"
	DisplayNone    = "none"
)

// Default returns configuration used when nothing is set
func Default() Config {
	return Config{
		LogLevel: "info",
		SIP: SIPConfig{
			Transport: "udp",
			BindHost:  "0.0.0.0",
			BindPort:  5060,
		},
		Outlet: OutletConfig{
			Timeout: 5 * time.Second,
		},
		Display: DisplayConfig{
			Driver: DisplayConsole,
			I2CBus: "1",
			Width:  128,
			Height: 32,
		},
		Session: SessionConfig{
			MaxDuration: 24 * time.Hour,
			EndedHold:   5 * time.Second,
		},
	}
}

// SetDefaults registers defaults on viper so that env only keys are resolved
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("sip.user", d.SIP.User)
	v.SetDefault("sip.password", d.SIP.Password)
	v.SetDefault("sip.domain", d.SIP.Domain)
	v.SetDefault("sip.register", d.SIP.Register)
	v.SetDefault("sip.transport", d.SIP.Transport)
	v.SetDefault("sip.bind_host", d.SIP.BindHost)
	v.SetDefault("sip.bind_port", d.SIP.BindPort)
	v.SetDefault("sip.external_host", d.SIP.ExternalHost)
	v.SetDefault("greeting.file", d.Greeting.File)
	v.SetDefault("outlet.url", d.Outlet.URL)
	v.SetDefault("outlet.timeout", d.Outlet.Timeout)
	v.SetDefault("display.driver", d.Display.Driver)
	v.SetDefault("display.i2c_bus", d.Display.I2CBus)
	v.SetDefault("display.width", d.Display.Width)
	v.SetDefault("display.height", d.Display.Height)
	v.SetDefault("session.max_duration", d.Session.MaxDuration)
	v.SetDefault("session.ended_hold", d.Session.EndedHold)
	v.SetDefault("status.listen", d.Status.Listen)
}

// DefaultDir is ~/.config/plugcall
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "plugcall"), nil
}

// Setup prepares viper: optional .env file, defaults, env binding and config file lookup.
// Config file is optional unless cfgFile is set explicitly.
func Setup(v *viper.Viper, cfgFile string, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", cfgFile, err)
		}
		return nil
	}

	dir, err := DefaultDir()
	if err == nil {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// Load decodes and validates configuration from prepared viper
func Load(v *viper.Viper) (Config, error) {
	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return conf, fmt.Errorf("decoding config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return conf, err
	}
	return conf, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Display.Driver {
	case DisplayConsole, DisplaySSD1306, DisplayNone:
	default:
		errs = append(errs, fmt.Errorf("display.driver %q is not one of console, ssd1306, none", c.Display.Driver))
	}

	if c.Display.Driver == DisplaySSD1306 && (c.Display.Width <= 0 || c.Display.Height <= 0) {
		errs = append(errs, fmt.Errorf("display size %dx%d is invalid", c.Display.Width, c.Display.Height))
	}

	if c.SIP.Register && (c.SIP.User == "" || c.SIP.Domain == "") {
		errs = append(errs, errors.New("sip.register requires sip.user and sip.domain"))
	}

	switch strings.ToLower(c.SIP.Transport) {
	case "udp", "tcp", "ws", "udp4", "tcp4", "udp6", "tcp6":
	default:
		errs = append(errs, fmt.Errorf("sip.transport %q is not supported", c.SIP.Transport))
	}

	if c.Session.MaxDuration < 0 {
		errs = append(errs, errors.New("session.max_duration can not be negative"))
	}
	if c.Outlet.Timeout <= 0 {
		errs = append(errs, errors.New("outlet.timeout must be positive"))
	}
	return errors.Join(errs...)
}

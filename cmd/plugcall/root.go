// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package main

import (
	"io"
	"os"
	"time"

	"github.com/emiago/plugcall/config"
	"github.com/emiago/sipgo/sip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	envFile string
	conf    config.Config
)

var rootCmd = &cobra.Command{
	Use:   "plugcall",
	Short: "Switch a smart plug on for a time entered over a phone call",
	Long: `plugcall registers as a SIP line and answers incoming calls.
The caller enters number of seconds followed by # and the plug is
switched on for that long. Hanging up switches the plug off.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.config/plugcall/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded into environment")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() error {
	if err := config.Setup(viper.GetViper(), cfgFile, envFile); err != nil {
		return err
	}

	c, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	conf = c

	setupLogger(os.Stdout, conf.LogLevel)
	if viper.ConfigFileUsed() != "" {
		log.Debug().Str("file", viper.ConfigFileUsed()).Msg("Using config file")
	}

	sip.SIPDebug = os.Getenv("SIP_DEBUG") != ""
	gin.SetMode(gin.ReleaseMode)
	return nil
}

// setupLogger configures global logger. LOG_LEVEL env takes precedence over config.
func setupLogger(out io.Writer, level string) {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	lev, err := zerolog.ParseLevel(level)
	if err != nil || lev == zerolog.NoLevel {
		lev = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.StampMicro,
	}).With().Timestamp().Logger().Level(lev)
}

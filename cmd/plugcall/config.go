// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/emiago/plugcall/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configForce bool

// configDirFunc returns config directory, replaceable in tests
var configDirFunc = config.DefaultDir

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun(cmd.OutOrStdout())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun(cmd.OutOrStdout())
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun(cmd.OutOrStdout())
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func configInitRun(w io.Writer) error {
	path := cfgFile
	if path == "" {
		dir, err := configDirFunc()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}

	if err := config.WriteFile(path, conf, configForce); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s\n", color.GreenString("Created"), path)
	return nil
}

func configShowRun(w io.Writer) error {
	source := viper.ConfigFileUsed()
	if source == "" {
		source = "defaults and environment"
	}
	fmt.Fprintf(w, "%s %s\n\n", color.New(color.Faint).Sprint("# source:"), source)

	shown := conf
	if shown.SIP.Password != "" {
		shown.SIP.Password = "********"
	}
	data, err := config.Marshal(shown)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/emiago/plugcall"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var outletCmd = &cobra.Command{
	Use:       "outlet on|off",
	Short:     "Switch the plug manually, useful to check outlet.url",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := openOutlet(conf.Outlet)
		if err != nil {
			return err
		}
		return outletRun(cmd.Context(), cmd.OutOrStdout(), out, args[0])
	},
}

func init() {
	rootCmd.AddCommand(outletCmd)
}

func outletRun(ctx context.Context, w io.Writer, out plugcall.Outlet, state string) error {
	ctx, cancel := context.WithTimeout(ctx, conf.Outlet.Timeout)
	defer cancel()

	var err error
	switch state {
	case "on":
		err = out.TurnOn(ctx)
	case "off":
		err = out.TurnOff(ctx)
	default:
		return fmt.Errorf("unknown outlet state %q", state)
	}
	if err != nil {
		fmt.Fprintln(w, color.RedString("Outlet %s failed", state))
		return err
	}
	fmt.Fprintln(w, color.GreenString("Outlet %s", state))
	return nil
}

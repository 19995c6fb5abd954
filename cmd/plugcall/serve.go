// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package main

import (
	"context"
	"errors"
	"os"

	"github.com/emiago/plugcall"
	"github.com/emiago/plugcall/config"
	"github.com/emiago/plugcall/display"
	"github.com/emiago/plugcall/outlet"
	"github.com/emiago/plugcall/statusapi"
	"github.com/emiago/plugcall/telephony"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer calls and drive the plug (default command)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serveRun(ctx context.Context) error {
	disp, closeDisplay := openDisplay(conf.Display)
	defer closeDisplay()
	disp.ShowMessage(plugcall.MsgStarting, "")

	out, err := openOutlet(conf.Outlet)
	if err != nil {
		return err
	}

	if conf.Greeting.File != "" {
		if err := telephony.CheckGreeting(conf.Greeting.File); err != nil {
			return err
		}
	}

	ctrl := plugcall.NewController(out, disp,
		plugcall.WithLogger(log.Logger.With().Str("caller", "controller").Logger()),
		plugcall.WithMaxDuration(conf.Session.MaxDuration),
		plugcall.WithEndedHold(conf.Session.EndedHold),
		plugcall.WithOutletTimeout(conf.Outlet.Timeout),
	)

	line, err := telephony.NewLine(ctrl, telephony.LineConfig{
		Transport:    conf.SIP.Transport,
		BindHost:     conf.SIP.BindHost,
		BindPort:     conf.SIP.BindPort,
		ExternalHost: conf.SIP.ExternalHost,
		Register:     conf.SIP.Register,
		Domain:       conf.SIP.Domain,
		Username:     conf.SIP.User,
		Password:     conf.SIP.Password,
		Greeting:     conf.Greeting.File,
	}, telephony.WithLogger(log.Logger.With().Str("caller", "line").Logger()))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ctrl.Run(ctx)
	})
	g.Go(func() error {
		return line.Serve(ctx)
	})
	if conf.Status.Listen != "" {
		srv := statusapi.NewServer(ctrl, log.Logger.With().Str("caller", "statusapi").Logger())
		g.Go(func() error {
			return srv.ListenAndServe(ctx, conf.Status.Listen)
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("Stopped")
	return nil
}

func openOutlet(c config.OutletConfig) (plugcall.Outlet, error) {
	if c.URL == "" {
		log.Warn().Msg("outlet.url is not set, plug commands are only logged")
		return &outlet.Noop{Log: log.Logger.With().Str("caller", "outlet").Logger()}, nil
	}
	return outlet.NewTasmota(c.URL, outlet.WithLogger(log.Logger.With().Str("caller", "outlet").Logger()))
}

// openDisplay returns configured sink. Console is always kept next to panel so
// that headless runs still show what the panel would. Panel failure falls back to console.
func openDisplay(c config.DisplayConfig) (display.Sink, func()) {
	switch c.Driver {
	case config.DisplayNone:
		return display.Nop{}, func() {}
	case config.DisplaySSD1306:
		oled, err := display.OpenOLED(c.I2CBus, c.Width, c.Height)
		if err != nil {
			// Calls are still served without panel
			log.Warn().Err(err).Str("bus", c.I2CBus).Msg("Display unavailable, using console")
			return display.NewConsole(os.Stdout), func() {}
		}
		closeFn := func() {
			if err := oled.Close(); err != nil {
				log.Error().Err(err).Msg("Closing display failed")
			}
		}
		return display.Multi{oled, display.NewConsole(os.Stdout)}, closeFn
	default:
		return display.NewConsole(os.Stdout), func() {}
	}
}

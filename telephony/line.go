// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

// Package telephony connects SIP line to call controller.
package telephony

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/emiago/diago"
	"github.com/emiago/plugcall"
	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Controller receives call lifecycle events
type Controller interface {
	IncomingCall(ctx context.Context, call plugcall.Call) error
	Digit(callID string, digit rune) error
	Disconnected(callID string) error
}

type LineConfig struct {
	// Transport must be udp, tcp or ws
	Transport    string
	BindHost     string
	BindPort     int
	ExternalHost string

	// Register with registrar at Domain using digest credentials
	Register      bool
	Domain        string
	Username      string
	Password      string
	RegisterRetry time.Duration

	// Greeting is WAV file played after answer. Empty skips greeting
	Greeting string
}

// Line is single SIP account answering calls for controller
type Line struct {
	conf LineConfig
	ctrl Controller
	ua   *sipgo.UserAgent
	dg   *diago.Diago
	log  zerolog.Logger
}

type LineOption func(l *Line)

func WithLogger(logger zerolog.Logger) LineOption {
	return func(l *Line) {
		l.log = logger
	}
}

func NewLine(ctrl Controller, conf LineConfig, opts ...LineOption) (*Line, error) {
	if conf.Transport == "" {
		conf.Transport = "udp"
	}
	if conf.RegisterRetry == 0 {
		conf.RegisterRetry = 30 * time.Second
	}

	useragent := conf.Username
	if useragent == "" {
		useragent = "plugcall"
	}

	ua, err := sipgo.NewUA(sipgo.WithUserAgent(useragent))
	if err != nil {
		return nil, fmt.Errorf("creating user agent: %w", err)
	}

	l := &Line{
		conf: conf,
		ctrl: ctrl,
		ua:   ua,
		log:  log.Logger,
	}
	for _, o := range opts {
		o(l)
	}

	l.dg = diago.NewDiago(ua, diago.WithTransport(
		diago.Transport{
			Transport:    conf.Transport,
			BindHost:     conf.BindHost,
			BindPort:     conf.BindPort,
			ExternalHost: conf.ExternalHost,
		},
	))
	return l, nil
}

// Serve listens for calls and keeps registration until ctx is done
func (l *Line) Serve(ctx context.Context) error {
	defer l.ua.Close()

	err := l.dg.ServeBackground(ctx, func(inDialog *diago.DialogServerSession) {
		l.serveCall(&diagoDialog{d: inDialog})
	})
	if err != nil {
		return fmt.Errorf("serving sip: %w", err)
	}
	l.log.Info().Str("transport", l.conf.Transport).Str("host", l.conf.BindHost).Int("port", l.conf.BindPort).Msg("Listening for calls")

	if l.conf.Register {
		recipient, err := l.registrar()
		if err != nil {
			return err
		}
		go l.registerLoop(ctx, recipient)
	}

	<-ctx.Done()
	return nil
}

func (l *Line) registrar() (sip.Uri, error) {
	recipient := sip.Uri{}
	if err := sip.ParseUri("sip:"+l.conf.Username+"@"+l.conf.Domain, &recipient); err != nil {
		return recipient, fmt.Errorf("failed to parse register uri: %w", err)
	}
	return recipient, nil
}

func (l *Line) registerLoop(ctx context.Context, recipient sip.Uri) {
	opts := diago.RegisterOptions{
		Username: l.conf.Username,
		Password: l.conf.Password,
	}
	for {
		l.log.Info().Str("registrar", recipient.String()).Msg("Registering")
		err := l.dg.Register(ctx, recipient, opts)
		if ctx.Err() != nil {
			return
		}
		l.log.Error().Err(err).Dur("retry", l.conf.RegisterRetry).Msg("Registration ended")

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.conf.RegisterRetry):
		}
	}
}

// inboundDialog is what line needs from inbound SIP dialog
type inboundDialog interface {
	plugcall.Call
	Context() context.Context
	RejectBusy() error
	PlayGreeting(filename string) error
	ListenDTMF(onDigit func(dtmf rune) error) error
}

func (l *Line) serveCall(d inboundDialog) {
	log := l.log.With().Str("call_id", d.ID()).Logger()
	log.Info().Msg("New dialog request")
	defer log.Info().Msg("Dialog finished")

	if err := l.ctrl.IncomingCall(d.Context(), d); err != nil {
		if errors.Is(err, plugcall.ErrBusy) {
			if err := d.RejectBusy(); err != nil {
				log.Error().Err(err).Msg("Failed to reject busy call")
			}
			return
		}
		log.Error().Err(err).Msg("Call not accepted")
		// Controller ignores unknown calls, this only matters if session was created anyway
		if err := l.ctrl.Disconnected(d.ID()); err != nil {
			log.Debug().Err(err).Msg("Disconnect not delivered")
		}
		return
	}

	// Whatever ends DTMF reading ends the call for controller
	defer func() {
		if err := l.ctrl.Disconnected(d.ID()); err != nil {
			log.Debug().Err(err).Msg("Disconnect not delivered")
		}
	}()

	if l.conf.Greeting != "" {
		go func() {
			if err := d.PlayGreeting(l.conf.Greeting); err != nil {
				log.Error().Err(err).Str("file", l.conf.Greeting).Msg("Playing greeting failed")
			}
		}()
	}

	err := d.ListenDTMF(func(dtmf rune) error {
		log.Debug().Str("dtmf", string(dtmf)).Msg("Received DTMF")
		return l.ctrl.Digit(d.ID(), dtmf)
	})
	log.Debug().Err(err).Msg("DTMF reading stopped")
}

type diagoDialog struct {
	d *diago.DialogServerSession
}

func (c *diagoDialog) ID() string {
	return c.d.ID
}

func (c *diagoDialog) Context() context.Context {
	return c.d.Context()
}

func (c *diagoDialog) Answer() error {
	if err := c.d.Progress(); err != nil {
		return err
	}
	if err := c.d.Ringing(); err != nil {
		return err
	}
	return c.d.Answer()
}

func (c *diagoDialog) RejectBusy() error {
	return c.d.Respond(sip.StatusBusyHere, "Busy Here", nil)
}

func (c *diagoDialog) PlayGreeting(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	pb, err := c.d.PlaybackCreate()
	if err != nil {
		return err
	}
	_, err = pb.Play(f, "audio/wav")
	return err
}

func (c *diagoDialog) ListenDTMF(onDigit func(dtmf rune) error) error {
	return c.d.AudioReaderDTMF().Listen(onDigit, 0)
}

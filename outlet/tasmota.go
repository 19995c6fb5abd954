// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package outlet

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	CommandPowerOn  = "Power On"
	CommandPowerOff = "Power Off"
)

// Tasmota drives relay over HTTP command API, ex http://plug.local/cm?cmnd=Power%20On
type Tasmota struct {
	baseURL *url.URL
	client  *http.Client
	log     zerolog.Logger
}

type TasmotaOption func(t *Tasmota)

func WithHTTPClient(c *http.Client) TasmotaOption {
	return func(t *Tasmota) {
		t.client = c
	}
}

func WithLogger(l zerolog.Logger) TasmotaOption {
	return func(t *Tasmota) {
		t.log = l
	}
}

func NewTasmota(baseURL string, opts ...TasmotaOption) (*Tasmota, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing outlet url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("outlet url must be http or https, got %q", baseURL)
	}

	t := &Tasmota{
		baseURL: u,
		client:  http.DefaultClient,
		log:     log.Logger,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

func (t *Tasmota) TurnOn(ctx context.Context) error {
	return t.send(ctx, CommandPowerOn)
}

func (t *Tasmota) TurnOff(ctx context.Context) error {
	return t.send(ctx, CommandPowerOff)
}

func (t *Tasmota) send(ctx context.Context, command string) error {
	u := *t.baseURL
	q := u.Query()
	q.Set("cmnd", command)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	res, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending %q: %w", command, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("sending %q: unexpected response %s", command, res.Status)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 4096))
	if err != nil {
		// Status already confirmed command, body is only logged
		t.log.Debug().Err(err).Str("command", command).Msg("Reading outlet response failed")
	}

	t.log.Debug().Str("command", command).Bytes("response", body).Msg("Outlet command sent")
	return nil
}

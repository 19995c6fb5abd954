// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package outlet

import (
	"context"

	"github.com/rs/zerolog"
)

// Noop only logs commands. Useful when running without relay
type Noop struct {
	Log zerolog.Logger
}

func (n *Noop) TurnOn(ctx context.Context) error {
	n.Log.Info().Msg("Outlet ON (noop)")
	return nil
}

func (n *Noop) TurnOff(ctx context.Context) error {
	n.Log.Info().Msg("Outlet OFF (noop)")
	return nil
}

// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package telephony

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/emiago/plugcall"
	"github.com/emiago/plugcall/display"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDialogClosed = errors.New("dialog closed")

type fakeDialog struct {
	id      string
	ctx     context.Context
	digits  chan rune
	greeted chan string

	mu       sync.Mutex
	answered bool
	busy     bool
}

func newFakeDialog(id string) *fakeDialog {
	return &fakeDialog{
		id:      id,
		ctx:     context.Background(),
		digits:  make(chan rune),
		greeted: make(chan string, 1),
	}
}

func (d *fakeDialog) ID() string               { return d.id }
func (d *fakeDialog) Context() context.Context { return d.ctx }

func (d *fakeDialog) Answer() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.answered = true
	return nil
}

func (d *fakeDialog) RejectBusy() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy = true
	return nil
}

func (d *fakeDialog) PlayGreeting(filename string) error {
	d.greeted <- filename
	return nil
}

// ListenDTMF delivers digits until channel is closed, like BYE closing media
func (d *fakeDialog) ListenDTMF(onDigit func(dtmf rune) error) error {
	for dtmf := range d.digits {
		if err := onDigit(dtmf); err != nil {
			return err
		}
	}
	return errDialogClosed
}

type countingOutlet struct {
	mu  sync.Mutex
	on  int
	off int
}

func (o *countingOutlet) TurnOn(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.on++
	return nil
}

func (o *countingOutlet) TurnOff(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.off++
	return nil
}

func (o *countingOutlet) counts() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.on, o.off
}

func startController(t *testing.T, outlet plugcall.Outlet) *plugcall.Controller {
	ctrl := plugcall.NewController(outlet, display.Nop{}, plugcall.WithLogger(zerolog.Nop()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ctrl
}

func TestLineServeCall(t *testing.T) {
	outlet := &countingOutlet{}
	ctrl := startController(t, outlet)
	line := &Line{
		conf: LineConfig{Greeting: "hello.wav"},
		ctrl: ctrl,
		log:  zerolog.Nop(),
	}

	dialog := newFakeDialog("dialog-1")
	served := make(chan struct{})
	go func() {
		defer close(served)
		line.serveCall(dialog)
	}()

	select {
	case f := <-dialog.greeted:
		assert.Equal(t, "hello.wav", f)
	case <-time.After(time.Second):
		t.Fatal("greeting not played")
	}

	for _, d := range "30#" {
		dialog.digits <- d
	}
	require.Eventually(t, func() bool {
		return ctrl.Status().State == plugcall.StateTimed
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "dialog-1", ctrl.Status().CallID)

	t.Run("SecondCallBusy", func(t *testing.T) {
		second := newFakeDialog("dialog-2")
		line.serveCall(second)
		assert.True(t, second.busy)
		assert.False(t, second.answered)
	})

	// Hangup
	close(dialog.digits)
	<-served
	require.Eventually(t, func() bool {
		return ctrl.Status().State == plugcall.StateIdle
	}, time.Second, 5*time.Millisecond)

	on, off := outlet.counts()
	assert.Equal(t, 1, on)
	assert.Equal(t, 1, off)
	assert.True(t, dialog.answered)
}

func TestLineRegistrar(t *testing.T) {
	line := &Line{conf: LineConfig{Username: "alice", Domain: "sip.example.com:5070"}}
	uri, err := line.registrar()
	require.NoError(t, err)
	assert.Equal(t, "alice", uri.User)
	assert.Equal(t, "sip.example.com", uri.Host)
	assert.Equal(t, 5070, uri.Port)
}

func writeWav(t *testing.T, sampleRate, bitDepth, channels int) string {
	filename := filepath.Join(t.TempDir(), "greeting.wav")
	f, err := os.Create(filename)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           make([]int, 1600*channels),
		SourceBitDepth: bitDepth,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	return filename
}

func TestCheckGreeting(t *testing.T) {
	require.NoError(t, CheckGreeting(writeWav(t, 8000, 16, 1)))

	err := CheckGreeting(writeWav(t, 44100, 16, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "44100Hz")

	notWav := filepath.Join(t.TempDir(), "notwav.wav")
	require.NoError(t, os.WriteFile(notWav, []byte("not a wav file at all"), 0644))
	require.Error(t, CheckGreeting(notWav))

	require.Error(t, CheckGreeting(filepath.Join(t.TempDir(), "missing.wav")))
}

// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package telephony

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// CheckGreeting verifies file is WAV playable on narrowband call: PCM 16 bit, mono, 8000Hz
func CheckGreeting(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return fmt.Errorf("greeting %s is not valid wav file", filename)
	}

	if dec.WavAudioFormat != wavFormatPCM {
		return fmt.Errorf("greeting %s must be PCM, got format %d", filename, dec.WavAudioFormat)
	}
	if dec.SampleRate != 8000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		return fmt.Errorf("greeting %s must be 8000Hz mono 16 bit, got %dHz %d channels %d bit",
			filename, dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	return nil
}

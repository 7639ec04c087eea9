package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var errNotWAV = errors.New("not a PCM WAV file")

// clip holds mono audio in [-1, 1].
type clip struct {
	samples    []float32
	sampleRate int
	bitDepth   int
}

// readWAV decodes a PCM WAV file and averages its channels to mono.
func readWAV(path string) (*clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s: %w", path, errNotWAV)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	channels := buf.Format.NumChannels
	bitDepth := int(d.BitDepth)
	if channels < 1 || bitDepth < 16 || bitDepth > 32 {
		return nil, fmt.Errorf("%s: %w: %d channels, %d bit", path, errNotWAV, channels, bitDepth)
	}

	scale := 1 / float32(int64(1)<<(bitDepth-1))
	frames := len(buf.Data) / channels
	out := make([]float32, frames)

	for i := range out {
		var sum float32
		for c := range channels {
			sum += float32(buf.Data[i*channels+c])
		}
		out[i] = sum * scale / float32(channels)
	}

	return &clip{samples: out, sampleRate: buf.Format.SampleRate, bitDepth: bitDepth}, nil
}

// writeWAV encodes mono samples as PCM, clipping to full scale.
func writeWAV(path string, c *clip) error {
	bitDepth := c.bitDepth
	if bitDepth == 0 {
		bitDepth = 24
	}

	full := float32(int64(1)<<(bitDepth-1)) - 1
	data := make([]int, len(c.samples))
	for i, v := range c.samples {
		data[i] = int(max(-1, min(1, v)) * full)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	e := wav.NewEncoder(f, c.sampleRate, bitDepth, 1, 1)
	err = e.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: c.sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	})
	if err == nil {
		err = e.Close()
	}

	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	return nil
}

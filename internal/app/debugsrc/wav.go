package debugsrc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

var errNotWAV = errors.New("not a RIFF/WAVE file")

// LoadWAV reads a 16-bit PCM WAV file as mono float samples at sampleRate.
func LoadWAV(path string, sampleRate int) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeWAV(data, sampleRate)
}

func DecodeWAV(data []byte, sampleRate int) ([]float32, error) {
	r := bytes.NewReader(data)
	var hdr struct {
		RIFF [4]byte
		Size uint32
		WAVE [4]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, errNotWAV
	}
	if string(hdr.RIFF[:]) != "RIFF" || string(hdr.WAVE[:]) != "WAVE" {
		return nil, errNotWAV
	}

	var (
		format   uint16
		channels uint16
		rate     uint32
		bits     uint16
		pcm      []byte
	)
	for pcm == nil {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("wav: missing data chunk")
			}
			return nil, fmt.Errorf("wav: %w", err)
		}
		body := make([]byte, chunk.Size)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("wav: truncated %q chunk: %w", chunk.ID[:], err)
		}
		if chunk.Size%2 == 1 {
			_, _ = r.ReadByte()
		}
		switch string(chunk.ID[:]) {
		case "fmt ":
			if len(body) < 16 {
				return nil, errors.New("wav: short fmt chunk")
			}
			format = binary.LittleEndian.Uint16(body[0:])
			channels = binary.LittleEndian.Uint16(body[2:])
			rate = binary.LittleEndian.Uint32(body[4:])
			bits = binary.LittleEndian.Uint16(body[14:])
		case "data":
			pcm = body
		}
	}
	if format != 1 || bits != 16 || channels == 0 || rate == 0 {
		return nil, fmt.Errorf("wav: unsupported format %d, %d bits, %d channels", format, bits, channels)
	}

	frames := len(pcm) / (2 * int(channels))
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < int(channels); c++ {
			off := 2 * (i*int(channels) + c)
			sum += float32(int16(binary.LittleEndian.Uint16(pcm[off:]))) / math.MaxInt16
		}
		mono[i] = sum / float32(channels)
	}
	return Resample(mono, int(rate), sampleRate), nil
}

// Resample converts between rates with linear interpolation.
func Resample(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 || from <= 0 || to <= 0 {
		return in
	}
	n := int(int64(len(in)) * int64(to) / int64(from))
	out := make([]float32, n)
	step := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		frac := float32(pos - float64(j))
		if j+1 < len(in) {
			out[i] = in[j]*(1-frac) + in[j+1]*frac
		} else {
			out[i] = in[len(in)-1]
		}
	}
	return out
}

// Tone is one second of a sine at freq.
func Tone(freq float64, sampleRate int, amplitude float32) []float32 {
	out := make([]float32, sampleRate)
	for i := range out {
		out[i] = amplitude * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

package debugsrc

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wavBytes(t *testing.T, rate uint32, channels uint16, samples []int16) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := func(v any) { require.NoError(t, binary.Write(&buf, binary.LittleEndian, v)) }
	dataLen := uint32(len(samples) * 2)
	buf.WriteString("RIFF")
	w(uint32(4 + 8 + 16 + 8 + dataLen + 8 + 2))
	buf.WriteString("WAVE")
	buf.WriteString("LIST")
	w(uint32(1))
	buf.WriteByte('x')
	buf.WriteByte(0)
	buf.WriteString("fmt ")
	w(uint32(16))
	w(uint16(1))
	w(channels)
	w(rate)
	w(rate * uint32(channels) * 2)
	w(channels * 2)
	w(uint16(16))
	buf.WriteString("data")
	w(dataLen)
	w(samples)
	return buf.Bytes()
}

func TestDecodeWAV_StereoDownmix(t *testing.T) {
	data := wavBytes(t, 16000, 2, []int16{32767, 0, 0, -32767})
	got, err := DecodeWAV(data, 16000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.5, got[0], 1e-6)
	assert.InDelta(t, -0.5, got[1], 1e-6)
}

func TestDecodeWAV_Resamples(t *testing.T) {
	data := wavBytes(t, 8000, 1, make([]int16, 800))
	got, err := DecodeWAV(data, 16000)
	require.NoError(t, err)
	assert.Len(t, got, 1600)
}

func TestDecodeWAV_Rejects(t *testing.T) {
	_, err := DecodeWAV([]byte("nope"), 16000)
	assert.ErrorIs(t, err, errNotWAV)

	data := wavBytes(t, 16000, 1, []int16{1, 2})
	binary.LittleEndian.PutUint16(data[bytes.Index(data, []byte("fmt "))+8+14:], 8)
	_, err = DecodeWAV(data, 16000)
	assert.ErrorContains(t, err, "unsupported format")
}

func TestLoadWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, wavBytes(t, 16000, 1, []int16{100, 200, 300}), 0o600))
	got, err := LoadWAV(path, 16000)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = LoadWAV(filepath.Join(t.TempDir(), "missing.wav"), 16000)
	assert.Error(t, err)
}

func TestResample_Interpolates(t *testing.T) {
	got := Resample([]float32{0, 1}, 1, 2)
	assert.Equal(t, []float32{0, 0.5, 1, 1}, got)
	same := []float32{1, 2}
	assert.Equal(t, same, Resample(same, 16000, 16000))
}

func TestTone(t *testing.T) {
	tone := Tone(440, 16000, 0.2)
	require.Len(t, tone, 16000)
	for _, v := range tone {
		assert.LessOrEqual(t, v, float32(0.2))
		assert.GreaterOrEqual(t, v, float32(-0.2))
	}
}

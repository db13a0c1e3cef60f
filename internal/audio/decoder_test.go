package audio

import (
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"beatbrowser/internal/audio/audiotest"
	"beatbrowser/pkg/models"

	"github.com/sirupsen/logrus"
)

func newTestDecoder() *Decoder {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewDecoder(logger)
}

func TestSniff(t *testing.T) {
	testCases := []struct {
		name     string
		data     []byte
		expected Format
	}{
		{"WAV", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), FormatWAV},
		{"FLAC", []byte("fLaC\x00\x00"), FormatFLAC},
		{"MP3 with ID3", []byte("ID3\x04\x00"), FormatMP3},
		{"MP3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x00}, FormatMP3},
		{"Ogg", []byte("OggS\x00"), FormatOgg},
		{"M4A", []byte("\x00\x00\x00\x20ftypM4A "), FormatM4A},
		{"Text", []byte("this is not audio"), FormatUnknown},
		{"Empty", []byte{}, FormatUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sniff(tc.data); got != tc.expected {
				t.Errorf("Sniff(%s): expected %q, got %q", tc.name, tc.expected, got)
			}
		})
	}
}

func TestDecodeWAV(t *testing.T) {
	left := audiotest.Tone(8000, 0.5)
	right := make([]float32, 8000)
	data := audiotest.WAV(8000, [][]float32{left, right})

	buf, err := newTestDecoder().Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if buf.SampleRate != 8000 {
		t.Errorf("Expected sample rate 8000, got %d", buf.SampleRate)
	}
	if buf.NumChannels() != 2 {
		t.Fatalf("Expected 2 channels, got %d", buf.NumChannels())
	}
	if buf.Len() != 8000 {
		t.Errorf("Expected 8000 frames, got %d", buf.Len())
	}
	if buf.Duration() != time.Second {
		t.Errorf("Expected 1s duration, got %v", buf.Duration())
	}

	var peak float64
	for _, s := range buf.Channels[0] {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	if math.Abs(peak-0.5) > 0.01 {
		t.Errorf("Expected left peak near 0.5, got %f", peak)
	}
	for _, s := range buf.Channels[1] {
		if s != 0 {
			t.Fatal("Expected silent right channel")
		}
	}
}

func TestDecodeUnsupported(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("this is not an audio file")},
		{"ogg", []byte("OggS\x00\x02\x00\x00")},
		{"truncated wav", []byte("RIFF\x24\x00\x00\x00WAVE")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestDecoder().Decode(tc.data)
			if !errors.Is(err, models.ErrDecodeUnsupported) {
				t.Errorf("Expected ErrDecodeUnsupported, got %v", err)
			}
		})
	}
}

package waveform

import (
	"math"
	"testing"

	"beatbrowser/internal/audio"
)

func TestExtractPeaks(t *testing.T) {
	opts := DefaultPeakOptions()

	t.Run("LoudAndQuietHalves", func(t *testing.T) {
		buf := audio.NewBuffer(8000, 1, 1000)
		for i := 0; i < 500; i++ {
			buf.Channels[0][i] = 1.0
		}
		for i := 500; i < 1000; i++ {
			buf.Channels[0][i] = 0.1
		}

		peaks := ExtractPeaks(buf, 10, opts)
		if len(peaks) != 10 {
			t.Fatalf("Expected 10 peaks, got %d", len(peaks))
		}
		for i := 0; i < 5; i++ {
			if peaks[i] != 1 {
				t.Errorf("peak[%d]: expected 1, got %f", i, peaks[i])
			}
		}
		// 0.1 is -20 dB, two thirds up a [-60, 0] window
		for i := 5; i < 10; i++ {
			if math.Abs(peaks[i]-2.0/3.0) > 1e-3 {
				t.Errorf("peak[%d]: expected ~0.667, got %f", i, peaks[i])
			}
		}
	})

	t.Run("MaxAcrossChannels", func(t *testing.T) {
		buf := audio.NewBuffer(8000, 2, 64)
		buf.Channels[1][0] = -1.0

		peaks := ExtractPeaks(buf, 1, opts)
		if peaks[0] != 1 {
			t.Errorf("Expected right channel peak to dominate, got %f", peaks[0])
		}
	})

	t.Run("StrideSkipsSamples", func(t *testing.T) {
		buf := audio.NewBuffer(8000, 1, 64)
		buf.Channels[0][5] = 1.0 // not on a multiple of 32

		peaks := ExtractPeaks(buf, 1, opts)
		if peaks[0] != 0 {
			t.Errorf("Expected strided scan to miss sample 5, got %f", peaks[0])
		}
	})

	t.Run("SilenceClampsToZero", func(t *testing.T) {
		buf := audio.NewBuffer(8000, 1, 320)
		for _, v := range ExtractPeaks(buf, 4, opts) {
			if v != 0 {
				t.Errorf("Expected 0 for silence, got %f", v)
			}
		}
	})

	t.Run("FewerSamplesThanBars", func(t *testing.T) {
		buf := audio.NewBuffer(8000, 1, 3)
		buf.Channels[0][0] = 1
		buf.Channels[0][1] = 1
		buf.Channels[0][2] = 1

		peaks := ExtractPeaks(buf, 6, opts)
		if len(peaks) != 6 {
			t.Fatalf("Expected 6 peaks, got %d", len(peaks))
		}
		if peaks[0] != 1 || peaks[5] != 0 {
			t.Errorf("Unexpected peaks for short buffer: %v", peaks)
		}
	})

	t.Run("UnevenLengthKeepsBlocksEqual", func(t *testing.T) {
		o := opts
		o.Stride = 1
		testCases := []struct {
			name   string
			length int
			bars   int
			loud   int
			want   int
		}{
			{"OneShortOfMultiple", 199, 100, 131, 65},
			{"TrailingSample", 103, 10, 101, 9},
			{"ShortTail", 103, 10, 99, 9},
			{"FirstBlock", 103, 10, 10, 0},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				buf := audio.NewBuffer(8000, 1, tc.length)
				buf.Channels[0][tc.loud] = 1.0

				peaks := ExtractPeaks(buf, tc.bars, o)
				for i, p := range peaks {
					if i == tc.want && p != 1 {
						t.Errorf("Expected frame %d in bar %d, got %f", tc.loud, i, p)
					}
					if i != tc.want && p != 0 {
						t.Errorf("Expected bar %d silent, got %f", i, p)
					}
				}
			})
		}
	})

	t.Run("TrailingBlocksMayBeEmpty", func(t *testing.T) {
		o := opts
		o.Stride = 1
		buf := audio.NewBuffer(8000, 1, 7)
		for i := range buf.Channels[0] {
			buf.Channels[0][i] = 1
		}

		// blocks of 2 frames: 0-1, 2-3, 4-5, 6, then nothing
		peaks := ExtractPeaks(buf, 5, o)
		if peaks[3] != 1 || peaks[4] != 0 {
			t.Errorf("Expected short fourth block and empty fifth, got %v", peaks)
		}
	})

	t.Run("EmptyBuffer", func(t *testing.T) {
		peaks := ExtractPeaks(&audio.Buffer{SampleRate: 8000}, 5, opts)
		if len(peaks) != 5 {
			t.Errorf("Expected 5 peaks for empty buffer, got %d", len(peaks))
		}
		if ExtractPeaks(&audio.Buffer{}, 0, opts) != nil {
			t.Error("Expected nil for zero bars")
		}
	})
}

func TestPlaceholder(t *testing.T) {
	peaks := Placeholder(8)
	if len(peaks) != 8 {
		t.Fatalf("Expected 8 bars, got %d", len(peaks))
	}
	for i, v := range peaks {
		if v <= 0 || v > 1 {
			t.Errorf("bar %d out of range: %f", i, v)
		}
	}
	if peaks[0] != peaks[6] {
		t.Error("Expected placeholder to repeat")
	}
}

func TestResample(t *testing.T) {
	testCases := []struct {
		name     string
		peaks    []float64
		width    int
		expected []float64
	}{
		{"halve", []float64{0, 1, 0.5, 0.5}, 2, []float64{0.5, 0.5}},
		{"no upsample", []float64{0.2, 0.4}, 5, []float64{0.2, 0.4}},
		{"single", []float64{1, 0, 0.5}, 1, []float64{0.5}},
		{"empty", nil, 3, nil},
		{"zero width", []float64{1}, 0, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resample(tc.peaks, tc.width)
			if len(got) != len(tc.expected) {
				t.Fatalf("Expected %v, got %v", tc.expected, got)
			}
			for i := range got {
				if math.Abs(got[i]-tc.expected[i]) > 1e-9 {
					t.Errorf("Expected %v, got %v", tc.expected, got)
				}
			}
		})
	}
}

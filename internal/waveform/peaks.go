package waveform

import (
	"math"

	"beatbrowser/internal/audio"
)

// PeakOptions controls the perceptual scaling of extracted peaks. Every track
// on a page must use the same options or their bars are not comparable.
type PeakOptions struct {
	Stride  int     // sample step inside a block
	FloorDB float64 // level mapped to 0
	CeilDB  float64 // level mapped to 1
	Epsilon float64 // added before log10 so silence stays finite
}

// DefaultPeakOptions returns the storefront's rendering policy
func DefaultPeakOptions() PeakOptions {
	return PeakOptions{
		Stride:  32,
		FloorDB: -60,
		CeilDB:  0,
		Epsilon: 1e-4,
	}
}

// ExtractPeaks reduces buf to bars values in [0,1]. The sample range is split
// into equal blocks of ceil(len/bars) frames, so only trailing blocks run
// short or empty. Each block's loudest sampled magnitude over all channels is
// converted to dB and mapped from [FloorDB, CeilDB] onto [0,1].
func ExtractPeaks(buf *audio.Buffer, bars int, opts PeakOptions) []float64 {
	if bars <= 0 {
		return nil
	}
	peaks := make([]float64, bars)
	length := buf.Len()
	if length == 0 {
		for i := range peaks {
			peaks[i] = normalizeLevel(0, opts)
		}
		return peaks
	}

	stride := opts.Stride
	if stride < 1 {
		stride = 1
	}
	blockSize := (length + bars - 1) / bars

	for i := 0; i < bars; i++ {
		start := i * blockSize
		end := start + blockSize
		if end > length {
			end = length
		}

		var peak float64
		for j := start; j < end; j += stride {
			for _, ch := range buf.Channels {
				v := math.Abs(float64(ch[j]))
				if v > peak {
					peak = v
				}
			}
		}
		peaks[i] = normalizeLevel(peak, opts)
	}
	return peaks
}

// normalizeLevel converts a linear magnitude to the clamped dB scale
func normalizeLevel(peak float64, opts PeakOptions) float64 {
	window := opts.CeilDB - opts.FloorDB
	if window <= 0 {
		return 0
	}
	db := 20 * math.Log10(peak+opts.Epsilon)
	norm := (db - opts.FloorDB) / window
	return math.Min(1, math.Max(0, norm))
}

// Placeholder returns the flat repeating pattern drawn when a track's samples
// cannot be read. It never depends on the track so it is always available.
func Placeholder(bars int) []float64 {
	if bars <= 0 {
		return nil
	}
	pattern := []float64{0.35, 0.55, 0.45, 0.7, 0.4, 0.6}
	out := make([]float64, bars)
	for i := range out {
		out[i] = pattern[i%len(pattern)]
	}
	return out
}

// Resample fits peaks into width bars by segment averaging so the shape holds
// at any display width. Peaks are never upsampled.
func Resample(peaks []float64, width int) []float64 {
	if width <= 0 || len(peaks) == 0 {
		return nil
	}
	if width >= len(peaks) {
		out := make([]float64, len(peaks))
		copy(out, peaks)
		return out
	}

	out := make([]float64, width)
	segment := float64(len(peaks)) / float64(width)
	for i := range out {
		start := int(math.Floor(float64(i) * segment))
		end := int(math.Floor(float64(i+1) * segment))
		if end <= start {
			end = start + 1
		}
		if end > len(peaks) {
			end = len(peaks)
		}
		var sum float64
		for _, v := range peaks[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

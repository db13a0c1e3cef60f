package audio

import "time"

// Buffer holds fully decoded audio as normalized float samples, one slice per
// channel. All channel slices have the same length.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// NewBuffer allocates a zeroed buffer
func NewBuffer(sampleRate, numChannels, length int) *Buffer {
	channels := make([][]float32, numChannels)
	for i := range channels {
		channels[i] = make([]float32, length)
	}
	return &Buffer{SampleRate: sampleRate, Channels: channels}
}

// Len returns the number of sample frames
func (b *Buffer) Len() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// NumChannels returns the channel count
func (b *Buffer) NumChannels() int {
	if b == nil {
		return 0
	}
	return len(b.Channels)
}

// Duration returns the playing time of the buffer
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Len()) / float64(b.SampleRate) * float64(time.Second))
}

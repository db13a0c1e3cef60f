// Package audiotest builds small in-memory audio fixtures for tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
	"math"
)

// WAV encodes channels as a 16-bit PCM RIFF/WAVE file. Samples are clamped to
// [-1, 1]; all channels must have the same length.
func WAV(sampleRate int, channels [][]float32) []byte {
	numChans := len(channels)
	frames := 0
	if numChans > 0 {
		frames = len(channels[0])
	}
	const bitDepth = 16
	blockAlign := numChans * bitDepth / 8
	dataSize := frames * blockAlign

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(numChans))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitDepth))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))

	for i := 0; i < frames; i++ {
		for ch := 0; ch < numChans; ch++ {
			v := math.Max(-1, math.Min(1, float64(channels[ch][i])))
			binary.Write(&buf, binary.LittleEndian, int16(v*32767))
		}
	}
	return buf.Bytes()
}

// Tone returns a mono sine of the given length at amplitude amp
func Tone(frames int, amp float32) []float32 {
	out := make([]float32, frames)
	for i := range out {
		out[i] = amp * float32(math.Sin(float64(i)*2*math.Pi/50))
	}
	return out
}

package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"beatbrowser/pkg/models"

	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
)

// Format identifies a container/codec by its leading bytes
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatFLAC    Format = "flac"
	FormatMP3     Format = "mp3"
	FormatM4A     Format = "m4a"
	FormatOgg     Format = "ogg"
)

// Sniff guesses the format from magic bytes. Extensions are not trusted since
// storefront sources are often signed URLs without one.
func Sniff(data []byte) Format {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 4 && string(data[0:4]) == "fLaC":
		return FormatFLAC
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		return FormatOgg
	case len(data) >= 8 && string(data[4:8]) == "ftyp":
		return FormatM4A
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// Decoder turns encoded audio bytes into a Buffer
type Decoder struct {
	logger *logrus.Logger
}

// NewDecoder creates a decoder for WAV, FLAC and MP3 input
func NewDecoder(logger *logrus.Logger) *Decoder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Decoder{logger: logger}
}

// Decode decodes a complete file held in memory. Any failure is reported as
// models.ErrDecodeUnsupported so callers can degrade to a placeholder.
func (d *Decoder) Decode(data []byte) (*Buffer, error) {
	startTime := time.Now()
	format := Sniff(data)

	var (
		buf *Buffer
		err error
	)
	switch format {
	case FormatWAV:
		buf, err = decodeWAV(data)
	case FormatFLAC:
		buf, err = decodeFLAC(data)
	case FormatMP3:
		buf, err = decodeMP3(data)
	default:
		return nil, fmt.Errorf("format %q: %w", format, models.ErrDecodeUnsupported)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", format, err, models.ErrDecodeUnsupported)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("decode %s: no samples: %w", format, models.ErrDecodeUnsupported)
	}

	d.logger.WithFields(logrus.Fields{
		"format":         format,
		"sampleRate":     buf.SampleRate,
		"channels":       buf.NumChannels(),
		"duration":       buf.Duration(),
		"processingTime": time.Since(startTime),
	}).Debug("Decoded audio buffer")

	return buf, nil
}

// decodeWAV reads integer PCM through go-audio/wav
func decodeWAV(data []byte) (*Buffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav file")
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	numChans := int(dec.NumChans)
	if pcm.Format != nil && pcm.Format.NumChannels > 0 {
		numChans = pcm.Format.NumChannels
	}
	if numChans <= 0 || dec.SampleRate == 0 {
		return nil, errors.New("invalid wav header")
	}
	bitDepth := pcm.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	frames := len(pcm.Data) / numChans
	buf := NewBuffer(int(dec.SampleRate), numChans, frames)
	scale := float32(int64(1) << (bitDepth - 1))
	for i := 0; i < frames; i++ {
		for ch := 0; ch < numChans; ch++ {
			v := pcm.Data[i*numChans+ch]
			if bitDepth == 8 {
				// 8-bit WAV is unsigned
				v -= 128
			}
			buf.Channels[ch][i] = float32(v) / scale
		}
	}
	return buf, nil
}

// decodeFLAC walks every frame of the stream
func decodeFLAC(data []byte) (*Buffer, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	info := stream.Info
	if info.NChannels == 0 || info.SampleRate == 0 || info.BitsPerSample == 0 {
		return nil, errors.New("flac stream missing sample info")
	}
	numChans := int(info.NChannels)
	scale := float32(int64(1) << (info.BitsPerSample - 1))

	channels := make([][]float32, numChans)
	for ch := range channels {
		channels[ch] = make([]float32, 0, int(info.NSamples))
	}
	for {
		fr, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		for ch := 0; ch < numChans && ch < len(fr.Subframes); ch++ {
			for _, s := range fr.Subframes[ch].Samples {
				channels[ch] = append(channels[ch], float32(s)/scale)
			}
		}
	}
	equalizeLengths(channels)
	return &Buffer{SampleRate: int(info.SampleRate), Channels: channels}, nil
}

// decodeMP3 reads go-mp3's 16-bit little-endian stereo output
func decodeMP3(data []byte) (*Buffer, error) {
	dec, err := gomp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	pcm, err := io.ReadAll(dec)
	if err != nil && len(pcm) == 0 {
		return nil, err
	}
	const bytesPerFrame = 4
	frames := len(pcm) / bytesPerFrame
	buf := NewBuffer(dec.SampleRate(), 2, frames)
	for i := 0; i < frames; i++ {
		off := i * bytesPerFrame
		l := int16(binary.LittleEndian.Uint16(pcm[off : off+2]))
		r := int16(binary.LittleEndian.Uint16(pcm[off+2 : off+4]))
		buf.Channels[0][i] = float32(l) / 32768
		buf.Channels[1][i] = float32(r) / 32768
	}
	return buf, nil
}

// equalizeLengths trims channels to the shortest one so Buffer stays rectangular
func equalizeLengths(channels [][]float32) {
	if len(channels) == 0 {
		return
	}
	shortest := len(channels[0])
	for _, ch := range channels[1:] {
		if len(ch) < shortest {
			shortest = len(ch)
		}
	}
	for i := range channels {
		channels[i] = channels[i][:shortest]
	}
}

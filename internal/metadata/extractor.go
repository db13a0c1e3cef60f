package metadata

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"beatbrowser/internal/audio"
	"beatbrowser/pkg/models"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// Fetcher retrieves the encoded bytes behind a source locator
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// Info is what a probe learns about a source without decoding samples
type Info struct {
	Duration time.Duration
	Title    string
	Artist   string
	Format   audio.Format
}

// Extractor reads durations and tags from encoded audio
type Extractor struct {
	supportedFormats []string
	fetcher          Fetcher
	logger           *logrus.Logger
}

// NewExtractor creates a new metadata extractor
func NewExtractor(supportedFormats []string, fetcher Fetcher, logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return &Extractor{
		supportedFormats: supportedFormats,
		fetcher:          fetcher,
		logger:           logger,
	}
}

// Probe fetches a source and reads its metadata
func (e *Extractor) Probe(ctx context.Context, locator string) (Info, error) {
	startTime := time.Now()

	data, err := e.fetcher.Fetch(ctx, locator)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"source": locator,
			"error":  err.Error(),
		}).Warn("Failed to fetch audio for probing")
		return Info{}, err
	}

	info, err := e.ProbeBytes(data)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"source": locator,
			"error":  err.Error(),
		}).Warn("Failed to probe audio")
		return Info{}, err
	}
	if info.Title == "" {
		info.Title = titleFromLocator(locator)
	}

	e.logger.WithFields(logrus.Fields{
		"source":         locator,
		"title":          info.Title,
		"duration":       info.Duration,
		"format":         info.Format,
		"processingTime": time.Since(startTime),
	}).Debug("Successfully probed metadata")

	return info, nil
}

// ProbeBytes reads duration and tags from a complete file held in memory
func (e *Extractor) ProbeBytes(data []byte) (Info, error) {
	format := audio.Sniff(data)

	duration, err := e.calculateDuration(format, data)
	if err != nil {
		return Info{}, fmt.Errorf("duration of %q: %v: %w", format, err, models.ErrDecodeUnsupported)
	}

	info := Info{Duration: duration, Format: format}

	// Tags are optional; WAV files usually carry none.
	if metadata, err := tag.ReadFrom(bytes.NewReader(data)); err == nil {
		info.Title = metadata.Title()
		info.Artist = metadata.Artist()
	}

	return info, nil
}

// calculateDuration dispatches on the sniffed container
func (e *Extractor) calculateDuration(format audio.Format, data []byte) (time.Duration, error) {
	switch format {
	case audio.FormatMP3:
		return e.durationMP3(data)
	case audio.FormatFLAC:
		return e.durationFLAC(data)
	case audio.FormatWAV:
		return e.durationWAV(data)
	case audio.FormatM4A:
		return e.durationM4A(data)
	default:
		return 0, fmt.Errorf("unsupported format: %q", format)
	}
}

// MP3 duration using frame decoding; fallback to average bitrate estimation only if frames fail entirely.
func (e *Extractor) durationMP3(data []byte) (time.Duration, error) {
	dec := mp3.NewDecoder(bytes.NewReader(data))
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 { // could not decode any frame
				return estimateFromSize(int64(len(data)), 192000) // assume 192 kbps
			}
			break // partial decode; use what we have
		}
		total += fr.Duration()
		frames++
	}
	if frames == 0 {
		return 0, errors.New("no mp3 frames")
	}
	return total, nil
}

// FLAC duration via STREAMINFO metadata block
func (e *Extractor) durationFLAC(data []byte) (time.Duration, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	defer stream.Close()
	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		secs := float64(si.NSamples) / float64(si.SampleRate)
		return seconds(secs), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

// WAV duration from the header and data size
func (e *Extractor) durationWAV(data []byte) (time.Duration, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}
	if d, err := dec.Duration(); err == nil && d > 0 {
		return d, nil
	}
	// Approximate using byte size when the data chunk length is unreliable.
	headerSize := int64(44)
	pcmBytes := int64(len(data)) - headerSize
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerSampleFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerSampleFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	sampleFrames := pcmBytes / bytesPerSampleFrame
	return seconds(float64(sampleFrames) / float64(dec.SampleRate)), nil
}

// M4A (AAC in MP4) minimal duration parsing: read 'mvhd' timescale & duration.
// Lightweight manual atom scan to avoid pulling large dep. Best-effort.
func (e *Extractor) durationM4A(data []byte) (time.Duration, error) {
	r := bytes.NewReader(data)
	for {
		head := make([]byte, 8)
		if _, err := io.ReadFull(r, head); err != nil {
			return 0, err
		}
		size := binary.BigEndian.Uint32(head[0:4])
		atom := string(head[4:8])
		if size < 8 {
			return 0, fmt.Errorf("invalid atom size")
		}
		if atom == "moov" {
			limit := int64(size) - 8
			for read := int64(0); read < limit; {
				subHead := make([]byte, 8)
				if _, err := io.ReadFull(r, subHead); err != nil {
					return 0, err
				}
				subSize := binary.BigEndian.Uint32(subHead[0:4])
				if string(subHead[4:8]) == "mvhd" {
					return readMvhd(r)
				}
				if subSize < 8 {
					return 0, fmt.Errorf("invalid sub-atom size")
				}
				if _, err := r.Seek(int64(subSize)-8, io.SeekCurrent); err != nil {
					return 0, err
				}
				read += int64(subSize)
			}
			break
		}
		if _, err := r.Seek(int64(size)-8, io.SeekCurrent); err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("mvhd atom not found")
}

// readMvhd reads timescale and duration positioned just after the mvhd header
func readMvhd(r io.ReadSeeker) (time.Duration, error) {
	version := make([]byte, 1)
	if _, err := io.ReadFull(r, version); err != nil {
		return 0, err
	}
	var skip int64
	if version[0] == 1 { // 64-bit
		skip = 3 + 8 + 8 // flags + creation + mod times
	} else {
		skip = 3 + 4 + 4
	}
	if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
		return 0, err
	}
	tsBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, tsBuf); err != nil {
		return 0, err
	}
	timescale := binary.BigEndian.Uint32(tsBuf)
	if timescale == 0 {
		return 0, fmt.Errorf("invalid timescale")
	}
	var durUnits uint64
	if version[0] == 1 {
		durBuf := make([]byte, 8)
		if _, err := io.ReadFull(r, durBuf); err != nil {
			return 0, err
		}
		durUnits = binary.BigEndian.Uint64(durBuf)
	} else {
		durBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, durBuf); err != nil {
			return 0, err
		}
		durUnits = uint64(binary.BigEndian.Uint32(durBuf))
	}
	return seconds(float64(durUnits) / float64(timescale)), nil
}

// estimateFromSize provides last-resort estimation if parsing fails
func estimateFromSize(size int64, bitrate int) (time.Duration, error) {
	if bitrate <= 0 {
		return 0, fmt.Errorf("invalid bitrate")
	}
	return seconds(float64(size*8) / float64(bitrate)), nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// titleFromLocator derives a display title from the last path segment
func titleFromLocator(locator string) string {
	base := path.Base(strings.SplitN(locator, "?", 2)[0])
	return strings.TrimSuffix(base, path.Ext(base))
}

// IsAudioFile checks if a file is a supported audio format
func (e *Extractor) IsAudioFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range e.supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// GetContentType returns the MIME type for an audio file
func (e *Extractor) GetContentType(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

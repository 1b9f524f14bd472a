package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
)

// Default format of synthesized dialogue.
const (
	DefaultSampleRate = 22050
	DefaultChannels   = 1
	DefaultBitDepth   = 16
)

// ErrInvalidWAV is returned when a payload is not a readable WAV file.
var ErrInvalidWAV = errors.New("invalid WAV data")

// PCM is decoded audio as interleaved float32 samples in [-1, 1].
type PCM struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration returns the playback length.
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	frames := len(p.Samples) / p.Channels
	return time.Duration(frames) * time.Second / time.Duration(p.SampleRate)
}

// EncodeWAV encodes mono float32 samples as 16-bit PCM WAV.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate < 1 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	var buf bytes.Buffer

	// wav.NewEncoder requires an io.WriteSeeker
	sw := &seekBuffer{buf: &buf}
	enc := wav.NewEncoder(sw, sampleRate, DefaultBitDepth, DefaultChannels, 1) // 1 = PCM

	pcmBuf := &goaudio.Float32Buffer{
		Data:           samples,
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: DefaultChannels},
		SourceBitDepth: DefaultBitDepth,
	}

	if err := enc.Write(pcmBuf); err != nil {
		return nil, fmt.Errorf("writing PCM: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing encoder: %w", err)
	}

	return buf.Bytes(), nil
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// DecodeWAV decodes a WAV payload of any rate and channel count.
func DecodeWAV(data []byte) (PCM, error) {
	if len(data) == 0 {
		return PCM{}, fmt.Errorf("%w: empty input", ErrInvalidWAV)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return PCM{}, ErrInvalidWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("reading PCM data: %w", err)
	}

	return PCM{
		Samples:    buf.Data,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}

// WAVDuration returns the length of a WAV payload, or zero if it cannot
// be decoded.
func WAVDuration(data []byte) time.Duration {
	pcm, err := DecodeWAV(data)
	if err != nil {
		return 0
	}
	return pcm.Duration()
}

// ToPCM16 converts decoded audio to interleaved signed 16-bit little
// endian bytes at the given rate and channel count. Resampling is linear.
func ToPCM16(p PCM, sampleRate, channels int) []byte {
	if p.SampleRate <= 0 || p.Channels <= 0 || len(p.Samples) == 0 {
		return nil
	}

	srcFrames := len(p.Samples) / p.Channels
	dstFrames := srcFrames
	if sampleRate != p.SampleRate {
		dstFrames = int(int64(srcFrames) * int64(sampleRate) / int64(p.SampleRate))
	}

	out := make([]byte, 0, dstFrames*channels*2)
	step := float64(p.SampleRate) / float64(sampleRate)

	for i := 0; i < dstFrames; i++ {
		pos := float64(i) * step
		idx := int(pos)
		frac := float32(pos - float64(idx))

		for ch := 0; ch < channels; ch++ {
			srcCh := ch
			if srcCh >= p.Channels {
				srcCh = p.Channels - 1
			}
			a := p.Samples[idx*p.Channels+srcCh]
			b := a
			if idx+1 < srcFrames {
				b = p.Samples[(idx+1)*p.Channels+srcCh]
			}
			out = appendInt16(out, a+(b-a)*frac)
		}
	}
	return out
}

func appendInt16(out []byte, s float32) []byte {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	v := int16(s * 32767)
	return append(out, byte(v), byte(v>>8))
}

// seekBuffer wraps a bytes.Buffer to satisfy io.WriteSeeker.
type seekBuffer struct {
	buf *bytes.Buffer
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if s.pos == s.buf.Len() {
		n, err := s.buf.Write(p)
		s.pos += n
		return n, err
	}

	// overwrite in place, extending past the end if needed
	data := s.buf.Bytes()
	n := copy(data[s.pos:], p)
	if n < len(p) {
		data = append(data, p[n:]...)
		s.buf.Reset()
		s.buf.Write(data)
		n = len(p)
	}
	s.pos += n
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int
	switch whence {
	case io.SeekStart:
		newPos = int(offset)
	case io.SeekCurrent:
		newPos = s.pos + int(offset)
	case io.SeekEnd:
		newPos = s.buf.Len() + int(offset)
	}
	if newPos < 0 {
		return 0, errors.New("seek before start")
	}
	s.pos = newPos
	return int64(newPos), nil
}

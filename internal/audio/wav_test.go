package audio

import (
	"math"
	"testing"
	"time"

	"github.com/dgnsrekt/parley/internal/ttypes"
)

func sine(n, rate int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return out
}

func TestEncodeDecodeWAV(t *testing.T) {
	samples := sine(DefaultSampleRate/2, DefaultSampleRate)

	data, err := EncodeWAV(samples, DefaultSampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	if !IsWAV(data) {
		t.Fatal("Encoded data is missing the RIFF/WAVE header")
	}

	pcm, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if pcm.SampleRate != DefaultSampleRate || pcm.Channels != 1 {
		t.Errorf("format = %d Hz / %d ch", pcm.SampleRate, pcm.Channels)
	}
	if len(pcm.Samples) != len(samples) {
		t.Errorf("decoded %d samples, want %d", len(pcm.Samples), len(samples))
	}

	if d := WAVDuration(data); d != 500*time.Millisecond {
		t.Errorf("WAVDuration = %v, want 500ms", d)
	}
}

func TestEncodeWAV_InvalidRate(t *testing.T) {
	if _, err := EncodeWAV([]float32{0}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not a wav file")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeWAV(tt.data); err == nil {
				t.Error("expected error")
			}
			if WAVDuration(tt.data) != 0 {
				t.Error("expected zero duration")
			}
		})
	}
}

func TestToPCM16(t *testing.T) {
	pcm := PCM{Samples: []float32{0, 1, -1, 0.5}, SampleRate: 100, Channels: 1}

	t.Run("same format", func(t *testing.T) {
		out := ToPCM16(pcm, 100, 1)
		if len(out) != 8 {
			t.Fatalf("len = %d, want 8", len(out))
		}
		if v := int16(out[2]) | int16(out[3])<<8; v != 32767 {
			t.Errorf("sample 1 = %d, want 32767", v)
		}
	})

	t.Run("mono to stereo", func(t *testing.T) {
		out := ToPCM16(pcm, 100, 2)
		if len(out) != 16 {
			t.Errorf("len = %d, want 16", len(out))
		}
	})

	t.Run("upsample", func(t *testing.T) {
		out := ToPCM16(pcm, 200, 1)
		if len(out) != 16 {
			t.Errorf("len = %d, want 16", len(out))
		}
	})

	t.Run("empty", func(t *testing.T) {
		if out := ToPCM16(PCM{}, 100, 1); out != nil {
			t.Errorf("expected nil, got %d bytes", len(out))
		}
	})
}

func TestPlayerConfig(t *testing.T) {
	tests := []struct {
		name      string
		config    PlayerConfig
		expectErr bool
	}{
		{"default", DefaultPlayerConfig(), false},
		{"valid 48000Hz stereo", PlayerConfig{SampleRate: 48000, Channels: 2, BitDepth: 16, BufferSize: 8192}, false},
		{"invalid sample rate", PlayerConfig{SampleRate: 22050, Channels: 1, BitDepth: 16, BufferSize: 4096}, true},
		{"invalid channels", PlayerConfig{SampleRate: 44100, Channels: 3, BitDepth: 16, BufferSize: 4096}, true},
		{"invalid bit depth", PlayerConfig{SampleRate: 44100, Channels: 1, BitDepth: 24, BufferSize: 4096}, true},
		{"invalid buffer size", PlayerConfig{SampleRate: 44100, Channels: 1, BitDepth: 16, BufferSize: 0}, true},
		{"invalid gain", PlayerConfig{SampleRate: 44100, Channels: 1, BitDepth: 16, BufferSize: 4096,
			CategoryGain: map[ttypes.Category]float64{ttypes.CategoryVoice: 2}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePlayerConfig(tt.config)
			if tt.expectErr && err == nil {
				t.Errorf("ValidatePlayerConfig() expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("ValidatePlayerConfig() unexpected error: %v", err)
			}
		})
	}
}

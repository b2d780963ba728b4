// Package audiosource opens and validates mono 16-bit PCM WAV files and
// exposes them as a lazy sequence of fixed-duration sample chunks.
//
// Validation runs before any network activity so malformed input never
// reaches the streaming session. Each call to Chunks re-reads the file
// from the beginning.
package audiosource

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	// BitDepth is the only supported sample width.
	BitDepth = 16

	// Channels is the only supported channel count.
	Channels = 1

	// WAV format tags accepted as integer PCM.
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

// Config describes an audio file and how it should be chunked.
type Config struct {
	// Path is the WAV file to stream.
	Path string `json:"path"`

	// ChunkDuration is the playback length of one chunk.
	// Default: 500ms
	ChunkDuration time.Duration `json:"chunk_duration"`

	// SampleRate is the frame rate the file must have, in Hz.
	// Default: 16000
	SampleRate int `json:"sample_rate"`
}

// DefaultConfig returns a Config with the client defaults and no path.
func DefaultConfig() Config {
	return Config{
		ChunkDuration: 500 * time.Millisecond,
		SampleRate:    16000,
	}
}

// ChunkFrames returns floor(ChunkDuration * SampleRate).
func (c *Config) ChunkFrames() int {
	return int(math.Floor(c.ChunkDuration.Seconds() * float64(c.SampleRate)))
}

// Validate checks the configuration and the file header. The first failing
// check determines the returned *ConfigError.
func (c *Config) Validate() error {
	if _, err := os.Stat(c.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return configErr(c.Path, ErrFileNotFound, "")
		}
		return configErr(c.Path, ErrInvalidWAV, "%v", err)
	}
	if c.ChunkDuration <= 0 {
		return configErr(c.Path, ErrInvalidDuration, "%v", c.ChunkDuration)
	}
	if c.SampleRate <= 0 {
		return configErr(c.Path, ErrInvalidSampleRate, "%d", c.SampleRate)
	}
	if c.ChunkFrames() < 1 {
		return configErr(c.Path, ErrChunkTooShort, "%v at %d Hz", c.ChunkDuration, c.SampleRate)
	}

	f, err := os.Open(c.Path)
	if err != nil {
		return configErr(c.Path, ErrInvalidWAV, "%v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return configErr(c.Path, ErrInvalidWAV, "%v", err)
	}
	if dec.NumChans == 0 {
		return configErr(c.Path, ErrInvalidWAV, "missing fmt chunk")
	}
	if dec.WavAudioFormat != formatPCM && dec.WavAudioFormat != formatExtensible {
		return configErr(c.Path, ErrInvalidWAV, "unsupported format tag %d", dec.WavAudioFormat)
	}

	if int(dec.SampleRate) != c.SampleRate {
		return configErr(c.Path, ErrSampleRateMismatch, "expected %d, got %d", c.SampleRate, dec.SampleRate)
	}
	if dec.BitDepth != BitDepth {
		return configErr(c.Path, ErrUnsupportedBitDepth, "got %d-bit", dec.BitDepth)
	}
	if dec.NumChans != Channels {
		return configErr(c.Path, ErrUnsupportedChannels, "got %d channels", dec.NumChans)
	}
	return nil
}

// Source is a validated audio file. It is immutable and safe for concurrent use;
// every Chunks call reads through its own file handle.
type Source struct {
	cfg         Config
	chunkFrames int
	totalFrames int
}

// Open validates cfg and measures the PCM data of the file.
func Open(cfg Config) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f, dec, err := openPCM(cfg.Path)
	if err != nil {
		return nil, configErr(cfg.Path, ErrInvalidWAV, "%v", err)
	}
	defer f.Close()

	return &Source{
		cfg:         cfg,
		chunkFrames: cfg.ChunkFrames(),
		totalFrames: int(dec.PCMLen()) / (BitDepth / 8),
	}, nil
}

// openPCM opens path and positions the decoder at the start of the data chunk.
func openPCM(path string) (*os.File, *wav.Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	dec := wav.NewDecoder(f)
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("seek to PCM data: %w", err)
	}
	if dec.PCMChunk == nil {
		f.Close()
		if err := dec.Err(); err != nil {
			return nil, nil, fmt.Errorf("seek to PCM data: %w", err)
		}
		return nil, nil, errors.New("missing data chunk")
	}
	return f, dec, nil
}

// Config returns the configuration the source was opened with.
func (s *Source) Config() Config {
	return s.cfg
}

// ChunkDuration returns the playback length of one full chunk.
func (s *Source) ChunkDuration() time.Duration {
	return s.cfg.ChunkDuration
}

// ChunkFrames returns the number of frames in every chunk but the last.
func (s *Source) ChunkFrames() int {
	return s.chunkFrames
}

// TotalFrames returns the number of frames in the data chunk.
func (s *Source) TotalFrames() int {
	return s.totalFrames
}

// TotalChunks returns ceil(TotalFrames / ChunkFrames).
func (s *Source) TotalChunks() int {
	return (s.totalFrames + s.chunkFrames - 1) / s.chunkFrames
}

// Chunks returns a finite sequence of sample chunks in file order. Every chunk
// has ChunkFrames samples except possibly the last. Iteration stops without
// error when the data is exhausted; a read failure is yielded once and ends
// the sequence.
func (s *Source) Chunks() iter.Seq2[[]int16, error] {
	return func(yield func([]int16, error) bool) {
		f, dec, err := openPCM(s.cfg.Path)
		if err != nil {
			yield(nil, fmt.Errorf("open %s: %w", s.cfg.Path, err))
			return
		}
		defer f.Close()

		format := dec.Format()
		remaining := s.totalFrames

		for remaining > 0 {
			want := min(s.chunkFrames, remaining)
			buf := &audio.IntBuffer{Format: format, Data: make([]int, want), SourceBitDepth: BitDepth}

			n, err := fill(dec, buf)
			if err != nil {
				yield(nil, fmt.Errorf("read %s: %w", s.cfg.Path, err))
				return
			}
			if n == 0 {
				return
			}

			chunk := make([]int16, n)
			for i, v := range buf.Data[:n] {
				chunk[i] = int16(v)
			}
			remaining -= n

			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// fill reads until buf.Data is full or the decoder has no more samples.
func fill(dec *wav.Decoder, buf *audio.IntBuffer) (int, error) {
	total := len(buf.Data)
	data := buf.Data
	read := 0

	for read < total {
		buf.Data = data[read:]
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			buf.Data = data
			return read, err
		}
		if n == 0 {
			break
		}
		read += n
	}

	buf.Data = data
	return read, nil
}

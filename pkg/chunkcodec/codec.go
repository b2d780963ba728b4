// Package chunkcodec converts PCM16 sample chunks to the text payload sent
// over the wire: samples scaled to float32 by 1/32768, laid out little-endian
// and base64 encoded.
package chunkcodec

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// Scale maps int16 samples onto [-1.0, 1.0). -32768 becomes exactly -1.0.
const Scale = 32768.0

// BytesPerSample is the encoded width of one sample.
const BytesPerSample = 4

// Encode converts a chunk to its wire payload. It never fails.
func Encode(samples []int16) string {
	buf := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		f := float32(float64(s) / Scale)
		binary.LittleEndian.PutUint32(buf[i*BytesPerSample:], math.Float32bits(f))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// Decode parses a wire payload back into normalized float32 samples.
func Decode(payload string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if len(raw)%BytesPerSample != 0 {
		return nil, fmt.Errorf("payload length %d is not a multiple of %d", len(raw), BytesPerSample)
	}

	out := make([]float32, len(raw)/BytesPerSample)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*BytesPerSample:]))
	}
	return out, nil
}

// ToPCM16 scales normalized samples back to int16, rounding to nearest and
// clamping to the int16 range.
func ToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, f := range samples {
		v := math.Round(float64(f) * Scale)
		out[i] = int16(max(math.MinInt16, min(math.MaxInt16, v)))
	}
	return out
}

// Peak returns the largest absolute sample value, or 0 for an empty chunk.
func Peak(samples []float32) float32 {
	var p float32
	for _, f := range samples {
		if f < 0 {
			f = -f
		}
		p = max(p, f)
	}
	return p
}

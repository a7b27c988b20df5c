package record

import (
	"encoding/binary"
	"math"
)

// Format is the native numeric sample format a capture device reports.
type Format int

const (
	FormatS16 Format = iota
	FormatS24
	FormatS32
	FormatF32
)

// decodeSamples normalizes raw device bytes to mono float32 in [-1, 1].
// Interleaved channels are averaged into one. Trailing bytes that
// don't complete a sample are dropped.
func decodeSamples(f Format, raw []byte, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	width := sampleWidth(f)
	n := len(raw) / width

	mono := make([]float32, 0, n/channels)
	frame := float32(0)
	for i := 0; i < n; i++ {
		frame += decodeOne(f, raw[i*width:])
		if (i+1)%channels == 0 {
			mono = append(mono, frame/float32(channels))
			frame = 0
		}
	}
	return mono
}

func sampleWidth(f Format) int {
	switch f {
	case FormatS16:
		return 2
	case FormatS24:
		return 3
	default:
		return 4
	}
}

func decodeOne(f Format, b []byte) float32 {
	switch f {
	case FormatS16:
		return float32(int16(binary.LittleEndian.Uint16(b))) / math.MaxInt16
	case FormatS24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		// Sign-extend from 24 bits.
		if v&0x800000 != 0 {
			v |= ^0xffffff
		}
		return float32(v) / (1 << 23)
	case FormatS32:
		return float32(int32(binary.LittleEndian.Uint32(b))) / math.MaxInt32
	default: // FormatF32
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	}
}

// rms returns the root-mean-square amplitude of one frame, the value
// published to the loudness cell.
func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

package record

import (
	"bytes"
	"encoding/binary"
)

// wavHeader is the 44-byte RIFF header for a mono IEEE-float stream.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32
	AudioFormat   uint16 // 3 = IEEE float
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// encodeWAV wraps normalized samples in a 32-bit float mono WAV
// container, the shape the transcription API accepts.
func encodeWAV(samples []float32, sampleRate uint32) []byte {
	const bytesPerSample = 4
	dataSize := uint32(len(samples) * bytesPerSample)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   3,
		NumChannels:   1,
		SampleRate:    sampleRate,
		ByteRate:      sampleRate * bytesPerSample,
		BlockAlign:    bytesPerSample,
		BitsPerSample: 32,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*bytesPerSample))
	binary.Write(buf, binary.LittleEndian, header)
	binary.Write(buf, binary.LittleEndian, samples)
	return buf.Bytes()
}

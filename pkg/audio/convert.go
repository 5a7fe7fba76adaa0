package audio

import "encoding/binary"

// Float32ToPCM16 converts normalized float32 samples in [-1, 1] to
// little-endian signed 16-bit PCM bytes, the wire format every STT
// provider in pkg/providers/stt expects.
func Float32ToPCM16(samples []float32) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

// PCM16ToFloat32 converts little-endian signed 16-bit PCM bytes back to
// normalized float32 samples in [-1, 1]. Any trailing odd byte is ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(v) / 32768
	}
	return samples
}

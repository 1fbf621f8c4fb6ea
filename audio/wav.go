package audio

import (
	"bufio"
	"encoding/binary"
	"io"
)

// EncodeWAV writes w as interleaved 16-bit PCM in a RIFF/WAVE container.
func EncodeWAV(dst io.Writer, w Waveform) error {
	nch := len(w.Channels)
	if nch == 0 {
		nch = 1
	}
	n := w.Len()
	dataLen := uint32(n * nch * 2)

	bw := bufio.NewWriter(dst)
	hdr := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		36 + dataLen,
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(1), // PCM
		uint16(nch),
		uint32(w.SampleRate),
		uint32(w.SampleRate * nch * 2),
		uint16(nch * 2),
		uint16(16),
		[4]byte{'d', 'a', 't', 'a'},
		dataLen,
	}
	for _, v := range hdr {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	var frame [2]byte
	for i := 0; i < n; i++ {
		for c := 0; c < len(w.Channels); c++ {
			s := int16(clamp(w.Channels[c][i]) * 32767)
			binary.LittleEndian.PutUint16(frame[:], uint16(s))
			if _, err := bw.Write(frame[:]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

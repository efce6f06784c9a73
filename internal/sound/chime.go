package sound

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

// note is one partial of the chime.
type note struct {
	freq  float64
	start time.Duration
	decay time.Duration
}

// chimeNotes is a two-tone descending bell.
var chimeNotes = []note{
	{freq: 1318.5, start: 0, decay: 600 * time.Millisecond},
	{freq: 987.8, start: 250 * time.Millisecond, decay: 900 * time.Millisecond},
}

const chimeLength = 1400 * time.Millisecond

// Chime renders the bell as signed 16-bit little-endian mono PCM.
func Chime() []byte {
	n := int(chimeLength.Seconds() * SampleRate)
	samples := make([]float64, n)
	for _, nt := range chimeNotes {
		from := int(nt.start.Seconds() * SampleRate)
		tau := nt.decay.Seconds()
		for i := from; i < n; i++ {
			t := float64(i-from) / SampleRate
			samples[i] += math.Sin(2*math.Pi*nt.freq*t) * math.Exp(-t/tau)
		}
	}
	return encodePCM(samples, 0.4)
}

// encodePCM scales samples to int16 with the given peak volume in [0, 1].
func encodePCM(samples []float64, volume float64) []byte {
	peak := 0.0
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(s))
	}
	scale := 0.0
	if peak > 0 {
		scale = volume * math.MaxInt16 / peak
	}
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(s*scale)))
	}
	return out
}

// WAV wraps PCM from Chime (or encodePCM) in a RIFF header.
func WAV(pcm []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	const bitsPerSample = 16
	byteRate := SampleRate * ChannelCount * bitsPerSample / 8

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(ChannelCount))
	binary.Write(&buf, binary.LittleEndian, uint32(SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(ChannelCount*bitsPerSample/8))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

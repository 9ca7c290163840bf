package astridmsg

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/astrid-audio/astrid/internal/astriderr"
	"github.com/astrid-audio/astrid/internal/audio"
)

// Size returns the fixed wire size of a Message given the configured
// bounded-string field widths. Every writer and reader on a given
// deployment must agree on maxName/maxMsg (they come from one
// internal/config.Config).
func Size(maxName, maxMsg int) int {
	// type(1) + timestamp(8) + voice_id(8) + count(8) + instrument_name + msg
	return 1 + 8 + 8 + 8 + maxName + maxMsg
}

// Encode serializes m into a fixed-size byte slice of length Size(maxName,
// maxMsg). InstrumentName and Msg are NUL-padded to their bounded width;
// an oversized field is a BadMessage error.
func Encode(m Message, maxName, maxMsg int) ([]byte, error) {
	if len(m.InstrumentName) >= maxName {
		return nil, astriderr.New(astriderr.BadMessage, "astridmsg.Encode", fmt.Errorf("instrument_name %q exceeds max_name %d", m.InstrumentName, maxName))
	}
	if len(m.Msg) >= maxMsg {
		return nil, astriderr.New(astriderr.BadMessage, "astridmsg.Encode", fmt.Errorf("msg field exceeds max_msg %d", maxMsg))
	}

	buf := make([]byte, Size(maxName, maxMsg))
	off := 0
	buf[off] = byte(m.Type)
	off++
	binary.NativeEndian.PutUint64(buf[off:], math.Float64bits(m.Timestamp))
	off += 8
	binary.NativeEndian.PutUint64(buf[off:], m.VoiceID)
	off += 8
	binary.NativeEndian.PutUint64(buf[off:], m.Count)
	off += 8
	copy(buf[off:off+maxName], m.InstrumentName)
	off += maxName
	copy(buf[off:off+maxMsg], m.Msg)
	off += maxMsg

	return buf, nil
}

// Decode parses a fixed-size record produced by Encode. A short read is a
// BadMessage error; callers (transports) are expected to retry short reads
// themselves before calling Decode — one record is never split across
// two Decode calls.
func Decode(data []byte, maxName, maxMsg int) (Message, error) {
	want := Size(maxName, maxMsg)
	if len(data) != want {
		return Message{}, astriderr.New(astriderr.BadMessage, "astridmsg.Decode", fmt.Errorf("got %d bytes, want %d", len(data), want))
	}

	off := 0
	typ := Type(data[off])
	off++
	ts := math.Float64frombits(binary.NativeEndian.Uint64(data[off:]))
	off += 8
	voiceID := binary.NativeEndian.Uint64(data[off:])
	off += 8
	count := binary.NativeEndian.Uint64(data[off:])
	off += 8
	name := cstring(data[off : off+maxName])
	off += maxName
	msg := cstring(data[off : off+maxMsg])
	off += maxMsg

	if typ > Empty {
		return Message{}, astriderr.New(astriderr.BadMessage, "astridmsg.Decode", fmt.Errorf("bad type discriminant %d", typ))
	}

	return Message{
		Type:           typ,
		Timestamp:      ts,
		VoiceID:        voiceID,
		Count:          count,
		InstrumentName: name,
		Msg:            msg,
	}, nil
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// EncodeBuffer serializes an audio.Buffer plus its attached Message into
// the wire layout: audiosize, length, channels, samplerate, is_looping,
// onset, sample data, then the message record.
func EncodeBuffer(buf *audio.Buffer, msg Message, maxName, maxMsg int) ([]byte, error) {
	msgBytes, err := Encode(msg, maxName, maxMsg)
	if err != nil {
		return nil, err
	}

	audiosize := uint64(len(buf.Data) * 4)
	header := make([]byte, 8+8+4+4+4+8)
	off := 0
	binary.NativeEndian.PutUint64(header[off:], audiosize)
	off += 8
	binary.NativeEndian.PutUint64(header[off:], uint64(buf.Length))
	off += 8
	binary.NativeEndian.PutUint32(header[off:], uint32(int32(buf.Channels)))
	off += 4
	binary.NativeEndian.PutUint32(header[off:], uint32(int32(buf.SampleRate)))
	off += 4
	loop := int32(0)
	if buf.Looping {
		loop = 1
	}
	binary.NativeEndian.PutUint32(header[off:], uint32(loop))
	off += 4
	binary.NativeEndian.PutUint64(header[off:], buf.Onset)

	out := make([]byte, 0, len(header)+int(audiosize)+len(msgBytes))
	out = append(out, header...)
	for _, s := range buf.Data {
		var sb [4]byte
		binary.NativeEndian.PutUint32(sb[:], math.Float32bits(s))
		out = append(out, sb[:]...)
	}
	out = append(out, msgBytes...)
	return out, nil
}

// DecodeBuffer is the inverse of EncodeBuffer. Round-trip through
// EncodeBuffer/DecodeBuffer preserves every header field and sample
// exactly.
func DecodeBuffer(data []byte, maxName, maxMsg int) (*audio.Buffer, Message, error) {
	headerSize := 8 + 8 + 4 + 4 + 4 + 8
	if len(data) < headerSize {
		return nil, Message{}, astriderr.New(astriderr.BadMessage, "astridmsg.DecodeBuffer", fmt.Errorf("short header: %d bytes", len(data)))
	}

	off := 0
	audiosize := binary.NativeEndian.Uint64(data[off:])
	off += 8
	length := binary.NativeEndian.Uint64(data[off:])
	off += 8
	channels := int32(binary.NativeEndian.Uint32(data[off:]))
	off += 4
	samplerate := int32(binary.NativeEndian.Uint32(data[off:]))
	off += 4
	isLooping := int32(binary.NativeEndian.Uint32(data[off:]))
	off += 4
	onset := binary.NativeEndian.Uint64(data[off:])
	off += 8

	msgSize := Size(maxName, maxMsg)
	want := headerSize + int(audiosize) + msgSize
	if len(data) != want {
		return nil, Message{}, astriderr.New(astriderr.BadMessage, "astridmsg.DecodeBuffer", fmt.Errorf("got %d bytes, want %d", len(data), want))
	}

	numSamples := int(audiosize / 4)
	samples := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		samples[i] = math.Float32frombits(binary.NativeEndian.Uint32(data[off : off+4]))
		off += 4
	}

	msg, err := Decode(data[off:off+msgSize], maxName, maxMsg)
	if err != nil {
		return nil, Message{}, err
	}

	buf := &audio.Buffer{
		Data:       samples,
		Length:     int(length),
		Channels:   int(channels),
		SampleRate: int(samplerate),
		Looping:    isLooping != 0,
		Onset:      onset,
	}
	return buf, msg, nil
}

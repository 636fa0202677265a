package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"testing"
)

func pcm16Base64(t *testing.T, values ...int16) string {
	t.Helper()
	buf := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func TestDecodeBase64PCM16Normalizes(t *testing.T) {
	samples, err := DecodeBase64PCM16(pcm16Base64(t, 0, 16384, -16384, 32767, -32768))
	if err != nil {
		t.Fatalf("DecodeBase64PCM16() error = %v", err)
	}
	if len(samples) != 5 {
		t.Fatalf("samples = %d, want 5", len(samples))
	}
	if samples[0] != 0 {
		t.Fatalf("samples[0] = %v, want 0", samples[0])
	}
	if samples[1] != 0.5 {
		t.Fatalf("samples[1] = %v, want 0.5", samples[1])
	}
	if samples[2] != -0.5 {
		t.Fatalf("samples[2] = %v, want -0.5", samples[2])
	}
	if samples[4] != -1 {
		t.Fatalf("samples[4] = %v, want -1", samples[4])
	}
}

func TestDecodeBase64PCM16RejectsBadInput(t *testing.T) {
	if _, err := DecodeBase64PCM16("not base64!!!"); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
	if _, err := DecodeBase64PCM16(base64.StdEncoding.EncodeToString([]byte{1})); err == nil {
		t.Fatalf("expected error for odd byte count")
	}
}

func TestEncodePCM16RoundTrip(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.999, -1}
	decoded, err := DecodeBase64PCM16(EncodeBase64PCM16(in))
	if err != nil {
		t.Fatalf("round trip decode error = %v", err)
	}
	if len(decoded) != len(in) {
		t.Fatalf("decoded length = %d, want %d", len(decoded), len(in))
	}
	for i := range in {
		diff := decoded[i] - in[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > 1.0/16384 {
			t.Fatalf("sample %d = %v, want close to %v", i, decoded[i], in[i])
		}
	}
}

func TestEncodePCM16ClampsOutOfRange(t *testing.T) {
	out := EncodePCM16([]float32{2, -2})
	hi := int16(binary.LittleEndian.Uint16(out[0:]))
	lo := int16(binary.LittleEndian.Uint16(out[2:]))
	if hi != 32767 {
		t.Fatalf("clamped high = %d, want 32767", hi)
	}
	if lo != -32768 {
		t.Fatalf("clamped low = %d, want -32768", lo)
	}
}

func TestConcatPreservesOrder(t *testing.T) {
	out := Concat([][]float32{{1, 2}, {3}, {4, 5}})
	want := []float32{1, 2, 3, 4, 5}
	if len(out) != len(want) {
		t.Fatalf("length = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	wav := EncodeWAV([]float32{0, 0.5, -0.5}, 16000)
	if len(wav) != 44+6 {
		t.Fatalf("wav length = %d, want 50", len(wav))
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Fatalf("missing RIFF/WAVE markers: %q", wav[:12])
	}
	rate := binary.LittleEndian.Uint32(wav[24:28])
	if rate != 16000 {
		t.Fatalf("sample rate = %d, want 16000", rate)
	}
	dataSize := binary.LittleEndian.Uint32(wav[40:44])
	if dataSize != 6 {
		t.Fatalf("data size = %d, want 6", dataSize)
	}
}

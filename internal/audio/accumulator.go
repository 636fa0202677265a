package audio

import (
	"errors"
	"log/slog"
)

var ErrEmptyBuffer = errors.New("audio buffer is empty")

// Accumulator collects decoded PCM chunks for one session until commit.
// It is owned by a single connection goroutine and therefore unlocked;
// the connection loop never processes two inbound frames concurrently.
type Accumulator struct {
	chunks [][]float32
	logger *slog.Logger
}

func NewAccumulator(logger *slog.Logger) *Accumulator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Accumulator{logger: logger}
}

// Append decodes one base64 PCM16 chunk and buffers it. A decode failure
// is logged and reported without touching already-buffered chunks.
func (a *Accumulator) Append(delta string) error {
	samples, err := DecodeBase64PCM16(delta)
	if err != nil {
		a.logger.Warn("audio chunk rejected", "error", err)
		return err
	}
	a.chunks = append(a.chunks, samples)
	return nil
}

// Commit concatenates all buffered chunks in arrival order and clears the
// buffer. Callers own the returned samples; the accumulator keeps nothing,
// so a failed utterance never leaks into the next one.
func (a *Accumulator) Commit() ([]float32, error) {
	if len(a.chunks) == 0 {
		a.logger.Info("audio commit with empty buffer, nothing to do")
		return nil, ErrEmptyBuffer
	}
	samples := Concat(a.chunks)
	a.chunks = nil
	return samples, nil
}

// Len reports the number of buffered chunks.
func (a *Accumulator) Len() int { return len(a.chunks) }

// SampleCount reports the total number of buffered samples.
func (a *Accumulator) SampleCount() int {
	n := 0
	for _, c := range a.chunks {
		n += len(c)
	}
	return n
}

package events

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Source delivers event batches in order. Next returns io.EOF once the
// stream is exhausted.
type Source interface {
	Next(ctx context.Context) ([]Event, error)
}

// Batch is the JSON envelope of one delivered batch.
type Batch struct {
	Events []Event `json:"events"`
}

// maxLineSize bounds a single JSONL batch.
const maxLineSize = 16 << 20

// JSONLSource reads one JSON-encoded Batch per line. Blank lines are
// skipped. Event data is base64, as encoding/json renders []byte.
type JSONLSource struct {
	scanner *bufio.Scanner
	line    int
}

// NewJSONLSource returns a source reading from r.
func NewJSONLSource(r io.Reader) *JSONLSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &JSONLSource{scanner: scanner}
}

// Next implements Source.
func (s *JSONLSource) Next(ctx context.Context) ([]Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("read batch line %d: %w", s.line+1, err)
			}
			return nil, io.EOF
		}
		s.line++

		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var batch Batch
		if err := json.Unmarshal(line, &batch); err != nil {
			return nil, fmt.Errorf("parse batch line %d: %w", s.line, err)
		}
		return batch.Events, nil
	}
}

// WriteJSONL appends one batch to w in the format JSONLSource reads.
func WriteJSONL(w io.Writer, evts []Event) error {
	data, err := json.Marshal(Batch{Events: evts})
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// DelimitedSource reads EventList messages, each prefixed with its length
// as a protobuf varint. This is the framing protodelim uses and what a
// recorded subscription stream looks like on disk.
type DelimitedSource struct {
	r     *bufio.Reader
	batch int
}

// NewDelimitedSource returns a source reading from r.
func NewDelimitedSource(r io.Reader) *DelimitedSource {
	return &DelimitedSource{r: bufio.NewReader(r)}
}

// Next implements Source.
func (s *DelimitedSource) Next(ctx context.Context) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size, err := binary.ReadUvarint(s.r)
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("read batch %d length: %w", s.batch+1, err)
	}
	if size > maxLineSize {
		return nil, fmt.Errorf("batch %d: %d bytes exceeds limit", s.batch+1, size)
	}

	msg := make([]byte, size)
	if _, err := io.ReadFull(s.r, msg); err != nil {
		return nil, fmt.Errorf("read batch %d: %w", s.batch+1, err)
	}
	s.batch++

	evts, err := UnmarshalEventList(msg)
	if err != nil {
		return nil, fmt.Errorf("batch %d: %w", s.batch, err)
	}
	return evts, nil
}

// WriteDelimited appends one batch to w in the format DelimitedSource reads.
func WriteDelimited(w io.Writer, evts []Event) error {
	msg := MarshalEventList(evts)
	data := protowire.AppendVarint(nil, uint64(len(msg)))
	data = append(data, msg...)
	_, err := w.Write(data)
	return err
}

// SliceSource replays a fixed list of batches.
type SliceSource struct {
	batches [][]Event
	idx     int
}

// NewSliceSource returns a source that yields batches in order.
func NewSliceSource(batches ...[]Event) *SliceSource {
	return &SliceSource{batches: batches}
}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.idx >= len(s.batches) {
		return nil, io.EOF
	}
	batch := s.batches[s.idx]
	s.idx++
	return batch, nil
}

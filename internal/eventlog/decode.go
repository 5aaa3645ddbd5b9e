// Package eventlog decodes the append-only NDJSON event log and normalizes
// event timestamps. Decoding is resilient: a malformed line is counted and
// skipped, never allowed to discard the lines around it.
package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ashita-ai/kansoku/internal/model"
)

// previewLen bounds how much of a corrupted line is logged.
const previewLen = 100

// Result is the outcome of decoding one log file.
type Result struct {
	File      string
	Events    []model.Event
	Corrupted int
	Total     int // non-blank lines seen
}

// Warning returns the corruption signal for the presentation layer, or nil
// when every line decoded.
func (r Result) Warning() *model.CorruptionWarning {
	if r.Corrupted == 0 {
		return nil
	}
	return &model.CorruptionWarning{File: r.File, Corrupted: r.Corrupted, Total: r.Total}
}

// Decoder decodes newline-delimited event records.
type Decoder struct {
	logger *slog.Logger
}

// NewDecoder creates a Decoder. A nil logger uses slog.Default().
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Decode reads r to EOF, decoding each non-blank line independently. The
// returned error is only ever a read error from r; decode failures are
// reported through Result.Corrupted.
func (d *Decoder) Decode(file string, r io.Reader) (Result, error) {
	res := Result{File: file}
	br := bufio.NewReader(r)
	lineNum := 0
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			lineNum++
			d.decodeLine(&res, lineNum, line)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("eventlog: read %s: %w", file, err)
		}
	}

	if res.Corrupted > 0 {
		d.logger.Info("eventlog: corrupted lines skipped",
			"file", file, "corrupted", res.Corrupted, "total", res.Total)
	}
	return res, nil
}

// DecodeBytes is Decode over an in-memory buffer. It cannot fail.
func (d *Decoder) DecodeBytes(file string, b []byte) Result {
	res, _ := d.Decode(file, bytes.NewReader(b))
	return res
}

func (d *Decoder) decodeLine(res *Result, lineNum int, line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	res.Total++

	ev, err := decodeRecord(line)
	if err != nil {
		res.Corrupted++
		d.logger.Warn("eventlog: corrupted line",
			"file", res.File, "line", lineNum, "preview", preview(line), "error", err)
		return
	}
	res.Events = append(res.Events, ev)
}

// decodeRecord decodes one line. Only a line that is not a JSON object is an
// error; fields of the wrong type degrade to their zero value.
func decodeRecord(line []byte) (model.Event, error) {
	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		return model.Event{}, err
	}
	if raw == nil {
		return model.Event{}, errors.New("record is null")
	}

	rec := model.Data(raw)
	ev := model.Event{
		Data: rec.Map("data"),
	}
	if s, ok := raw["type"].(string); ok {
		ev.Type = model.EventType(s)
	}
	if s, ok := raw["timestamp"].(string); ok {
		ev.Timestamp = s
	}
	if ev.Data == nil {
		ev.Data = model.Data{}
	}
	return ev, nil
}

func preview(line []byte) string {
	if len(line) > previewLen {
		return string(line[:previewLen])
	}
	return string(line)
}

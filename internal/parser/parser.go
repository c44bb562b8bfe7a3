package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/OCAP2/tiptrails/internal/tipaccess"
	"github.com/OCAP2/tiptrails/internal/util"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// ErrInvalidFrame is returned for input that is not a JSON frame object.
var ErrInvalidFrame = errors.New("invalid frame")

// maxFrameLine bounds a single JSON-lines frame.
const maxFrameLine = 4 << 20

// Parser provides raw input -> core.Frame conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger

	frames  atomic.Uint64
	skipped atomic.Uint64
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Stats returns the number of parsed frames and skipped hand records.
func (p *Parser) Stats() (frames, skipped uint64) {
	return p.frames.Load(), p.skipped.Load()
}

// ParseFrame parses a frame passed as host command args.
// data[0] is the frame JSON, possibly quoted with doubled inner quotes.
func (p *Parser) ParseFrame(data []string) (core.Frame, error) {
	if len(data) < 1 {
		return core.Frame{}, fmt.Errorf("%w: no data", ErrInvalidFrame)
	}
	raw := util.FixEscapeQuotes(util.TrimQuotes(data[0]))
	return p.ParseFrameJSON([]byte(raw))
}

// ParseFrameJSON parses one tracking frame. Hands keep every field the
// service sent; when a hand has no finger list, the frame's top-level
// pointables with a matching handId are attached as its "fingers".
func (p *Parser) ParseFrameJSON(raw []byte) (core.Frame, error) {
	if !gjson.ValidBytes(raw) {
		return core.Frame{}, fmt.Errorf("%w: malformed JSON", ErrInvalidFrame)
	}
	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return core.Frame{}, fmt.Errorf("%w: not an object", ErrInvalidFrame)
	}

	frame := core.Frame{ID: res.Get("id").Int()}
	if ts := res.Get("timestamp"); ts.Exists() {
		frame.Timestamp = time.UnixMicro(ts.Int())
	}

	byHand := make(map[int64][]any)
	res.Get("pointables").ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			id := v.Get("handId").Int()
			byHand[id] = append(byHand[id], v.Value())
		}
		return true
	})

	res.Get("hands").ForEach(func(_, v gjson.Result) bool {
		m, ok := v.Value().(map[string]any)
		if !ok {
			p.skipped.Add(1)
			return true
		}
		rec := tipaccess.MapRecord(m)
		if _, has := rec.Field("fingers"); !has {
			if fingers := byHand[v.Get("id").Int()]; len(fingers) > 0 {
				m["fingers"] = fingers
			}
		}
		frame.Hands = append(frame.Hands, rec)
		return true
	})

	p.frames.Add(1)
	return frame, nil
}

// ParseFrames reads JSON-lines frames. Blank lines are ignored; a malformed
// line is logged and skipped.
func (p *Parser) ParseFrames(r io.Reader) ([]core.Frame, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameLine)

	var frames []core.Frame
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		f, err := p.ParseFrameJSON(b)
		if err != nil {
			p.logger.Warn("Skipping frame line", "line", line, "error", err)
			continue
		}
		frames = append(frames, f)
	}
	if err := sc.Err(); err != nil {
		return frames, fmt.Errorf("reading frames: %w", err)
	}
	return frames, nil
}

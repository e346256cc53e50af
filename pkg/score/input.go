package score

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultWindowMS is the observation window assumed when the payload
	// does not carry one.
	DefaultWindowMS int64 = 5000

	// UnknownSessionID is reported when neither session_id nor scenario_id is set.
	UnknownSessionID = "UNKNOWN"

	minMoveCount int64 = 1
)

// Payload field names.
const (
	FieldSessionID   = "session_id"
	FieldScenarioID  = "scenario_id"
	FieldRawSignals  = "raw_signals"
	FieldGameContext = "game_context"
	FieldVAD         = "vad"

	FieldWindowMS             = "window_ms"
	FieldMoveCount            = "move_count"
	FieldPushWithBoxCount     = "push_with_box_count"
	FieldMovesWithoutBoxCount = "moves_without_box_count"
	FieldWrongDirectionCount  = "wrong_direction_count"
	FieldRepeatedMoveCount    = "repeated_move_count"
	FieldBoxesStuckInWindow   = "boxes_stuck_in_window"
	FieldUndosInWindow        = "undos_in_window"
	FieldIdleTimeMS           = "idle_time_ms"
	FieldIdleCount            = "idle_count"
	FieldAvgTimeBetweenMoves  = "avg_time_between_moves_ms"
	FieldTimingStdMS          = "timing_std_ms"
	FieldBoxesOnTargetDelta   = "boxes_on_target_delta"
)

var (
	// ErrNotObject is returned by DecodePayload when the body is valid JSON
	// but not an object.
	ErrNotObject = errors.New("payload must be a JSON object")

	errTrailingData = errors.New("unexpected data after JSON object")
)

// RawSignals holds the telemetry counters after conversion. MoveCount is
// already floored at 1.
type RawSignals struct {
	WindowMS             int64 `json:"window_ms"`
	MoveCount            int64 `json:"move_count"`
	PushWithBoxCount     int64 `json:"push_with_box_count"`
	MovesWithoutBoxCount int64 `json:"moves_without_box_count"`
	WrongDirectionCount  int64 `json:"wrong_direction_count"`
	RepeatedMoveCount    int64 `json:"repeated_move_count"`
	BoxesStuckInWindow   int64 `json:"boxes_stuck_in_window"`
	UndosInWindow        int64 `json:"undos_in_window"`
	IdleTimeMS           int64 `json:"idle_time_ms"`
	IdleCount            int64 `json:"idle_count"`
	AvgTimeBetweenMoves  int64 `json:"avg_time_between_moves_ms"`
	TimingStdMS          int64 `json:"timing_std_ms"`
	BoxesOnTargetDelta   int64 `json:"boxes_on_target_delta"`
}

// Input is the typed form of a scoring payload.
type Input struct {
	SessionID   string
	Signals     RawSignals
	GameContext any
	VAD         any
}

// DecodePayload reads a single JSON object from r. Numbers are kept as
// json.Number so integer fields are converted without float rounding.
func DecodePayload(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		var se *json.SyntaxError
		if err != nil && !errors.As(err, &se) {
			return nil, fmt.Errorf("decoding payload: %w", err)
		}
		return nil, errTrailingData
	}

	payload, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return payload, nil
}

// Parse converts a loosely typed payload into an Input. Missing fields take
// their defaults; a field that is present but not convertible returns a
// *MalformedInputError.
func Parse(payload map[string]any) (*Input, error) {
	raw, err := signalRecord(payload[FieldRawSignals])
	if err != nil {
		return nil, err
	}

	p := &signalParser{values: raw}
	signals := RawSignals{
		WindowMS:             p.window(),
		MoveCount:            max(p.count(FieldMoveCount), minMoveCount),
		PushWithBoxCount:     p.count(FieldPushWithBoxCount),
		MovesWithoutBoxCount: p.count(FieldMovesWithoutBoxCount),
		WrongDirectionCount:  p.count(FieldWrongDirectionCount),
		RepeatedMoveCount:    p.count(FieldRepeatedMoveCount),
		BoxesStuckInWindow:   p.count(FieldBoxesStuckInWindow),
		UndosInWindow:        p.count(FieldUndosInWindow),
		IdleTimeMS:           p.count(FieldIdleTimeMS),
		IdleCount:            p.count(FieldIdleCount),
		AvgTimeBetweenMoves:  p.count(FieldAvgTimeBetweenMoves),
		TimingStdMS:          p.count(FieldTimingStdMS),
		BoxesOnTargetDelta:   p.count(FieldBoxesOnTargetDelta),
	}
	if p.err != nil {
		return nil, p.err
	}

	return &Input{
		SessionID:   resolveSessionID(payload),
		Signals:     signals,
		GameContext: recordOrEmpty(payload[FieldGameContext]),
		VAD:         recordOrEmpty(payload[FieldVAD]),
	}, nil
}

func signalRecord(v any) (map[string]any, error) {
	if x, ok := v.(map[string]any); ok {
		return x, nil
	}
	if isEmpty(v) {
		return map[string]any{}, nil
	}
	return nil, malformed(FieldRawSignals, v, "expected object, got %s", kindOf(v))
}

func recordOrEmpty(v any) any {
	if isEmpty(v) {
		return map[string]any{}
	}
	return v
}

// isEmpty reports whether v is a JSON null, false, zero, "" or an empty
// array or object.
func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	case json.Number:
		f, err := x.Float64()
		return err == nil && f == 0
	case float64:
		return x == 0
	case int:
		return x == 0
	case int64:
		return x == 0
	default:
		return false
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case json.Number, float64, float32, int, int32, int64:
		return true
	default:
		return false
	}
}

func resolveSessionID(payload map[string]any) string {
	for _, key := range []string{FieldSessionID, FieldScenarioID} {
		if id, ok := identifier(payload[key]); ok {
			return id
		}
	}
	return UnknownSessionID
}

// identifier renders a session or scenario id. Empty and zero values count
// as absent.
func identifier(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, x != ""
	case json.Number:
		f, err := x.Float64()
		return x.String(), err != nil || f != 0
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), x != 0
	case int:
		return strconv.Itoa(x), x != 0
	case int64:
		return strconv.FormatInt(x, 10), x != 0
	default:
		return "", false
	}
}

// signalParser reads integer fields from raw_signals, keeping the first
// conversion error.
type signalParser struct {
	values map[string]any
	err    error
}

func (p *signalParser) window() int64 {
	v, ok := p.values[FieldWindowMS]
	// an explicit numeric zero is kept; other empty values take the default
	if !ok || (isEmpty(v) && !isNumber(v)) {
		return DefaultWindowMS
	}
	return p.convert(FieldWindowMS, v)
}

func (p *signalParser) count(field string) int64 {
	v, ok := p.values[field]
	if !ok {
		return 0
	}
	return p.convert(field, v)
}

func (p *signalParser) convert(field string, v any) int64 {
	if p.err != nil {
		return 0
	}
	n, err := toInt(FieldRawSignals+"."+field, v)
	if err != nil {
		p.err = err
		return 0
	}
	return n
}

// toInt converts a decoded JSON value into an integer. Fractional numbers
// are truncated toward zero; strings must hold a base-10 integer.
func toInt(field string, v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, malformed(field, v, "expected integer, got null")
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, malformed(field, v, "integer out of range: %s", x.String())
		}
		return floatToInt(field, f)
	case float64:
		return floatToInt(field, x)
	case float32:
		return floatToInt(field, float64(x))
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, malformed(field, v, "invalid integer %q", x)
		}
		return n, nil
	default:
		return 0, malformed(field, v, "expected integer, got %s", kindOf(v))
	}
}

func floatToInt(field string, f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, malformed(field, f, "cannot convert %v to integer", f)
	}
	t := math.Trunc(f)
	if t >= math.MaxInt64 || t < math.MinInt64 {
		return 0, malformed(field, f, "integer out of range: %v", f)
	}
	return int64(t), nil
}

func kindOf(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, float32, int, int32, int64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

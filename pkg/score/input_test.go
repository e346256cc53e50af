package score

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToInt(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    int64
		wantErr bool
	}{
		{"json integer", json.Number("12"), 12, false},
		{"json negative", json.Number("-4"), -4, false},
		{"json float truncates", json.Number("12.9"), 12, false},
		{"json negative float truncates toward zero", json.Number("-3.7"), -3, false},
		{"json exponent", json.Number("1e3"), 1000, false},
		{"json out of range", json.Number("1e30"), 0, true},
		{"float64", 2.5, 2, false},
		{"int", 7, 7, false},
		{"int64", int64(9), 9, false},
		{"true", true, 1, false},
		{"false", false, 0, false},
		{"numeric string", "42", 42, false},
		{"padded string", " 7 ", 7, false},
		{"signed string", "+5", 5, false},
		{"decimal string", "1.5", 0, true},
		{"word", "not-a-number", 0, true},
		{"empty string", "", 0, true},
		{"null", nil, 0, true},
		{"array", []any{1}, 0, true},
		{"object", map[string]any{"a": 1}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toInt("raw_signals.x", tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	in, err := Parse(map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, RawSignals{WindowMS: DefaultWindowMS, MoveCount: 1}, in.Signals)
	assert.Equal(t, UnknownSessionID, in.SessionID)
	assert.Equal(t, map[string]any{}, in.GameContext)
	assert.Equal(t, map[string]any{}, in.VAD)
}

func TestParse_NullRecords(t *testing.T) {
	in, err := Parse(map[string]any{
		FieldRawSignals:  nil,
		FieldGameContext: nil,
		FieldVAD:         nil,
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultWindowMS, in.Signals.WindowMS)
	assert.Equal(t, map[string]any{}, in.GameContext)
	assert.Equal(t, map[string]any{}, in.VAD)
}

func TestParse_NullWindowUsesDefault(t *testing.T) {
	in, err := Parse(signals(FieldWindowMS, nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultWindowMS, in.Signals.WindowMS)
}

func TestParse_NullCounterIsMalformed(t *testing.T) {
	_, err := Parse(signals(FieldIdleTimeMS, nil))
	require.Error(t, err)

	var mie *MalformedInputError
	require.True(t, errors.As(err, &mie))
	assert.Equal(t, "raw_signals.idle_time_ms", mie.Field)
}

func TestParse_RawSignalsNotObject(t *testing.T) {
	_, err := Parse(map[string]any{FieldRawSignals: []any{1, 2}})
	require.Error(t, err)

	var mie *MalformedInputError
	require.True(t, errors.As(err, &mie))
	assert.Equal(t, FieldRawSignals, mie.Field)
	assert.Contains(t, err.Error(), "expected object, got array")
}

func TestParse_FirstErrorWins(t *testing.T) {
	_, err := Parse(signals(FieldWindowMS, "wide", FieldMoveCount, "many"))
	require.Error(t, err)

	var mie *MalformedInputError
	require.True(t, errors.As(err, &mie))
	assert.Equal(t, "raw_signals.window_ms", mie.Field)
}

func TestParse_AllFields(t *testing.T) {
	in, err := Parse(signals(
		FieldWindowMS, json.Number("4000"),
		FieldMoveCount, json.Number("30"),
		FieldPushWithBoxCount, json.Number("11"),
		FieldMovesWithoutBoxCount, json.Number("19"),
		FieldWrongDirectionCount, json.Number("2"),
		FieldRepeatedMoveCount, json.Number("3"),
		FieldBoxesStuckInWindow, json.Number("1"),
		FieldUndosInWindow, json.Number("4"),
		FieldIdleTimeMS, json.Number("900"),
		FieldIdleCount, json.Number("2"),
		FieldAvgTimeBetweenMoves, json.Number("130"),
		FieldTimingStdMS, json.Number("60"),
		FieldBoxesOnTargetDelta, json.Number("-1"),
	))
	require.NoError(t, err)

	assert.Equal(t, RawSignals{
		WindowMS:             4000,
		MoveCount:            30,
		PushWithBoxCount:     11,
		MovesWithoutBoxCount: 19,
		WrongDirectionCount:  2,
		RepeatedMoveCount:    3,
		BoxesStuckInWindow:   1,
		UndosInWindow:        4,
		IdleTimeMS:           900,
		IdleCount:            2,
		AvgTimeBetweenMoves:  130,
		TimingStdMS:          60,
		BoxesOnTargetDelta:   -1,
	}, in.Signals)
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"object", `{"session_id":"abc","raw_signals":{"move_count":3}}`, nil},
		{"object with trailing newline", "{}\n", nil},
		{"array", `[1,2]`, ErrNotObject},
		{"string", `"hello"`, ErrNotObject},
		{"null", `null`, ErrNotObject},
		{"trailing data", `{"a":1} {"b":2}`, errTrailingData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := DecodePayload(strings.NewReader(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, payload)
		})
	}
}

func TestDecodePayload_Invalid(t *testing.T) {
	_, err := DecodePayload(strings.NewReader(`{"a":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding payload")
}

func TestDecodePayload_KeepsIntegersExact(t *testing.T) {
	payload, err := DecodePayload(strings.NewReader(`{"raw_signals":{"idle_time_ms":9007199254740993}}`))
	require.NoError(t, err)

	in, err := Parse(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), in.Signals.IdleTimeMS)
}

func TestParse_EmptyRecords(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"empty array", []any{}},
		{"empty string", ""},
		{"zero", json.Number("0")},
		{"false", false},
		{"empty object", map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Parse(map[string]any{
				FieldRawSignals:  tt.value,
				FieldGameContext: tt.value,
				FieldVAD:         tt.value,
			})
			require.NoError(t, err)
			assert.Equal(t, RawSignals{WindowMS: DefaultWindowMS, MoveCount: 1}, in.Signals)
			assert.Equal(t, map[string]any{}, in.GameContext)
			assert.Equal(t, map[string]any{}, in.VAD)
		})
	}
}

func TestParse_NonEmptyRecordsKept(t *testing.T) {
	in, err := Parse(map[string]any{
		FieldGameContext: []any{"level-1"},
		FieldVAD:         true,
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"level-1"}, in.GameContext)
	assert.Equal(t, true, in.VAD)

	_, err = Parse(map[string]any{FieldRawSignals: "lots"})
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestParse_Window(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int64
	}{
		{"null", nil, DefaultWindowMS},
		{"empty string", "", DefaultWindowMS},
		{"false", false, DefaultWindowMS},
		{"empty array", []any{}, DefaultWindowMS},
		{"explicit zero", json.Number("0"), 0},
		{"explicit float zero", 0.0, 0},
		{"true", true, 1},
		{"numeric string", "2500", 2500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Parse(signals(FieldWindowMS, tt.value))
			require.NoError(t, err)
			assert.Equal(t, tt.want, in.Signals.WindowMS)
		})
	}
}

func TestDecodePayload_ReadErrorAfterObject(t *testing.T) {
	errRead := errors.New("body too large")
	r := io.MultiReader(strings.NewReader(`{"a":1}   `), iotest.ErrReader(errRead))

	_, err := DecodePayload(r)
	require.Error(t, err)
	assert.ErrorIs(t, err, errRead)
	assert.NotErrorIs(t, err, errTrailingData)
}

func TestDecodePayload_TrailingGarbage(t *testing.T) {
	_, err := DecodePayload(strings.NewReader(`{"a":1} x`))
	assert.ErrorIs(t, err, errTrailingData)
}

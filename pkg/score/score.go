package score

import (
	"math"
	"time"
)

// ModelVersion is the current scoring model version.
const ModelVersion = "0.1.0"

const (
	// TimestampFormat is ISO-8601 with microseconds and a numeric UTC offset.
	TimestampFormat = "2006-01-02T15:04:05.000000-07:00"

	intensityMoveScale    = 40.0
	instabilityStdScaleMS = 500.0
	majorErrorWeight      = 1.0
	minorErrorWeight      = 0.5
	boxesOnTargetWeight   = 0.1
	stressIntensityWeight = 0.5
	stressErrorRateWeight = 0.5
	confidenceBase        = 0.6
	confidenceSpan        = 0.4
	sparseMovesPenalty    = 0.3
	missingGapPenalty     = 0.2
	customWindowPenalty   = 0.1
	roundingScale         = 1000.0
)

// Prediction is the headline output of a scoring call.
type Prediction struct {
	Stress     float64 `json:"stress"`
	Confidence float64 `json:"confidence"`
}

// TemporalFeatures holds timing-derived metrics.
type TemporalFeatures struct {
	InteractionInstability float64 `json:"interaction_instability"`
}

// BehavioralMetrics are normalized to [0,1].
type BehavioralMetrics struct {
	InteractionIntensity float64          `json:"interaction_intensity"`
	ErrorRate            float64          `json:"error_rate"`
	PauseFrequency       float64          `json:"pause_frequency"`
	PerformanceQuality   float64          `json:"performance_quality"`
	TemporalFeatures     TemporalFeatures `json:"temporal_features"`
}

// DerivedMetrics are the error and idle counts behind the metrics.
type DerivedMetrics struct {
	MajorErrors int64 `json:"major_errors"`
	MinorErrors int64 `json:"minor_errors"`
	IdleCount   int64 `json:"idle_count"`
}

// Echo returns the pass-through records and the signal values used.
type Echo struct {
	VAD         any        `json:"vad"`
	GameContext any        `json:"game_context"`
	RawSignals  RawSignals `json:"raw_signals"`
}

// Result is the full response of a scoring call.
type Result struct {
	SessionID         string            `json:"session_id"`
	Timestamp         string            `json:"timestamp"`
	Prediction        Prediction        `json:"prediction"`
	BehavioralMetrics BehavioralMetrics `json:"behavioral_metrics"`
	DerivedMetrics    DerivedMetrics    `json:"derived_metrics"`
	Echo              Echo              `json:"echo"`
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithClock replaces the time source used for Result.Timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

// Scorer turns telemetry payloads into results. It holds no mutable state
// and is safe for concurrent use.
type Scorer struct {
	now func() time.Time
}

// NewScorer returns a Scorer using the wall clock unless overridden.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score parses the payload and evaluates it. The only error kind is
// *MalformedInputError.
func (s *Scorer) Score(payload map[string]any) (*Result, error) {
	in, err := Parse(payload)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(in), nil
}

// Evaluate computes the metrics for an already parsed input.
func (s *Scorer) Evaluate(in *Input) *Result {
	sig := in.Signals

	majorErrors := addSaturating(sig.UndosInWindow, sig.BoxesStuckInWindow)
	minorErrors := addSaturating(sig.WrongDirectionCount, sig.RepeatedMoveCount)

	moves := float64(max(sig.MoveCount, minMoveCount))

	intensity := Clamp01(moves / intensityMoveScale)
	pauseFrequency := PauseFrequency(sig.IdleTimeMS, sig.WindowMS)
	errorRate := Clamp01((float64(majorErrors)*majorErrorWeight + float64(minorErrors)*minorErrorWeight) / moves)
	instability := Clamp01(float64(sig.TimingStdMS) / instabilityStdScaleMS)
	stress := Clamp01(stressIntensityWeight*intensity + stressErrorRateWeight*errorRate)
	quality := Clamp01(1.0 - errorRate + float64(sig.BoxesOnTargetDelta)*boxesOnTargetWeight)

	return &Result{
		SessionID: in.SessionID,
		Prediction: Prediction{
			Stress:     Round3(stress),
			Confidence: Round3(Confidence(sig)),
		},
		BehavioralMetrics: BehavioralMetrics{
			InteractionIntensity: Round3(intensity),
			ErrorRate:            Round3(errorRate),
			PauseFrequency:       Round3(pauseFrequency),
			PerformanceQuality:   Round3(quality),
			TemporalFeatures: TemporalFeatures{
				InteractionInstability: Round3(instability),
			},
		},
		DerivedMetrics: DerivedMetrics{
			MajorErrors: majorErrors,
			MinorErrors: minorErrors,
			IdleCount:   sig.IdleCount,
		},
		Echo: Echo{
			VAD:         in.VAD,
			GameContext: in.GameContext,
			RawSignals:  sig,
		},
		Timestamp: s.now().UTC().Format(TimestampFormat),
	}
}

// PauseFrequency is the share of the window spent idle. A window of zero
// or less yields 0.
func PauseFrequency(idleTimeMS, windowMS int64) float64 {
	if windowMS <= 0 {
		return 0
	}
	return Clamp01(float64(idleTimeMS) / float64(windowMS))
}

// Completeness is a data-completeness proxy. It is not clamped and can go
// below zero.
func Completeness(sig RawSignals) float64 {
	c := 1.0
	if sig.MoveCount <= minMoveCount {
		c -= sparseMovesPenalty
	}
	if sig.AvgTimeBetweenMoves <= 0 {
		c -= missingGapPenalty
	}
	if sig.WindowMS != DefaultWindowMS {
		c -= customWindowPenalty
	}
	return c
}

// Confidence is 0.6 plus 0.4 times Completeness, clamped to [0,1].
func Confidence(sig RawSignals) float64 {
	return Clamp01(confidenceBase + confidenceSpan*Completeness(sig))
}

// addSaturating returns a+b capped at the int64 range.
func addSaturating(a, b int64) int64 {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	default:
		return a + b
	}
}

// Clamp01 bounds x to [0,1]. NaN maps to 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, x))
}

// Round3 rounds to three decimals, half away from zero.
func Round3(x float64) float64 {
	return math.Round(x*roundingScale) / roundingScale
}

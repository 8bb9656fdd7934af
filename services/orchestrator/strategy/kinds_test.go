package strategy

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/analytics"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
	"github.com/multiversx/mx-chain-core-go/core/check"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return testStart.Add(time.Duration(seconds) * time.Second)
}

func analyzed(raw common.RawMetrics) common.AnalyzedMetrics {
	return common.AnalyzedMetrics{
		Raw:       raw,
		Stability: analytics.Stability(raw),
	}
}

func sample(seconds int, users int, rps float64) common.AnalyzedMetrics {
	return analyzed(common.RawMetrics{
		Timestamp: at(seconds),
		Users:     users,
		RPS:       rps,
		RtAvg:     50,
		P50:       60,
		P95:       100,
		P99:       150,
	})
}

func fullConfig(kind Kind) config.StrategyConfig {
	return config.StrategyConfig{
		Type:        string(kind),
		TargetRPS:   100,
		SpikeUsers:  100,
		TargetUsers: 50,
		Mode:        ModeBaseline,
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	t.Run("known kinds should parse", func(t *testing.T) {
		for _, kind := range Kinds() {
			parsed, err := ParseKind(string(kind))
			assert.Nil(t, err)
			assert.Equal(t, kind, parsed)
		}

		parsed, err := ParseKind("  Break_Point ")
		assert.Nil(t, err)
		assert.Equal(t, KindBreakPoint, parsed)
	})
	t.Run("unknown kind should error", func(t *testing.T) {
		parsed, err := ParseKind("random_walk")
		assert.True(t, errors.Is(err, ErrUnknownStrategy))
		assert.Empty(t, parsed)
	})
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("every kind should be constructed", func(t *testing.T) {
		require.Len(t, Kinds(), 8)
		for _, kind := range Kinds() {
			instance, err := New(fullConfig(kind))
			require.Nil(t, err, string(kind))
			assert.False(t, check.IfNil(instance))
			assert.Equal(t, string(kind), instance.Name())
		}
	})
	t.Run("unknown type should error", func(t *testing.T) {
		instance, err := New(config.StrategyConfig{Type: "nope"})
		assert.True(t, errors.Is(err, ErrUnknownStrategy))
		assert.True(t, check.IfNil(instance))
	})
	t.Run("missing required parameters should error", func(t *testing.T) {
		kindsWithRequired := []Kind{KindTargetRPS, KindSpike, KindTargetUsers}
		for _, kind := range kindsWithRequired {
			instance, err := New(config.StrategyConfig{Type: string(kind)})
			assert.True(t, errors.Is(err, ErrInvalidParameter), string(kind))
			assert.Nil(t, instance)
		}
	})
	t.Run("invalid degradation search parameters should error", func(t *testing.T) {
		instance, err := New(config.StrategyConfig{Type: string(KindDegradationSearch), Mode: "magic"})
		assert.True(t, errors.Is(err, ErrInvalidParameter))
		assert.Nil(t, instance)

		instance, err = New(config.StrategyConfig{Type: string(KindDegradationSearch), VoteWindow: 2, VoteThreshold: 3})
		assert.True(t, errors.Is(err, ErrInvalidParameter))
		assert.Nil(t, instance)
	})
}

func TestStrategies_ResetIsIdempotent(t *testing.T) {
	t.Parallel()

	sequence := make([]common.AnalyzedMetrics, 0, 40)
	for i := 0; i < 40; i++ {
		m := sample(i*15, 10+i*5, 100+float64(i)*7)
		if i > 25 {
			m.Raw.P95 = 600
			m.Raw.ErrorRate = float64(i - 25)
		}
		m.DegradationIndex = float64(i) / 50
		sequence = append(sequence, m)
	}

	run := func(s Strategy) []string {
		out := make([]string, 0, len(sequence))
		users := s.NextUsers(0, common.AnalyzedMetrics{})
		for _, m := range sequence {
			verdict := s.Decide(m)
			if verdict.Decision == common.Continue {
				users = s.NextUsers(users, m)
			}
			out = append(out, fmt.Sprintf("%s/%s/%v/%d", verdict.Decision, verdict.Reason, verdict.Violation, users))
		}

		return out
	}

	for _, kind := range Kinds() {
		cfg := fullConfig(kind)
		fresh, err := New(cfg)
		require.Nil(t, err)
		used, err := New(cfg)
		require.Nil(t, err)

		expected := run(fresh)
		_ = run(used)
		used.Reset()
		used.Reset()

		assert.Equal(t, expected, run(used), string(kind))
	}
}

func TestGrow(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 20, grow(10, 2))
	assert.Equal(t, 15, grow(10, 1.5))
	assert.Equal(t, 4, grow(3, 1.2))
	assert.Equal(t, 2, grow(1, 1.5))
}

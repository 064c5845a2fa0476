package enum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhase(t *testing.T) {
	for _, p := range Phases() {
		got, err := ParsePhase(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	for _, long := range []string{"DualAccept", "dualaccept", "dual_accept", "dual-accept"} {
		got, err := ParsePhase(long)
		require.NoError(t, err, long)
		assert.Equal(t, PhaseDualAccept, got)
		// 输出仍是短名
		assert.Equal(t, "dual", got.String())
	}
	for long, want := range map[string]Phase{"Introduce": PhaseIntroduce, "Deprecate": PhaseDeprecate, "Finalize": PhaseFinalize} {
		got, err := ParsePhase(long)
		require.NoError(t, err, long)
		assert.Equal(t, want, got)
	}

	var p Phase
	require.NoError(t, p.UnmarshalText([]byte("dual_accept")))
	assert.Equal(t, PhaseDualAccept, p)

	_, err := ParsePhase("Dual")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ParsePhase("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPhaseAcceptance(t *testing.T) {
	tests := []struct {
		phase      Phase
		typed      bool
		primitive  bool
		deprecated bool
	}{
		{PhaseIntroduce, false, true, false},
		{PhaseDualAccept, true, true, false},
		{PhaseDeprecate, true, true, true},
		{PhaseFinalize, true, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.phase.String(), func(t *testing.T) {
			assert.Equal(t, tt.typed, tt.phase.AcceptsTyped())
			assert.Equal(t, tt.primitive, tt.phase.AcceptsPrimitive())
			assert.Equal(t, tt.deprecated, tt.phase.PrimitiveDeprecated())
		})
	}
}

func TestPhaseProgression(t *testing.T) {
	next, ok := PhaseIntroduce.Next()
	assert.True(t, ok)
	assert.Equal(t, PhaseDualAccept, next)

	_, ok = PhaseFinalize.Next()
	assert.False(t, ok)
	_, ok = Phase(0).Next()
	assert.False(t, ok)

	assert.True(t, PhaseDualAccept.CanAdvanceTo(PhaseDualAccept))
	assert.True(t, PhaseDualAccept.CanAdvanceTo(PhaseFinalize))
	assert.False(t, PhaseDeprecate.CanAdvanceTo(PhaseIntroduce))
	assert.False(t, PhaseIntroduce.CanAdvanceTo(Phase(9)))
}

func TestPhaseText(t *testing.T) {
	text, err := PhaseDeprecate.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "deprecate", string(text))

	var p Phase
	require.NoError(t, p.UnmarshalText([]byte("finalize")))
	assert.Equal(t, PhaseFinalize, p)
	assert.ErrorIs(t, p.UnmarshalText([]byte("later")), ErrInvalidInput)
	assert.Equal(t, "Phase(0)", Phase(0).String())
}

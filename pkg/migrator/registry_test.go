package migrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novabot/dbupdate"
)

func TestUnitValidate(t *testing.T) {
	tests := []struct {
		name    string
		unit    Unit
		wantErr string
	}{
		{name: "valid", unit: Unit{From: 0, To: 1, Statements: []string{"CREATE TABLE a (id INT)"}}},
		{name: "no statements", unit: Unit{From: 1, To: 2}},
		{name: "skips versions", unit: Unit{From: 1, To: 5, Statements: []string{"SELECT 1"}}},
		{name: "same version", unit: Unit{From: 2, To: 2}, wantErr: "does not move the version forward"},
		{name: "backwards", unit: Unit{From: 3, To: 2}, wantErr: "does not move the version forward"},
		{name: "negative", unit: Unit{From: -1, To: 0}, wantErr: "starts below version 0"},
		{name: "blank statement", unit: Unit{From: 0, To: 1, Statements: []string{"SELECT 1", "  \n"}}, wantErr: "statement 1 is blank"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.unit.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, dbupdate.IsInvalidUnitErr(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewRegistry_Empty(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	assert.Equal(t, 0, reg.Highest())
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.Units())
	assert.Empty(t, reg.Chain(0))
	assert.Equal(t, 0, reg.ChainEnd(0))
	assert.Empty(t, reg.Gaps())

	_, ok := reg.Lookup(0)
	assert.False(t, ok)
}

func TestNewRegistry_DuplicateFrom(t *testing.T) {
	_, err := NewRegistry(
		Unit{From: 0, To: 1},
		Unit{From: 1, To: 2},
		Unit{From: 1, To: 3},
	)
	require.Error(t, err)
	assert.True(t, dbupdate.IsDuplicateUnitErr(err))
	assert.Contains(t, err.Error(), "both start at version 1")
}

func TestNewRegistry_RejectsInvalidUnit(t *testing.T) {
	_, err := NewRegistry(Unit{From: 0, To: 1}, Unit{From: 2, To: 1})
	require.Error(t, err)
	assert.True(t, dbupdate.IsInvalidUnitErr(err))
}

func TestRegistry_LookupAndHighest(t *testing.T) {
	reg, err := NewRegistry(
		Unit{From: 2, To: 3, Statements: []string{"C"}},
		Unit{From: 0, To: 1, Statements: []string{"A"}},
		Unit{From: 1, To: 2, Statements: []string{"B"}},
	)
	require.NoError(t, err)

	assert.Equal(t, 3, reg.Highest())
	assert.Equal(t, 3, reg.Len())

	u, ok := reg.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, 2, u.To)
	assert.Equal(t, []string{"B"}, u.Statements)

	_, ok = reg.Lookup(3)
	assert.False(t, ok)

	units := reg.Units()
	require.Len(t, units, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{units[0].From, units[1].From, units[2].From})
}

func TestRegistry_Chain(t *testing.T) {
	reg, err := NewRegistry(
		Unit{From: 0, To: 1},
		Unit{From: 1, To: 2},
		Unit{From: 3, To: 4},
	)
	require.NoError(t, err)

	chain := reg.Chain(0)
	require.Len(t, chain, 2)
	assert.Equal(t, "0 -> 1", chain[0].String())
	assert.Equal(t, "1 -> 2", chain[1].String())
	assert.Equal(t, 2, reg.ChainEnd(0))

	assert.Len(t, reg.Chain(3), 1)
	assert.Equal(t, 4, reg.ChainEnd(3))

	assert.Empty(t, reg.Chain(7))
	assert.Equal(t, 7, reg.ChainEnd(7))

	assert.Equal(t, []int{2}, reg.Gaps())
}

func TestRegistry_ChainFollowsVersionSkips(t *testing.T) {
	reg, err := NewRegistry(
		Unit{From: 0, To: 2},
		Unit{From: 1, To: 3},
		Unit{From: 2, To: 3},
	)
	require.NoError(t, err)

	chain := reg.Chain(0)
	require.Len(t, chain, 2)
	assert.Equal(t, 2, chain[0].To)
	assert.Equal(t, 3, chain[1].To)

	// Entering at 1 takes the other branch.
	assert.Equal(t, []Unit{{From: 1, To: 3}}, reg.Chain(1))
	assert.Empty(t, reg.Gaps())
}

func TestUnitError(t *testing.T) {
	cause := assert.AnError
	err := &UnitError{From: 1, To: 2, Statement: 3, Err: cause}
	assert.Equal(t, "applying unit 1 -> 2: statement 3: "+cause.Error(), err.Error())
	assert.ErrorIs(t, err, cause)

	err = &UnitError{From: 1, To: 2, Statement: -1, Err: cause}
	assert.Equal(t, "applying unit 1 -> 2: "+cause.Error(), err.Error())
}

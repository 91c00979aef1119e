package basket

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition_ForwardFlow(t *testing.T) {
	forward := []struct {
		from, to Status
	}{
		{StatusUnassigned, StatusInProduction},
		{StatusInProduction, StatusReceived},
		{StatusReceived, StatusInStock},
		{StatusInStock, StatusShipped},
		{StatusInStock, StatusSampling},
	}
	for _, tc := range forward {
		assert.True(t, CanTransition(tc.from, tc.to), "%s → %s should be legal", tc.from, tc.to)
	}
}

func TestCanTransition_DamageEdges(t *testing.T) {
	assert.True(t, CanTransition(StatusReceived, StatusDamaged))
	assert.True(t, CanTransition(StatusInStock, StatusDamaged))
	assert.False(t, CanTransition(StatusInProduction, StatusDamaged))
	assert.False(t, CanTransition(StatusShipped, StatusDamaged))
}

func TestCanTransition_ClearEdge(t *testing.T) {
	// Every status except Unassigned clears back to Unassigned.
	for _, s := range AllStatuses {
		if s == StatusUnassigned {
			assert.False(t, CanTransition(s, StatusUnassigned), "self-clear must be illegal")
			continue
		}
		assert.True(t, CanTransition(s, StatusUnassigned), "%s → unassigned should be legal", s)
	}
}

func TestCanTransition_TerminalForForwardFlow(t *testing.T) {
	for _, from := range []Status{StatusSampling, StatusDamaged, StatusShipped} {
		for _, to := range AllStatuses {
			if to == StatusUnassigned {
				continue
			}
			assert.False(t, CanTransition(from, to), "%s → %s should be illegal", from, to)
		}
	}
}

func TestValidateTransition_ErrorCarriesBothStatuses(t *testing.T) {
	err := ValidateTransition(StatusShipped, StatusInProduction)
	require.Error(t, err)
	require.True(t, IsInvalidTransition(err))

	var te *InvalidTransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusShipped, te.Current)
	assert.Equal(t, StatusInProduction, te.Requested)
}

func TestValidateTransition_RejectsUnknownStatus(t *testing.T) {
	err := ValidateTransition(StatusInStock, Status("teleported"))
	require.True(t, IsInvalidTransition(err))
}

// TestTransitionTable_Golden snapshots the full edge table so that any
// change to the state machine shows up as an explicit golden diff.
func TestTransitionTable_Golden(t *testing.T) {
	table := make(map[string][]string, len(AllStatuses))
	for _, from := range AllStatuses {
		edges := []string{}
		for _, to := range NextStatuses(from) {
			edges = append(edges, to.String())
		}
		table[from.String()] = edges
	}

	out, err := json.MarshalIndent(table, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "transition_table", append(out, '\n'))
}

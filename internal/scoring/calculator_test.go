package scoring

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroom-quiz-service/internal/domain"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name   string
		roster []string
		subs   []Entry
		want   map[string]int
	}{
		{
			name:   "ranked speed bonuses",
			roster: []string{"A", "B", "C"},
			subs: []Entry{
				{TeamID: "A", IsCorrect: true, ResponseTimeMs: 3000},
				{TeamID: "B", IsCorrect: true, ResponseTimeMs: 2000},
				{TeamID: "C", IsCorrect: true, ResponseTimeMs: 4000},
			},
			want: map[string]int{"B": 15, "A": 13, "C": 12},
		},
		{
			name:   "team outside roster is still scored",
			roster: []string{"X"},
			subs: []Entry{
				{TeamID: "X", IsCorrect: false, ResponseTimeMs: 1000},
				{TeamID: "Y", IsCorrect: true, ResponseTimeMs: 1000},
			},
			want: map[string]int{"X": 0, "Y": 15},
		},
		{
			name:   "no submissions",
			roster: []string{"A", "B"},
			want:   map[string]int{"A": 0, "B": 0},
		},
		{
			name:   "ties keep submission order",
			roster: []string{"A", "B"},
			subs: []Entry{
				{TeamID: "A", IsCorrect: true, ResponseTimeMs: 1500},
				{TeamID: "B", IsCorrect: true, ResponseTimeMs: 1500},
			},
			want: map[string]int{"A": 15, "B": 13},
		},
		{
			name:   "bonus table runs out",
			roster: []string{"A", "B", "C", "D"},
			subs: []Entry{
				{TeamID: "D", IsCorrect: true, ResponseTimeMs: 4},
				{TeamID: "C", IsCorrect: true, ResponseTimeMs: 3},
				{TeamID: "B", IsCorrect: true, ResponseTimeMs: 2},
				{TeamID: "A", IsCorrect: true, ResponseTimeMs: 1},
			},
			want: map[string]int{"A": 15, "B": 13, "C": 12, "D": 10},
		},
		{
			name:   "missing team id skipped",
			roster: []string{"A"},
			subs: []Entry{
				{TeamID: "", IsCorrect: true, ResponseTimeMs: 1},
				{TeamID: "A", IsCorrect: true, ResponseTimeMs: 10},
			},
			want: map[string]int{"A": 15},
		},
		{
			name:   "later entry replaces earlier one",
			roster: []string{"A", "B"},
			subs: []Entry{
				{TeamID: "A", IsCorrect: true, ResponseTimeMs: 100},
				{TeamID: "B", IsCorrect: true, ResponseTimeMs: 200},
				{TeamID: "A", IsCorrect: false, ResponseTimeMs: 300},
			},
			want: map[string]int{"A": 0, "B": 15},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.roster, tt.subs, DefaultConfig())
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Calculate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCalculateDoesNotMutateInputs(t *testing.T) {
	roster := []string{"A", "B"}
	subs := []Entry{
		{TeamID: "B", IsCorrect: true, ResponseTimeMs: 900},
		{TeamID: "A", IsCorrect: true, ResponseTimeMs: 100},
	}
	rosterCopy := append([]string(nil), roster...)
	subsCopy := append([]Entry(nil), subs...)

	_ = Calculate(roster, subs, DefaultConfig())

	assert.Equal(t, rosterCopy, roster)
	assert.Equal(t, subsCopy, subs)
}

func TestCalculateCoversWholeRoster(t *testing.T) {
	faker := gofakeit.New(42)
	for run := 0; run < 25; run++ {
		roster := make([]string, faker.IntRange(1, 12))
		for i := range roster {
			roster[i] = faker.UUID()
		}
		var subs []Entry
		for _, teamID := range roster {
			if faker.Bool() {
				subs = append(subs, Entry{
					TeamID:         teamID,
					IsCorrect:      faker.Bool(),
					ResponseTimeMs: int64(faker.IntRange(0, 60000)),
				})
			}
		}

		got := Calculate(roster, subs, DefaultConfig())
		require.Len(t, got, len(roster))
		for _, teamID := range roster {
			_, ok := got[teamID]
			assert.True(t, ok, "team %s missing from result", teamID)
		}
	}
}

func TestImmediateStrategy(t *testing.T) {
	s := DefaultImmediate()

	assert.Equal(t, 15, s.OnSubmit(Entry{TeamID: "A", IsCorrect: true, ResponseTimeMs: 4999}, 0))
	assert.Equal(t, 10, s.OnSubmit(Entry{TeamID: "A", IsCorrect: true, ResponseTimeMs: 5000}, 0))
	assert.Equal(t, 25, s.OnSubmit(Entry{TeamID: "A", IsCorrect: true, ResponseTimeMs: 10}, 20))
	assert.Equal(t, 0, s.OnSubmit(Entry{TeamID: "A", IsCorrect: false, ResponseTimeMs: 10}, 0))
	assert.Equal(t, map[string]int{"A": 0}, s.OnRoundClose([]string{"A"}, nil))
}

func TestRankedStrategyDefersToRoundClose(t *testing.T) {
	s := Ranked{Config: DefaultConfig()}

	assert.Equal(t, 0, s.OnSubmit(Entry{TeamID: "A", IsCorrect: true, ResponseTimeMs: 1}, 10))
	assert.Equal(t, map[string]int{"A": 15, "B": 0}, s.OnRoundClose([]string{"A", "B"}, []Entry{
		{TeamID: "A", IsCorrect: true, ResponseTimeMs: 1},
	}))
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()

	s, err := reg.For(domain.ScoringImmediate)
	require.NoError(t, err)
	assert.Equal(t, domain.ScoringImmediate, s.Mode())

	s, err = reg.For("")
	require.NoError(t, err)
	assert.Equal(t, domain.ScoringRanked, s.Mode())

	_, err = reg.For("bogus")
	assert.Error(t, err)
}

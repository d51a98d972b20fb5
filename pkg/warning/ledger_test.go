package warning

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AccelByte/extend-chat-moderation/pkg/rule"
	"github.com/AccelByte/extend-chat-moderation/pkg/session"
	"github.com/AccelByte/extend-chat-moderation/pkg/store"
)

func newTestLedger() (*Ledger, *store.MemoryStore) {
	data := store.NewMemoryStore()
	return NewLedger(data, session.NewLocks(8)), data
}

func mustCompile(t *testing.T, configs map[string]SetConfig) Sets {
	t.Helper()
	sets, err := Compile("engine.yaml", configs)
	require.NoError(t, err)
	return sets
}

func TestLedger_TriggerFiresOnThirdAdd(t *testing.T) {
	ledger, _ := newTestLedger()
	sets := mustCompile(t, map[string]SetConfig{
		"swearing": {
			Decay: 1,
			Triggers: []TriggerConfig{
				{When: "score >= 3 && previous < 3", Actions: []string{"then console mute {player} 5m"}},
			},
		},
	})
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		out, err := ledger.Add(ctx, sets, "p-1", "swearing", 1)
		require.NoError(t, err)
		assert.False(t, out.Fired(), "add %d should not fire", i)
		assert.Equal(t, i, out.Score)
	}

	out, err := ledger.Add(ctx, sets, "p-1", "swearing", 1)
	require.NoError(t, err)
	assert.True(t, out.Fired())
	assert.Equal(t, 3, out.Score)
	assert.Equal(t, 2, out.Previous)
	require.Len(t, out.Actions, 1)
	assert.Equal(t, rule.DirectiveCommand, out.Actions[0].Kind)

	out, err = ledger.Add(ctx, sets, "p-1", "swearing", 1)
	require.NoError(t, err)
	assert.False(t, out.Fired(), "crossing formula fires once")
}

func TestLedger_FirstMatchingTriggerWins(t *testing.T) {
	ledger, _ := newTestLedger()
	sets := mustCompile(t, map[string]SetConfig{
		"spam": {
			Triggers: []TriggerConfig{
				{When: "score >= 10", Actions: []string{"then warn ten"}},
				{When: "score >= 5", Actions: []string{"then warn five"}},
				{When: "score >= 1", Actions: []string{"then warn one"}},
			},
		},
	})

	out, err := ledger.Add(context.Background(), sets, "p-1", "spam", 6)
	require.NoError(t, err)
	assert.Equal(t, "score >= 5", out.Trigger)
	require.Len(t, out.Actions, 1)
	assert.Equal(t, "five", out.Actions[0].Message)
}

func TestLedger_IgnoresAmountsBelowOne(t *testing.T) {
	ledger, data := newTestLedger()
	sets := mustCompile(t, map[string]SetConfig{"caps": {}})
	ctx := context.Background()

	out, err := ledger.Add(ctx, sets, "p-1", "caps", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Score)

	_, ok, err := data.Get(ctx, "p-1", Key("caps"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_UnknownSet(t *testing.T) {
	ledger, _ := newTestLedger()
	_, err := ledger.Add(context.Background(), Sets{}, "p-1", "nope", 1)
	assert.ErrorIs(t, err, ErrUnknownWarningSet)
}

func TestLedger_Decay(t *testing.T) {
	ledger, data := newTestLedger()
	sets := mustCompile(t, map[string]SetConfig{
		"swearing": {Decay: 2},
		"spam":     {Decay: 0},
	})
	ctx := context.Background()

	_, err := ledger.Add(ctx, sets, "p-1", "swearing", 5)
	require.NoError(t, err)
	_, err = ledger.Add(ctx, sets, "p-1", "spam", 4)
	require.NoError(t, err)

	for tick, want := range []int{3, 1, 0, 0} {
		_, err := ledger.Decay(ctx, sets)
		require.NoError(t, err)

		got, err := ledger.Points(ctx, "p-1", "swearing")
		require.NoError(t, err)
		assert.Equal(t, want, got, "after tick %d", tick+1)
	}

	_, ok, err := data.Get(ctx, "p-1", Key("swearing"))
	require.NoError(t, err)
	assert.False(t, ok, "zero scores are removed")

	spam, err := ledger.Points(ctx, "p-1", "spam")
	require.NoError(t, err)
	assert.Equal(t, 4, spam, "sets without decay keep their score")
	assert.Equal(t, 1, ledger.Tracked())
}

func TestLedger_SeedFromStore(t *testing.T) {
	ledger, data := newTestLedger()
	sets := mustCompile(t, map[string]SetConfig{"swearing": {Decay: 1}})
	ctx := context.Background()

	require.NoError(t, data.Set(ctx, "offline", Key("swearing"), "2"))
	require.NoError(t, ledger.Seed(ctx, data))
	assert.Equal(t, 1, ledger.Tracked())

	changed, err := ledger.Decay(ctx, sets)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	got, err := ledger.Points(ctx, "offline", "swearing")
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestLedger_DecayNeverNegative(t *testing.T) {
	sets := Sets{"s": {Name: "s"}}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("score after k ticks is max(0, s - k*d)", prop.ForAll(
		func(score, decay, ticks int) bool {
			ledger, _ := newTestLedger()
			ctx := context.Background()
			sets["s"].Decay = decay

			if _, err := ledger.Add(ctx, sets, "p", "s", score); err != nil {
				return false
			}
			for i := 0; i < ticks; i++ {
				if _, err := ledger.Decay(ctx, sets); err != nil {
					return false
				}
			}
			got, err := ledger.Points(ctx, "p", "s")
			return err == nil && got == max(0, score-ticks*decay)
		},
		gen.IntRange(1, 50),
		gen.IntRange(0, 10),
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		config  SetConfig
		wantErr error
	}{
		{name: "bad syntax", config: SetConfig{Triggers: []TriggerConfig{{When: "score >="}}}, wantErr: ErrInvalidFormula},
		{name: "unknown variable", config: SetConfig{Triggers: []TriggerConfig{{When: "karma > 3"}}}, wantErr: ErrInvalidFormula},
		{name: "not boolean", config: SetConfig{Triggers: []TriggerConfig{{When: "score + 1"}}}, wantErr: ErrInvalidFormula},
		{name: "points cascade", config: SetConfig{Triggers: []TriggerConfig{{When: "score > 1", Actions: []string{"then points other 1"}}}}, wantErr: rule.ErrDirectiveNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile("engine.yaml", map[string]SetConfig{"s": tt.config})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var loadErr *rule.LoadError
			assert.ErrorAs(t, err, &loadErr)
		})
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		formula string
		vars    map[string]float64
		want    int
	}{
		{formula: "", want: 0},
		{formula: "2", want: 2},
		{formula: "similarity * 2", vars: map[string]float64{"similarity": 0.8}, want: 2},
		{formula: "similarity > 0.9 ? 3 : 1", vars: map[string]float64{"similarity": 0.95}, want: 3},
		{formula: "caps_percentage / 100", vars: map[string]float64{"caps_percentage": 40}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			amount, err := CompileAmount(tt.formula, "similarity", "caps_percentage")
			require.NoError(t, err)

			vars := map[string]float64{"similarity": 0, "caps_percentage": 0}
			for k, v := range tt.vars {
				vars[k] = v
			}
			got, err := amount.Eval(vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := CompileAmount("delay * 2", "similarity")
	assert.ErrorIs(t, err, ErrInvalidFormula)
}

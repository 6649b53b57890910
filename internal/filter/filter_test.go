package filter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/wine-catalog/backend/internal/domain"
	"github.com/pkordes/wine-catalog/backend/internal/filter"
)

func named(names ...string) []domain.Wine {
	out := make([]domain.Wine, len(names))
	for i, n := range names {
		out[i] = domain.NewWine()
		out[i].Name = n
	}
	return out
}

func names(ws []domain.Wine) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Name
	}
	return out
}

// ---- Apply -----------------------------------------------------------------

func TestApply_EmptyFilterReturnsInputUnchanged(t *testing.T) {
	in := named("Shiraz", "Merlot", "Malbec")

	got := filter.Apply(in, "")

	assert.Equal(t, in, got)
}

func TestApply_CaseAndAccentInsensitive(t *testing.T) {
	in := named("Château Margaux")

	tests := []struct {
		filter string
		want   int
	}{
		{"ateau", 1},
		{"CHATEAU", 1},
		{"château", 1},
		{"MARGAUX", 1},
		{"", 1},
		{"xyz", 0},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			assert.Len(t, filter.Apply(in, tt.filter), tt.want)
			assert.Equal(t, tt.want == 1, filter.Matches(in[0], tt.filter))
		})
	}
}

func TestApply_KeepsOrderOfMatches(t *testing.T) {
	in := named("Shiraz", "Merlot", "Shiraz Reserve", "Sherry")

	got := filter.Apply(in, "sh")

	assert.Equal(t, []string{"Shiraz", "Shiraz Reserve", "Sherry"}, names(got))
}

func TestApply_OnlyMatchesName(t *testing.T) {
	w := domain.NewWine()
	w.Name = "Merlot"
	w.Producer = "Shiraz Estates"
	w.OriginCountry = "Shiraz"

	got := filter.Apply([]domain.Wine{w}, "shiraz")

	assert.Empty(t, got)
}

func TestApply_EmptyCollection(t *testing.T) {
	assert.Empty(t, filter.Apply(nil, ""))
	got := filter.Apply(nil, "merlot")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestApply_NoMatchIsEmptyNotNil(t *testing.T) {
	got := filter.Apply(named("Merlot"), "zzz")

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestApply_OnlyCombiningMarksMatchesNothing(t *testing.T) {
	in := named("Merlot", "Shiraz")

	for _, text := range []string{"\u0301", "\u0300\u0308"} {
		got := filter.Apply(in, text)

		assert.NotNil(t, got)
		assert.Empty(t, got)
		assert.False(t, filter.Matches(in[0], text))
	}
}

func TestEngine_AccentOnlyFilterEmptiesView(t *testing.T) {
	e := filter.NewEngine()
	e.SetEntries(named("Merlot", "Shiraz"))

	v := e.SetFilter("\u0301")

	assert.Empty(t, v.Entries)
}

// ---- Engine ----------------------------------------------------------------

func TestEngine_RecomputesOnEitherInput(t *testing.T) {
	e := filter.NewEngine()

	v := e.SetEntries(named("Merlot", "Shiraz"))
	assert.Equal(t, []string{"Merlot", "Shiraz"}, names(v.Entries))

	v = e.SetFilter("sh")
	assert.Equal(t, "sh", v.Filter)
	assert.Equal(t, []string{"Shiraz"}, names(v.Entries))

	v = e.SetEntries(named("Merlot", "Shiraz", "Sherry"))
	assert.Equal(t, []string{"Shiraz", "Sherry"}, names(v.Entries), "filter is kept across collection changes")
}

func TestEngine_RestoreOnlyWhenSizeUnchanged(t *testing.T) {
	e := filter.NewEngine()
	e.SelectPosition(1)

	v := e.SetEntries(named("Merlot", "Shiraz"))
	assert.False(t, v.Restore, "size changed from 0 to 2")

	v = e.SetEntries(named("Merlot", "Shiraz Reserve"))
	assert.True(t, v.Restore, "same size, scroll back")
	assert.Equal(t, 1, v.Position)

	v = e.SetFilter("merlot")
	assert.False(t, v.Restore, "size changed from 2 to 1")
}

func TestEngine_PositionBeyondResultResets(t *testing.T) {
	e := filter.NewEngine()
	e.SetEntries(named("Merlot", "Shiraz"))
	e.SelectPosition(5)

	v := e.SetEntries(named("Malbec", "Syrah"))

	assert.True(t, v.Restore)
	assert.Equal(t, 0, v.Position)
}

func TestEngine_Run(t *testing.T) {
	e := filter.NewEngine()
	entries := make(chan []domain.Wine)
	filters := make(chan string)
	views := make(chan filter.View, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- e.Run(ctx, entries, filters, func(v filter.View) { views <- v })
	}()

	// A filter before any collection is remembered but not emitted.
	filters <- "sh"
	entries <- named("Merlot", "Shiraz")
	v := <-views
	assert.Equal(t, []string{"Shiraz"}, names(v.Entries))

	filters <- ""
	v = <-views
	assert.Equal(t, []string{"Merlot", "Shiraz"}, names(v.Entries))
	assert.Empty(t, views)

	close(entries)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after entries closed")
	}
}

func TestEngine_Run_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := filter.NewEngine().Run(ctx, make(chan []domain.Wine), make(chan string), func(filter.View) {})

	assert.ErrorIs(t, err, context.Canceled)
}

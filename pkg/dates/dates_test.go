package dates

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/eventscope/pkg/domain"
)

var testNow = time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

func newTestEngine(fallback bool) *Engine {
	return New(Config{Location: time.UTC, PastThreshold: 24 * time.Hour, DefaultHorizon: 14 * 24 * time.Hour,
		AllowFallback: fallback}, WithNow(func() time.Time { return testNow }))
}

func TestEngine_Resolve(t *testing.T) {
	e := newTestEngine(true)

	tbl := []struct {
		name     string
		in       Input
		want     time.Time
		wantEnd  *time.Time
		wantConf domain.DateConfidence
	}{
		{
			name:     "at sign normalized",
			in:       Input{Explicit: []string{"September 24, 2025 @ 8:00 am"}},
			want:     time.Date(2025, 9, 24, 8, 0, 0, 0, time.UTC),
			wantConf: domain.DateExplicit,
		},
		{
			name:     "structured wins over explicit",
			in:       Input{Structured: "2025-10-02T19:30:00Z", Explicit: []string{"September 24, 2025"}},
			want:     time.Date(2025, 10, 2, 19, 30, 0, 0, time.UTC),
			wantConf: domain.DateStructured,
		},
		{
			name: "structured with end",
			in:   Input{Structured: "2025-10-02T19:30", StructuredEnd: "2025-10-02T22:00"},
			want: time.Date(2025, 10, 2, 19, 30, 0, 0, time.UTC),
			wantEnd: func() *time.Time {
				t := time.Date(2025, 10, 2, 22, 0, 0, 0, time.UTC)
				return &t
			}(),
			wantConf: domain.DateStructured,
		},
		{
			name:     "explicit with weekday and ordinal",
			in:       Input{Explicit: []string{"Saturday, October 4th, 2025 7pm"}},
			want:     time.Date(2025, 10, 4, 19, 0, 0, 0, time.UTC),
			wantConf: domain.DateExplicit,
		},
		{
			name:     "explicit iso attribute",
			in:       Input{Explicit: []string{"2025-11-12"}},
			want:     time.Date(2025, 11, 12, 0, 0, 0, 0, time.UTC),
			wantConf: domain.DateExplicit,
		},
		{
			name: "explicit with time range",
			in:   Input{Explicit: []string{"Date: Sept 24, 2025 from 8:00 p.m. - 11:00 p.m."}},
			want: time.Date(2025, 9, 24, 20, 0, 0, 0, time.UTC),
			wantEnd: func() *time.Time {
				t := time.Date(2025, 9, 24, 23, 0, 0, 0, time.UTC)
				return &t
			}(),
			wantConf: domain.DateExplicit,
		},
		{
			name:     "pattern in block text",
			in:       Input{Text: "Jazz Night. Join us on 10/18/2025 at 9:30 pm in the hall"},
			want:     time.Date(2025, 10, 18, 21, 30, 0, 0, time.UTC),
			wantConf: domain.DatePattern,
		},
		{
			name:     "day month year",
			in:       Input{Text: "Opening 3 December 2025 noon"},
			want:     time.Date(2025, 12, 3, 12, 0, 0, 0, time.UTC),
			wantConf: domain.DatePattern,
		},
		{
			name:     "weekday month day takes current year",
			in:       Input{Text: "Community cleanup Sat Sep 27 10am"},
			want:     time.Date(2025, 9, 27, 10, 0, 0, 0, time.UTC),
			wantConf: domain.DatePattern,
		},
		{
			name:     "year-less date in the past rolls to next year",
			in:       Input{Text: "Winter gala, Fri Feb 13, 6:30 pm"},
			want:     time.Date(2026, 2, 13, 18, 30, 0, 0, time.UTC),
			wantConf: domain.DatePattern,
		},
		{
			name:     "24h clock",
			in:       Input{Text: "2025-09-30 18:45 doors open"},
			want:     time.Date(2025, 9, 30, 18, 45, 0, 0, time.UTC),
			wantConf: domain.DatePattern,
		},
		{
			name: "mapper used after generic patterns fail",
			in: Input{Text: "Semaine 40", Mapper: func(text string, loc *time.Location) (time.Time, bool) {
				if text == "Semaine 40" {
					return time.Date(2025, 9, 29, 0, 0, 0, 0, loc), true
				}
				return time.Time{}, false
			}},
			want:     time.Date(2025, 9, 29, 0, 0, 0, 0, time.UTC),
			wantConf: domain.DateMapped,
		},
		{
			name:     "fallback month and year",
			in:       Input{Title: "Harvest festival", Description: "Coming this October, 2025 - details soon"},
			want:     time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC),
			wantConf: domain.DateFallback,
		},
		{
			name:     "fallback month only in the past rolls to next year",
			in:       Input{Title: "Spring concert in April"},
			want:     time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC),
			wantConf: domain.DateFallback,
		},
		{
			name:     "fallback current month clamped to today",
			in:       Input{Title: "September sale"},
			want:     time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
			wantConf: domain.DateFallback,
		},
		{
			name:     "fallback future year",
			in:       Input{Title: "World expo 2026"},
			want:     time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
			wantConf: domain.DateFallback,
		},
		{
			name:     "fallback horizon",
			in:       Input{Title: "Something happens", Text: "no dates here"},
			want:     time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
			wantConf: domain.DateFallback,
		},
		{
			name:     "year-only element in the future is not a confirmed date",
			in:       Input{Explicit: []string{"2026"}, Text: "Gala dinner 2026 doors 7pm"},
			want:     time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
			wantConf: domain.DateFallback,
		},
		{
			name:     "current year only element falls back to horizon",
			in:       Input{Explicit: []string{"2025"}},
			want:     time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
			wantConf: domain.DateFallback,
		},
		{
			name:     "season and year element",
			in:       Input{Explicit: []string{"Spring 2026"}},
			want:     time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
			wantConf: domain.DateFallback,
		},
		{
			name:     "month and year from date element feeds fallback",
			in:       Input{Explicit: []string{"October 2025"}, Title: "Harvest fair"},
			want:     time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC),
			wantConf: domain.DateFallback,
		},
		{
			name:     "year-less feb 29 waits for a leap year",
			in:       Input{Text: "Leap party Feb 29 at 8pm"},
			want:     time.Date(2028, 2, 29, 20, 0, 0, 0, time.UTC),
			wantConf: domain.DatePattern,
		},
		{
			name: "year-less mapped date placed against engine clock",
			in: Input{Text: "soirée 14/02", Mapper: func(text string, loc *time.Location) (time.Time, bool) {
				return time.Date(0, 2, 14, 21, 0, 0, 0, loc), true
			}},
			want:     time.Date(2026, 2, 14, 21, 0, 0, 0, time.UTC),
			wantConf: domain.DateMapped,
		},
		{
			name:     "may without year is not a month",
			in:       Input{Title: "You may bring friends"},
			want:     time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
			wantConf: domain.DateFallback,
		},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Resolve(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Start)
			assert.Equal(t, tt.wantConf, res.Confidence)
			if tt.wantEnd != nil {
				require.NotNil(t, res.End)
				assert.Equal(t, *tt.wantEnd, *res.End)
			}
		})
	}
}

func TestEngine_FallbackClampsWithinCurrentMonth(t *testing.T) {
	now := time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)
	e := New(Config{AllowFallback: true}, WithNow(func() time.Time { return now }))
	res, err := e.Resolve(Input{Title: "Pumpkin market", Description: "all of October 2025"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC), res.Start)
	assert.Equal(t, domain.DateFallback, res.Confidence)
	assert.False(t, res.Confidence.Confirmed())
}

func TestEngine_Unresolvable(t *testing.T) {
	e := newTestEngine(false)
	_, err := e.Resolve(Input{Title: "Open mic", Text: "bring your guitar"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDateUnresolvable))
}

func TestEngine_Stale(t *testing.T) {
	e := newTestEngine(true)

	t.Run("older than threshold", func(t *testing.T) {
		_, err := e.Resolve(Input{Explicit: []string{"August 20, 2025"}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrStaleEvent))
	})

	t.Run("within tolerance", func(t *testing.T) {
		res, err := e.Resolve(Input{Explicit: []string{"August 31, 2025 8:00 pm"}})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 8, 31, 20, 0, 0, 0, time.UTC), res.Start)
	})

	t.Run("stale marker beats future date", func(t *testing.T) {
		_, err := e.Resolve(Input{Explicit: []string{"October 2, 2025"}, Text: "This event has ended"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrStaleEvent))
	})

	t.Run("archived marker", func(t *testing.T) {
		_, err := e.Resolve(Input{Title: "Archived: summer fair", Explicit: []string{"October 2, 2025"}})
		assert.True(t, errors.Is(err, domain.ErrStaleEvent))
	})

	t.Run("ongoing marker keeps old start", func(t *testing.T) {
		res, err := e.Resolve(Input{Explicit: []string{"June 1, 2025"}, Text: "Exhibition now showing in gallery 2"})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), res.Start)
	})

	t.Run("live end keeps old start", func(t *testing.T) {
		res, err := e.Resolve(Input{Structured: "2025-06-01", StructuredEnd: "2025-12-31"})
		require.NoError(t, err)
		require.NotNil(t, res.End)
	})

	t.Run("past fallback year", func(t *testing.T) {
		_, err := e.Resolve(Input{Title: "Retrospective 2023"})
		assert.True(t, errors.Is(err, domain.ErrStaleEvent))
	})
}

func TestEngine_ImplausibleYearIgnored(t *testing.T) {
	e := newTestEngine(false)
	_, err := e.Resolve(Input{Explicit: []string{"1999-01-01"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDateUnresolvable))
}

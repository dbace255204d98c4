package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare_Semver(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want Ordering
	}{
		{"numeric not lexicographic", "3.5.10", "3.5.9", Gt},
		{"prerelease below release", "1.0.0-rc.1", "1.0.0", Lt},
		{"equal", "2.1.0", "2.1.0", Eq},
		{"major wins", "2.0.0", "1.99.99", Gt},
		{"patch ordering", "0.1.1", "0.1.2", Lt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
			// Antisymmetry
			assert.Equal(t, Ordering(-int(tt.want)), Compare(tt.b, tt.a))
		})
	}
}

func TestCompare_LatestSentinel(t *testing.T) {
	assert.Equal(t, Eq, Compare(Latest, "1.0.0"))
	assert.Equal(t, Eq, Compare("1.0.0", Latest))
	assert.Equal(t, Eq, Compare(Latest, Latest))
	assert.Equal(t, Eq, Compare(Latest, "not-a-version"))
}

func TestCompare_LooseSuffix(t *testing.T) {
	// Registry-style suffixes that are not valid semver pre-releases still
	// compare on their numeric core.
	assert.Equal(t, Gt, Compare("1.3.0-otp-27", "1.2.9"))
	assert.Equal(t, Lt, Compare("1.2.0-otp-25", "1.3.0"))
}

func TestCompare_LexicographicFallback(t *testing.T) {
	assert.Equal(t, Lt, Compare("apple", "banana"))
	assert.Equal(t, Gt, Compare("v-final-2", "v-final-1"))
	assert.Equal(t, Eq, Compare("weird", "weird"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, Latest, Normalize(""))
	assert.Equal(t, "1.2.3", Normalize("1.2.3"))
	assert.Equal(t, Latest, Normalize(Latest))
}

func TestFindLatest(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		_, ok := FindLatest(nil)
		assert.False(t, ok)
	})

	t.Run("picks highest semver", func(t *testing.T) {
		got, ok := FindLatest([]string{"1.0.0", "3.5.10", "3.5.9", "2.0.0"})
		require.True(t, ok)
		assert.Equal(t, "3.5.10", got)
	})

	t.Run("sentinel filtered out", func(t *testing.T) {
		got, ok := FindLatest([]string{Latest, "1.0.0", "0.9.0"})
		require.True(t, ok)
		assert.Equal(t, "1.0.0", got)
	})

	t.Run("all sentinel", func(t *testing.T) {
		got, ok := FindLatest([]string{Latest, Latest})
		require.True(t, ok)
		assert.Equal(t, Latest, got)
	})

	t.Run("single element", func(t *testing.T) {
		got, ok := FindLatest([]string{"0.0.1"})
		require.True(t, ok)
		assert.Equal(t, "0.0.1", got)
	})
}

type hit struct {
	pkg string
	ver string
	id  int
}

func TestFilterLatest(t *testing.T) {
	hits := []hit{
		{"ash", "3.5.9", 1},
		{"phoenix", "1.7.0", 2},
		{"ash", "3.5.10", 3},
		{"phoenix", "1.6.0", 4},
		{"ash", "3.5.10", 5},
	}

	kept := FilterLatest(hits,
		func(h hit) string { return h.pkg },
		func(h hit) string { return h.ver })

	require.Len(t, kept, 3)
	// Original order preserved; only each package's latest version survives.
	assert.Equal(t, []hit{
		{"phoenix", "1.7.0", 2},
		{"ash", "3.5.10", 3},
		{"ash", "3.5.10", 5},
	}, kept)
}

func TestFilterLatest_Empty(t *testing.T) {
	assert.Empty(t, FilterLatest(nil,
		func(h hit) string { return h.pkg },
		func(h hit) string { return h.ver }))
}

func TestFilterLatest_SentinelOnlyPackage(t *testing.T) {
	hits := []hit{
		{"ecto", Latest, 1},
		{"ecto", Latest, 2},
	}
	kept := FilterLatest(hits,
		func(h hit) string { return h.pkg },
		func(h hit) string { return h.ver })
	assert.Len(t, kept, 2)
}

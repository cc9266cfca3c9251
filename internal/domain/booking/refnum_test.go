package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequence returns the alphabet indexes in order, repeating the last one.
func sequence(idx ...int) func(int) (int, error) {
	i := 0
	return func(int) (int, error) {
		v := idx[len(idx)-1]
		if i < len(idx) {
			v = idx[i]
		}
		i++
		return v, nil
	}
}

func TestValidReference(t *testing.T) {
	cases := map[string]bool{
		"GC-20251205-A3F9K":  true,
		"GC-20251205-00000":  true,
		"GC-2025125-A3F9K":   false,
		"GC-20251205-a3f9k":  false,
		"GC-20251205-A3F9":   false,
		"GX-20251205-A3F9K":  false,
		"GC-20251205-A3F9K ": false,
	}
	for in, want := range cases {
		assert.Equal(t, want, ValidReference(in), in)
	}
}

func TestReferenceGenerator_Format(t *testing.T) {
	gen := NewReferenceGenerator(func(context.Context, string) (bool, error) { return false, nil }, 0)

	date := time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		ref, err := gen.Generate(context.Background(), date)
		require.NoError(t, err)
		assert.True(t, ValidReference(ref), ref)
		assert.Equal(t, "GC-20251205-", ref[:12])
		seen[ref] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestReferenceGenerator_RetriesOnCollision(t *testing.T) {
	taken := map[string]bool{"GC-20251205-AAAAA": true}
	gen := NewReferenceGenerator(func(_ context.Context, ref string) (bool, error) {
		return taken[ref], nil
	}, 3)
	// first candidate AAAAA collides, second is BBBBB
	gen.randIndex = sequence(0, 0, 0, 0, 0, 1)

	ref, err := gen.Generate(context.Background(), time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "GC-20251205-BBBBB", ref)
}

func TestReferenceGenerator_Exhausted(t *testing.T) {
	calls := 0
	gen := NewReferenceGenerator(func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	}, 4)

	_, err := gen.Generate(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrReferenceGenerationExhausted)
	assert.Equal(t, 4, calls)
}

func TestReferenceGenerator_LookupError(t *testing.T) {
	boom := errors.New("db down")
	gen := NewReferenceGenerator(func(context.Context, string) (bool, error) { return false, boom }, 2)

	_, err := gen.Generate(context.Background(), time.Now())
	assert.ErrorIs(t, err, boom)
}

func TestReferenceDate(t *testing.T) {
	approvedAt := time.Date(2025, 11, 20, 23, 30, 0, 0, time.FixedZone("PHT", 8*3600))

	assert.Equal(t, "20251205", referenceDate("2025-12-05", approvedAt).Format("20060102"))
	assert.Equal(t, "20251120", referenceDate("next spring", approvedAt).Format("20060102"))
}

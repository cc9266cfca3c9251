package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingflow/internal/testutil"
)

func TestRepository_UnavailableProducts(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testutil.NewDB(t, &Product{}))

	tent := &Product{Name: "Garden tent", Category: "venue", Price: 5000, Available: true}
	lights := &Product{Name: "Fairy lights", Category: "decor", Price: 800, Available: true}
	choir := &Product{Name: "Choir", Category: "music", Price: 12000, Available: false}
	for _, p := range []*Product{tent, lights, choir} {
		require.NoError(t, repo.Create(ctx, p))
		require.NotEmpty(t, p.ID)
	}

	got, err := repo.UnavailableProducts(ctx, []string{tent.ID, choir.ID, "missing", lights.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{choir.ID, "missing"}, got)

	require.NoError(t, repo.SetAvailable(ctx, tent.ID, false))
	got, err = repo.UnavailableProducts(ctx, []string{tent.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{tent.ID}, got)

	got, err = repo.UnavailableProducts(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ebomlca "github.com/superdango/ebom-lca"
)

type countingCatalog struct {
	calls   int
	entries []ebomlca.MaterialEntry
	err     error
}

func (c *countingCatalog) Materials(ctx context.Context) ([]ebomlca.MaterialEntry, error) {
	c.calls++
	return c.entries, c.err
}

func TestCatalog(t *testing.T) {
	source := &countingCatalog{entries: []ebomlca.MaterialEntry{{Label: "Steel", EmissionFactor: 1.8}}}
	catalog := NewCatalog(t.Context(), source, time.Hour)

	entries, err := catalog.Materials(t.Context())
	require.NoError(t, err)
	assert.Equal(t, source.entries, entries)

	_, err = catalog.Materials(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)

	catalog.Invalidate()
	_, err = catalog.Materials(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestCatalogSourceError(t *testing.T) {
	source := &countingCatalog{err: errors.New("db down")}
	catalog := NewCatalog(t.Context(), source, time.Hour)

	_, err := catalog.Materials(t.Context())
	assert.Error(t, err)
}

package persistence_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assortlab/noos-go/internal/adapters/persistence"
	"github.com/assortlab/noos-go/internal/domain/catalog"
	"github.com/assortlab/noos-go/test/helpers"
)

func newStyle(code string) *catalog.Style {
	return &catalog.Style{
		StyleCode:   code,
		Brand:       "Levis",
		Category:    "Jeans",
		SubCategory: "Casual",
		MRP:         decimal.RequireFromString("999.00"),
		Gender:      "MEN",
	}
}

func TestStyleRepository_ApplyBatchInsertsAndUpdates(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormStyleRepository(db)

	first := newStyle("ST001")
	require.NoError(t, repo.ApplyBatch(context.Background(), []*catalog.Style{first}, nil))
	require.Positive(t, first.ID)

	first.Brand = "Wrangler"
	second := newStyle("ST002")

	// Act
	err := repo.ApplyBatch(context.Background(), []*catalog.Style{second}, []*catalog.Style{first})

	// Assert
	require.NoError(t, err)
	all, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Wrangler", all[0].Brand)
	assert.Equal(t, "ST002", all[1].StyleCode)

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestStyleRepository_FindByCodeUnknownReturnsNil(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormStyleRepository(db)

	// Act
	found, err := repo.FindByCode(context.Background(), "GHOST")

	// Assert
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestStyleRepository_CodeToID(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormStyleRepository(db)
	a, b := newStyle("ST001"), newStyle("ST002")
	require.NoError(t, repo.ApplyBatch(context.Background(), []*catalog.Style{a, b}, nil))

	// Act
	lookup, err := repo.CodeToID(context.Background())

	// Assert
	require.NoError(t, err)
	require.Len(t, lookup, 2)
	assert.Equal(t, a.ID, lookup["ST001"])
	assert.Equal(t, b.ID, lookup["ST002"])
}

func TestSkuRepository_StyleIDBySkuID(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	styles := persistence.NewGormStyleRepository(db)
	skus := persistence.NewGormSkuRepository(db)

	st := newStyle("ST001")
	require.NoError(t, styles.ApplyBatch(context.Background(), []*catalog.Style{st}, nil))
	k1 := &catalog.SKU{Code: "SKU001", StyleID: st.ID, Size: "32"}
	k2 := &catalog.SKU{Code: "SKU002", StyleID: st.ID, Size: "34"}
	require.NoError(t, skus.ApplyBatch(context.Background(), []*catalog.SKU{k1, k2}, nil))

	// Act
	projection, err := skus.StyleIDBySkuID(context.Background())

	// Assert
	require.NoError(t, err)
	require.Len(t, projection, 2)
	assert.Equal(t, st.ID, projection[k1.ID])
	assert.Equal(t, st.ID, projection[k2.ID])
}

func TestSkuRepository_ApplyBatchUpdatesSize(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	styles := persistence.NewGormStyleRepository(db)
	skus := persistence.NewGormSkuRepository(db)

	st := newStyle("ST001")
	require.NoError(t, styles.ApplyBatch(context.Background(), []*catalog.Style{st}, nil))
	k := &catalog.SKU{Code: "SKU001", StyleID: st.ID, Size: "32"}
	require.NoError(t, skus.ApplyBatch(context.Background(), []*catalog.SKU{k}, nil))

	k.Size = "36"

	// Act
	err := skus.ApplyBatch(context.Background(), nil, []*catalog.SKU{k})

	// Assert
	require.NoError(t, err)
	found, err := skus.FindByCode(context.Background(), "SKU001")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "36", found.Size)
}

func TestStoreRepository_BranchToID(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormStoreRepository(db)
	s1 := &catalog.Store{Branch: "BR001", City: "Mumbai"}
	s2 := &catalog.Store{Branch: "BR002", City: "Delhi"}
	require.NoError(t, repo.ApplyBatch(context.Background(), []*catalog.Store{s1, s2}, nil))

	// Act
	lookup, err := repo.BranchToID(context.Background())

	// Assert
	require.NoError(t, err)
	require.Len(t, lookup, 2)
	assert.Equal(t, s1.ID, lookup["BR001"])
	assert.Equal(t, s2.ID, lookup["BR002"])
}

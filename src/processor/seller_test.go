package processor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingProvider struct{}

func (failingProvider) GetData() (Tables, error) {
	return Tables{}, errors.New("disk on fire")
}

func TestNewSeller(t *testing.T) {
	_, err := NewSeller(nil)
	assert.Error(t, err)

	_, err = NewSeller(failingProvider{})
	assert.ErrorContains(t, err, "disk on fire")

	s := newTestSeller(t, fixture(t), WithParallel(false))
	assert.False(t, s.parallel)
}

func TestGetSellerFeatures(t *testing.T) {
	s := newTestSeller(t, fixture(t))

	df, err := s.GetSellerFeatures()
	require.NoError(t, err)
	assert.Equal(t, SellerFeatureColumns, df.Names())
	assert.Equal(t, 4, df.Nrow())
	assert.Equal(t, []string{"SP", "RJ", "PR", "MG"}, df.Col(ColSellerState).Records())

	// 原始表保持不变
	assert.Equal(t, 4, s.data.Sellers.Ncol())
}

func TestGetSellerFeaturesMissingColumn(t *testing.T) {
	tables := fixture(t)
	tables.Sellers = tables.Sellers.Drop(ColSellerState)
	s := newTestSeller(t, tables)

	_, err := s.GetSellerFeatures()
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, TableSellers, schemaErr.Table)
	assert.Equal(t, ColSellerState, schemaErr.Column)
}

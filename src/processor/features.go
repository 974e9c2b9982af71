package processor

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
)

// GetSellerFeatures 卖家基础属性：seller_id、城市、州，保留全部行
func (s *Seller) GetSellerFeatures() (dataframe.DataFrame, error) {
	sellers := s.data.Sellers
	if err := requireColumns(TableSellers, sellers, SellerFeatureColumns...); err != nil {
		return dataframe.DataFrame{}, err
	}

	// Select 会复制列，不影响原始表
	df := sellers.Select(SellerFeatureColumns)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("select seller features: %w", df.Err)
	}

	s.logger.Debug(fmt.Sprintf("卖家属性: %d 行", df.Nrow()))
	return df, nil
}

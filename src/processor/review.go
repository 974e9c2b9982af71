package processor

import (
	"fmt"
	"math"

	"OlistTraining/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const (
	dimIsOneStar  = "dim_is_one_star"
	dimIsFiveStar = "dim_is_five_star"
)

// GetReviewScore 按卖家统计评价：平均分、差评(<=2)占比、五星占比。
// 只有至少一条匹配评价的卖家才会出现。
func (s *Seller) GetReviewScore() (dataframe.DataFrame, error) {
	items := s.data.OrderItems
	reviews := s.data.OrderReviews
	if err := requireColumns(TableOrderItems, items, ColOrderID, ColSellerID); err != nil {
		return dataframe.DataFrame{}, err
	}
	if err := requireColumns(TableOrderReviews, reviews, ColOrderID, ColReviewScore); err != nil {
		return dataframe.DataFrame{}, err
	}

	// 订单-卖家对去重，再与评价内连接，没有评价的订单不参与
	pairs := utils.DropDuplicates(items.Select([]string{ColOrderID, ColSellerID}), ColOrderID, ColSellerID)
	matched := utils.InnerJoin(pairs, reviews.Select([]string{ColOrderID, ColReviewScore}), ColOrderID)
	if matched.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("join reviews: %w", matched.Err)
	}

	scoreCol := matched.Col(ColReviewScore)
	scores := scoreCol.Float()
	oneStar := make([]float64, len(scores))
	fiveStar := make([]float64, len(scores))
	for i, score := range scores {
		if math.IsNaN(score) {
			return dataframe.DataFrame{}, &ValueError{
				Table:  TableOrderReviews,
				Column: ColReviewScore,
				Row:    i,
				Value:  scoreCol.Elem(i).String(),
			}
		}
		if score <= 2 {
			oneStar[i] = 1
		}
		if score == 5 {
			fiveStar[i] = 1
		}
	}

	df := dataframe.New(
		matched.Col(ColSellerID),
		series.New(scores, series.Float, ColReviewScore),
		series.New(oneStar, series.Float, dimIsOneStar),
		series.New(fiveStar, series.Float, dimIsFiveStar),
	)

	result, err := utils.Aggregate(df, ColSellerID,
		utils.Agg{Name: ColReviewScore, Type: series.Float, Fn: utils.Mean(ColReviewScore)},
		utils.Agg{Name: ColShareOfOneStars, Type: series.Float, Fn: utils.Mean(dimIsOneStar)},
		utils.Agg{Name: ColShareOfFiveStars, Type: series.Float, Fn: utils.Mean(dimIsFiveStar)},
	)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("aggregate reviews: %w", err)
	}

	s.logger.Debug(fmt.Sprintf("评价匹配 %d 行，涉及卖家 %d 个", matched.Nrow(), result.Nrow()))
	return result, nil
}

package processor

import (
	"math"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	infos  []string
	errors []string
}

func (l *recordingLogger) Debug(string)   {}
func (l *recordingLogger) Info(m string)  { l.infos = append(l.infos, m) }
func (l *recordingLogger) Warning(string) {}
func (l *recordingLogger) Error(m string) { l.errors = append(l.errors, m) }

func TestGetTrainingData(t *testing.T) {
	s := newTestSeller(t, fixture(t))

	df, err := s.GetTrainingData()
	require.NoError(t, err)
	assert.Equal(t, TrainingColumns, df.Names())
	assert.Len(t, df.Names(), 15)
	// s3 没有订单指标，s4 没有评价
	assert.Equal(t, []string{"s1", "s2"}, df.Col(ColSellerID).Records())

	s1 := rowOf(t, df, "s1")
	assert.Equal(t, "sao paulo", s1[ColSellerCity])
	assert.InDelta(t, 30.0, s1[ColSales], 1e-9)
	assert.InDelta(t, 4.5, s1[ColReviewScore], 1e-9)

	s2 := rowOf(t, df, "s2")
	assert.InDelta(t, 1.0, s2[ColReviewScore], 1e-9)
	assert.InDelta(t, 1.0, s2[ColShareOfOneStars], 1e-9)
	assert.InDelta(t, 0.0, s2[ColShareOfFiveStars], 1e-9)
}

func TestTrainingDataInvariants(t *testing.T) {
	s := newTestSeller(t, fixture(t))
	res, err := s.Run()
	require.NoError(t, err)

	df := res.Table
	assert.LessOrEqual(t, res.Report.Rows, res.Report.Sellers)
	assert.LessOrEqual(t, res.Report.Rows, res.Report.Metrics)
	assert.LessOrEqual(t, res.Report.Rows, res.Report.Reviews)
	assert.Equal(t, df.Nrow(), res.Report.Rows)
	assert.Equal(t, 15, res.Report.Columns)

	for _, m := range df.Maps() {
		months := m[ColMonthsOnOlist].(int)
		nOrders := m[ColNOrders].(int)
		quantity := m[ColQuantity].(int)
		assert.GreaterOrEqual(t, months, 1)
		assert.GreaterOrEqual(t, quantity, nOrders)
		assert.GreaterOrEqual(t, m[ColDelayToCarrier].(float64), 0.0)
		assert.InDelta(t, float64(quantity)/float64(nOrders), m[ColQuantityPerOrder], 1e-9)
		for _, col := range []string{ColShareOfOneStars, ColShareOfFiveStars} {
			v := m[col].(float64)
			assert.False(t, math.IsNaN(v))
			assert.True(t, v >= 0 && v <= 1, "%s=%v", col, v)
		}
		assert.LessOrEqual(t, m[ColDateFirstSale].(string), m[ColDateLastSale].(string))
	}
}

func TestRunIsIdempotent(t *testing.T) {
	tables := fixture(t)

	first, err := newTestSeller(t, tables).Run()
	require.NoError(t, err)
	second, err := newTestSeller(t, tables).Run()
	require.NoError(t, err)
	sequential, err := newTestSeller(t, tables, WithParallel(false)).Run()
	require.NoError(t, err)

	assert.Equal(t, first.Table.Records(), second.Table.Records())
	assert.Equal(t, first.Table.Records(), sequential.Table.Records())

	// 输入表不被修改
	assert.Equal(t, fixture(t).Orders.Records(), tables.Orders.Records())
	assert.Equal(t, fixture(t).OrderItems.Records(), tables.OrderItems.Records())
}

func TestRunLogsReport(t *testing.T) {
	logger := &recordingLogger{}
	s := newTestSeller(t, fixture(t), WithLogger(logger))
	_, err := s.Run()
	require.NoError(t, err)
	require.NotEmpty(t, logger.infos)
	assert.Contains(t, logger.infos[len(logger.infos)-1], "训练表 2 行 15 列")

	tables := fixture(t)
	tables.Sellers = tables.Sellers.Drop(ColSellerCity)
	s = newTestSeller(t, tables, WithLogger(logger))
	_, err = s.Run()
	require.Error(t, err)
	assert.NotEmpty(t, logger.errors)
}

func TestRunDuplicateSeller(t *testing.T) {
	tables := fixture(t)
	tables.Sellers = frame(t, [][]string{
		{"seller_id", "seller_city", "seller_state"},
		{"s1", "sao paulo", "SP"},
		{"s2", "rio de janeiro", "RJ"},
		{"s1", "campinas", "SP"},
	})

	_, err := newTestSeller(t, tables).GetTrainingData()
	var dupErr *KeyUniquenessViolation
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "seller_features", dupErr.Table)
	assert.Equal(t, ColSellerID, dupErr.Key)
	assert.Equal(t, "s1", dupErr.Value)
	assert.Equal(t, 2, dupErr.Count)
}

func TestMerge(t *testing.T) {
	s := newTestSeller(t, fixture(t))
	features, err := s.GetSellerFeatures()
	require.NoError(t, err)
	metrics, err := s.GetOrderMetrics()
	require.NoError(t, err)
	reviews, err := s.GetReviewScore()
	require.NoError(t, err)

	merged, err := Merge(features, metrics, reviews)
	require.NoError(t, err)
	assert.Equal(t, 2, merged.Nrow())

	// 额外的列不会进入训练表
	extra := reviews.CBind(dataframe.New(series.New(make([]float64, reviews.Nrow()), series.Float, "noise")))
	merged, err = Merge(features, metrics, extra)
	require.NoError(t, err)
	assert.Equal(t, TrainingColumns, merged.Names())

	// 没有交集时得到空表
	empty := features.Filter(dataframe.F{Colname: ColSellerID, Comparator: series.Eq, Comparando: "nobody"})
	merged, err = Merge(empty, metrics, reviews)
	require.NoError(t, err)
	assert.Equal(t, 0, merged.Nrow())

	_, err = Merge(features, metrics.Drop(ColSales), reviews)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "order_metrics", schemaErr.Table)
	assert.Equal(t, ColSales, schemaErr.Column)

	dupReviews := reviews.RBind(reviews.Subset([]int{0}))
	_, err = Merge(features, metrics, dupReviews)
	var dupErr *KeyUniquenessViolation
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "review_score", dupErr.Table)
	assert.Equal(t, "s1", dupErr.Value)
}

package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrderMetrics(t *testing.T) {
	s := newTestSeller(t, fixture(t))

	df, err := s.GetOrderMetrics()
	require.NoError(t, err)
	assert.Equal(t, OrderMetricColumns, df.Names())
	// s3 没有已送达且时间完整的订单，不出现
	assert.Equal(t, []string{"s1", "s2", "s4"}, df.Col(ColSellerID).Records())

	s1 := rowOf(t, df, "s1")
	assert.Equal(t, 2, s1[ColNOrders])
	assert.Equal(t, 2, s1[ColQuantity])
	assert.InDelta(t, 30.0, s1[ColSales], 1e-9)
	assert.InDelta(t, 4.0, s1[ColWaitTime], 1e-9)
	assert.InDelta(t, 1.25, s1[ColDelayToCarrier], 1e-9)
	assert.Equal(t, "2018-01-01 00:00:00", s1[ColDateFirstSale])
	assert.Equal(t, "2018-02-10 00:00:00", s1[ColDateLastSale])
	// 40 天向上取整为 2 个月
	assert.Equal(t, 2, s1[ColMonthsOnOlist])
	assert.InDelta(t, 1.0, s1[ColQuantityPerOrder], 1e-9)

	// 提前交给承运商，延误记为 0；只有一次销售，月数记为 1
	s2 := rowOf(t, df, "s2")
	assert.InDelta(t, 0.0, s2[ColDelayToCarrier], 1e-9)
	assert.Equal(t, 1, s2[ColMonthsOnOlist])
	assert.Equal(t, s2[ColDateFirstSale], s2[ColDateLastSale])

	s4 := rowOf(t, df, "s4")
	assert.InDelta(t, 5.0, s4[ColWaitTime], 1e-9)
	assert.InDelta(t, 1.0, s4[ColDelayToCarrier], 1e-9)
	assert.InDelta(t, 50.0, s4[ColSales], 1e-9)
}

func TestGetOrderMetricsMultipleItemsPerOrder(t *testing.T) {
	tables := fixture(t)
	tables.OrderItems = frame(t, [][]string{
		{"order_id", "product_id", "seller_id", "shipping_limit_date", "price"},
		{"o1", "p1", "s1", "2018-01-01 00:00:00", "10.0"},
		{"o1", "p1", "s1", "2018-01-01 00:00:00", "10.0"},
		{"o2", "p2", "s1", "2018-02-10 00:00:00", "20.0"},
	})
	s := newTestSeller(t, tables)

	df, err := s.GetOrderMetrics()
	require.NoError(t, err)
	s1 := rowOf(t, df, "s1")
	assert.Equal(t, 2, s1[ColNOrders])
	assert.Equal(t, 3, s1[ColQuantity])
	assert.InDelta(t, 40.0, s1[ColSales], 1e-9)
	assert.InDelta(t, 1.5, s1[ColQuantityPerOrder], 1e-9)
	// 等待时间按明细行平均：(3+3+5)/3
	assert.InDelta(t, 11.0/3, s1[ColWaitTime], 1e-9)
}

func TestGetOrderMetricsExcludesMissingDates(t *testing.T) {
	tables := fixture(t)
	tables.Orders = frame(t, [][]string{
		{"order_id", "order_status", "order_purchase_timestamp", "order_delivered_carrier_date", "order_delivered_customer_date"},
		{"o1", "delivered", "", "2018-01-02 12:00:00", "2018-01-04 00:00:00"},
		{"o2", "delivered", "2018-02-10 00:00:00", "2018-02-11 00:00:00", "2018-02-15 00:00:00"},
		{"o3", "delivered", "2018-03-01 10:00:00", "NaN", "2018-03-05 10:00:00"},
		// 未送达订单的时间格式错误不影响结果
		{"o4", "canceled", "not a date", "", ""},
	})
	s := newTestSeller(t, tables)

	df, err := s.GetOrderMetrics()
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, df.Col(ColSellerID).Records())
	s1 := rowOf(t, df, "s1")
	assert.Equal(t, 1, s1[ColNOrders])
	assert.InDelta(t, 5.0, s1[ColWaitTime], 1e-9)
}

func TestGetOrderMetricsExcelSerialDates(t *testing.T) {
	tables := fixture(t)
	tables.Orders = frame(t, [][]string{
		{"order_id", "order_status", "order_purchase_timestamp", "order_delivered_carrier_date", "order_delivered_customer_date"},
		{"o1", "delivered", "43101", "43102.5", "43104"},
	})
	s := newTestSeller(t, tables)

	df, err := s.GetOrderMetrics()
	require.NoError(t, err)
	s1 := rowOf(t, df, "s1")
	assert.InDelta(t, 3.0, s1[ColWaitTime], 1e-9)
	// 43102.5 即 2018-01-02 12:00:00
	assert.InDelta(t, 1.5, s1[ColDelayToCarrier], 1e-9)
}

func TestGetOrderMetricsErrors(t *testing.T) {
	t.Run("missing column", func(t *testing.T) {
		tables := fixture(t)
		tables.Orders = tables.Orders.Drop(ColDeliveredCarrier)
		_, err := newTestSeller(t, tables).GetOrderMetrics()
		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Equal(t, TableOrders, schemaErr.Table)
		assert.Equal(t, ColDeliveredCarrier, schemaErr.Column)
	})

	t.Run("bad order date", func(t *testing.T) {
		tables := fixture(t)
		tables.Orders = frame(t, [][]string{
			{"order_id", "order_status", "order_purchase_timestamp", "order_delivered_carrier_date", "order_delivered_customer_date"},
			{"o2", "delivered", "2018-02-10 00:00:00", "2018-02-11 00:00:00", "2018-02-15 00:00:00"},
			{"o1", "delivered", "31/31/2018", "2018-01-02 12:00:00", "2018-01-04 00:00:00"},
		})
		_, err := newTestSeller(t, tables).GetOrderMetrics()
		var dateErr *DateParseError
		require.ErrorAs(t, err, &dateErr)
		assert.Equal(t, TableOrders, dateErr.Table)
		assert.Equal(t, ColPurchaseTimestamp, dateErr.Column)
		assert.Equal(t, 1, dateErr.Row)
		assert.Equal(t, "31/31/2018", dateErr.Value)
	})

	t.Run("bad shipping date", func(t *testing.T) {
		tables := fixture(t)
		tables.OrderItems = frame(t, [][]string{
			{"order_id", "product_id", "seller_id", "shipping_limit_date", "price"},
			// o4 未送达，不会被解析
			{"o4", "p4", "s3", "whenever", "30.0"},
			{"o1", "p1", "s1", "2018-01-01 00:00:00", "10.0"},
			{"o2", "p2", "s1", "tomorrow", "20.0"},
		})
		_, err := newTestSeller(t, tables).GetOrderMetrics()
		var dateErr *DateParseError
		require.ErrorAs(t, err, &dateErr)
		assert.Equal(t, TableOrderItems, dateErr.Table)
		assert.Equal(t, ColShippingLimitDate, dateErr.Column)
		assert.Equal(t, 2, dateErr.Row)
	})

	t.Run("bad price", func(t *testing.T) {
		tables := fixture(t)
		tables.OrderItems = frame(t, [][]string{
			{"order_id", "product_id", "seller_id", "shipping_limit_date", "price"},
			{"o1", "p1", "s1", "2018-01-01 00:00:00", "ten"},
		})
		_, err := newTestSeller(t, tables).GetOrderMetrics()
		var valueErr *ValueError
		require.ErrorAs(t, err, &valueErr)
		assert.Equal(t, ColPrice, valueErr.Column)
		assert.Equal(t, 0, valueErr.Row)
	})
}

func TestMonthsOnOlist(t *testing.T) {
	cases := []struct {
		days float64
		want int
	}{
		{0, 1},
		{0.5, 1},
		{30, 1},
		{30.01, 2},
		{40, 2},
		{365, 13},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, MonthsOnOlist(c.days), "days=%v", c.days)
	}
}

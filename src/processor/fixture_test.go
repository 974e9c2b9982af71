package processor

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/require"
)

// frame 用字符串记录构造表，类型规则与文件读取保持一致
func frame(t *testing.T, records [][]string) dataframe.DataFrame {
	t.Helper()
	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(map[string]series.Type{
			ColPrice:       series.Float,
			ColReviewScore: series.Float,
		}),
	)
	require.NoError(t, df.Err)
	return df
}

// 卖家 s1: 两个已送达订单，价格 10/20，等待 3/5 天，发货期限相差 40 天
// 卖家 s2: 一个订单一件商品一条 1 分评价，提前交给承运商
// 卖家 s3: 有评价但没有已送达且时间完整的订单
// 卖家 s4: 有已送达订单但没有评价
func fixture(t *testing.T) Tables {
	t.Helper()
	return Tables{
		Sellers: frame(t, [][]string{
			{"seller_id", "seller_zip_code_prefix", "seller_city", "seller_state"},
			{"s1", "01001", "sao paulo", "SP"},
			{"s2", "20001", "rio de janeiro", "RJ"},
			{"s3", "80001", "curitiba", "PR"},
			{"s4", "30001", "belo horizonte", "MG"},
		}),
		Orders: frame(t, [][]string{
			{"order_id", "customer_id", "order_status", "order_purchase_timestamp", "order_approved_at",
				"order_delivered_carrier_date", "order_delivered_customer_date", "order_estimated_delivery_date"},
			{"o1", "c1", "delivered", "2018-01-01 00:00:00", "", "2018-01-02 12:00:00", "2018-01-04 00:00:00", ""},
			{"o2", "c2", "delivered", "2018-02-10 00:00:00", "", "2018-02-11 00:00:00", "2018-02-15 00:00:00", ""},
			{"o3", "c3", "delivered", "2018-03-01 10:00:00", "", "2018-03-02 10:00:00", "2018-03-05 10:00:00", ""},
			{"o4", "c4", "shipped", "2018-03-08 00:00:00", "", "2018-03-09 00:00:00", "", ""},
			{"o5", "c5", "delivered", "2018-03-09 00:00:00", "", "", "2018-03-15 00:00:00", ""},
			{"o6", "c6", "delivered", "2018-04-01 00:00:00", "", "2018-04-03 00:00:00", "2018-04-06 00:00:00", ""},
		}),
		OrderItems: frame(t, [][]string{
			{"order_id", "order_item_id", "product_id", "seller_id", "shipping_limit_date", "price", "freight_value"},
			{"o1", "1", "p1", "s1", "2018-01-01 00:00:00", "10.0", "1.0"},
			{"o2", "1", "p2", "s1", "2018-02-10 00:00:00", "20.0", "1.0"},
			{"o3", "1", "p3", "s2", "2018-03-05 00:00:00", "15.0", "1.0"},
			{"o4", "1", "p4", "s3", "2018-03-10 00:00:00", "30.0", "1.0"},
			{"o5", "1", "p5", "s3", "2018-03-11 00:00:00", "40.0", "1.0"},
			{"o6", "1", "p6", "s4", "2018-04-02 00:00:00", "50.0", "1.0"},
		}),
		OrderReviews: frame(t, [][]string{
			{"review_id", "order_id", "review_score", "review_comment_message"},
			{"r1", "o1", "5", "otimo"},
			{"r2", "o2", "4", ""},
			{"r3", "o3", "1", "ruim"},
			{"r4", "o4", "2", ""},
			{"r5", "o5", "5", ""},
			{"r9", "o99", "3", ""},
		}),
	}
}

// rowOf 取 seller_id 对应的一行，列名 -> 字符串值
func rowOf(t *testing.T, df dataframe.DataFrame, sellerID string) map[string]interface{} {
	t.Helper()
	for _, m := range df.Maps() {
		if m[ColSellerID] == sellerID {
			return m
		}
	}
	t.Fatalf("seller %s not found", sellerID)
	return nil
}

func newTestSeller(t *testing.T, tables Tables, opts ...Option) *Seller {
	t.Helper()
	s, err := NewSeller(tables, opts...)
	require.NoError(t, err)
	return s
}

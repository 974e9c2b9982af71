package processor

import (
	"fmt"

	"OlistTraining/src/utils"

	"github.com/go-gota/gota/dataframe"
)

// 源表名
const (
	TableSellers      = "sellers"
	TableOrders       = "orders"
	TableOrderItems   = "order_items"
	TableOrderReviews = "order_reviews"
)

// 源表列名
const (
	ColSellerID    = "seller_id"
	ColSellerCity  = "seller_city"
	ColSellerState = "seller_state"

	ColOrderID           = "order_id"
	ColOrderStatus       = "order_status"
	ColPurchaseTimestamp = "order_purchase_timestamp"
	ColDeliveredCustomer = "order_delivered_customer_date"
	ColDeliveredCarrier  = "order_delivered_carrier_date"

	ColProductID         = "product_id"
	ColPrice             = "price"
	ColShippingLimitDate = "shipping_limit_date"

	ColReviewScore = "review_score"
)

// 输出列名
const (
	ColNOrders          = "n_orders"
	ColQuantity         = "quantity"
	ColSales            = "sales"
	ColWaitTime         = "wait_time"
	ColDelayToCarrier   = "delay_to_carrier"
	ColDateFirstSale    = "date_first_sale"
	ColDateLastSale     = "date_last_sale"
	ColMonthsOnOlist    = "months_on_olist"
	ColQuantityPerOrder = "quantity_per_order"
	ColShareOfOneStars  = "share_of_one_stars"
	ColShareOfFiveStars = "share_of_five_stars"
)

const (
	StatusDelivered = "delivered"

	// 按30天折算一个月
	monthDays = 30
)

var (
	SellerFeatureColumns = []string{ColSellerID, ColSellerCity, ColSellerState}

	OrderMetricColumns = []string{
		ColSellerID, ColNOrders, ColQuantity, ColSales, ColWaitTime, ColDelayToCarrier,
		ColDateFirstSale, ColDateLastSale, ColMonthsOnOlist, ColQuantityPerOrder,
	}

	ReviewColumns = []string{ColSellerID, ColReviewScore, ColShareOfOneStars, ColShareOfFiveStars}

	// TrainingColumns 最终训练表的列，顺序固定
	TrainingColumns = []string{
		ColSellerID, ColSellerCity, ColSellerState,
		ColNOrders, ColQuantity, ColSales, ColWaitTime, ColDelayToCarrier,
		ColDateFirstSale, ColDateLastSale, ColMonthsOnOlist, ColQuantityPerOrder,
		ColReviewScore, ColShareOfOneStars, ColShareOfFiveStars,
	}

	// RequiredColumns 每张源表必须具备的列
	RequiredColumns = map[string][]string{
		TableSellers:      {ColSellerID, ColSellerCity, ColSellerState},
		TableOrders:       {ColOrderID, ColOrderStatus, ColPurchaseTimestamp, ColDeliveredCustomer, ColDeliveredCarrier},
		TableOrderItems:   {ColOrderID, ColSellerID, ColProductID, ColPrice, ColShippingLimitDate},
		TableOrderReviews: {ColOrderID, ColReviewScore},
	}
)

// Tables 四张原始表
type Tables struct {
	Sellers      dataframe.DataFrame
	Orders       dataframe.DataFrame
	OrderItems   dataframe.DataFrame
	OrderReviews dataframe.DataFrame
}

// GetData 让Tables本身可以作为数据源注入
func (t Tables) GetData() (Tables, error) {
	return t, nil
}

// ByName 按表名取表
func (t Tables) ByName(name string) (dataframe.DataFrame, bool) {
	switch name {
	case TableSellers:
		return t.Sellers, true
	case TableOrders:
		return t.Orders, true
	case TableOrderItems:
		return t.OrderItems, true
	case TableOrderReviews:
		return t.OrderReviews, true
	}
	return dataframe.DataFrame{}, false
}

// DataProvider 原始数据提供者
type DataProvider interface {
	GetData() (Tables, error)
}

// Logger 处理过程中使用的日志接口，storage.Logger 满足该接口
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warning(msg string)
	Error(msg string)
}

type nopLogger struct{}

func (nopLogger) Debug(string)   {}
func (nopLogger) Info(string)    {}
func (nopLogger) Warning(string) {}
func (nopLogger) Error(string)   {}

// Seller 卖家训练数据生成器
type Seller struct {
	data     Tables
	logger   Logger
	parallel bool
}

type Option func(*Seller)

// WithLogger 设置日志记录器
func WithLogger(l Logger) Option {
	return func(s *Seller) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithParallel 三个聚合是否并行计算
func WithParallel(parallel bool) Option {
	return func(s *Seller) {
		s.parallel = parallel
	}
}

// NewSeller 从数据源读取一次原始数据，之后只读使用
func NewSeller(provider DataProvider, opts ...Option) (*Seller, error) {
	if provider == nil {
		return nil, fmt.Errorf("data provider is nil")
	}
	data, err := provider.GetData()
	if err != nil {
		return nil, fmt.Errorf("加载原始数据失败: %w", err)
	}

	for _, name := range []string{TableSellers, TableOrders, TableOrderItems, TableOrderReviews} {
		df, _ := data.ByName(name)
		if df.Err != nil {
			return nil, fmt.Errorf("table %s: %w", name, df.Err)
		}
	}

	s := &Seller{
		data:     data,
		logger:   nopLogger{},
		parallel: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// requireColumns 检查表中是否有全部必需列
func requireColumns(table string, df dataframe.DataFrame, cols ...string) error {
	if missing := utils.MissingColumns(df, cols...); len(missing) > 0 {
		return &SchemaError{Table: table, Column: missing[0]}
	}
	return nil
}

package processor

import (
	"fmt"
	"math"
	"time"

	"OlistTraining/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 记录原始行号，出错时定位到源表
const colRow = "_row"

// GetOrderMetrics 按卖家统计物流和销售指标。
// 只使用已送达且承运商、客户送达时间都存在的订单。
func (s *Seller) GetOrderMetrics() (dataframe.DataFrame, error) {
	orders := s.data.Orders
	items := s.data.OrderItems
	if err := requireColumns(TableOrders, orders, RequiredColumns[TableOrders]...); err != nil {
		return dataframe.DataFrame{}, err
	}
	if err := requireColumns(TableOrderItems, items, RequiredColumns[TableOrderItems]...); err != nil {
		return dataframe.DataFrame{}, err
	}

	// 第一步：筛选已送达订单，并计算等待时间
	delivered, err := deliveredOrders(orders)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	s.logger.Debug(fmt.Sprintf("已送达且时间完整的订单: %d / %d", delivered.Nrow(), orders.Nrow()))

	// 第二步：订单明细与订单内连接
	joined := utils.InnerJoin(withRowNumber(items.Select(RequiredColumns[TableOrderItems])), delivered, ColOrderID)
	if joined.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("join order items: %w", joined.Err)
	}

	// 第三步：逐行计算承运商延误
	lines, err := itemLines(joined)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	// 第四步：按卖家命名聚合
	result, err := utils.Aggregate(lines, ColSellerID,
		utils.Agg{Name: ColNOrders, Type: series.Int, Fn: utils.NUnique(ColOrderID)},
		utils.Agg{Name: ColQuantity, Type: series.Int, Fn: utils.Count(ColProductID)},
		utils.Agg{Name: ColSales, Type: series.Float, Fn: utils.Sum(ColPrice)},
		utils.Agg{Name: ColWaitTime, Type: series.Float, Fn: utils.Mean(ColWaitTime)},
		utils.Agg{Name: ColDelayToCarrier, Type: series.Float, Fn: utils.Mean(ColDelayToCarrier)},
		utils.Agg{Name: ColDateFirstSale, Type: series.String, Fn: timeExtreme(ColShippingLimitDate, false)},
		utils.Agg{Name: ColDateLastSale, Type: series.String, Fn: timeExtreme(ColShippingLimitDate, true)},
	)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("aggregate order metrics: %w", err)
	}

	// 第五步：派生列
	derived, err := deriveSellerRates(result)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	s.logger.Debug(fmt.Sprintf("订单明细 %d 行，涉及卖家 %d 个", lines.Nrow(), derived.Nrow()))
	return derived, nil
}

// deliveredOrders 筛选 order_status=delivered 且两个送达时间都存在的订单，
// 返回 order_id、wait_time、承运商送达时间（统一格式）。
func deliveredOrders(orders dataframe.DataFrame) (dataframe.DataFrame, error) {
	notMissing := func(el series.Element) bool {
		return !utils.IsMissing(el)
	}

	filtered := withRowNumber(orders)
	if filtered.Nrow() > 0 {
		filtered = filtered.Filter(
			dataframe.F{
				Colname:    ColOrderStatus,
				Comparator: series.CompFunc,
				Comparando: func(el series.Element) bool {
					return el.String() == StatusDelivered
				}},
		).Filter(
			dataframe.F{Colname: ColDeliveredCustomer, Comparator: series.CompFunc, Comparando: notMissing},
		).Filter(
			dataframe.F{Colname: ColDeliveredCarrier, Comparator: series.CompFunc, Comparando: notMissing},
		)
		if filtered.Err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("filter delivered orders: %w", filtered.Err)
		}
	}

	n := filtered.Nrow()
	ids := make([]string, 0, n)
	waits := make([]float64, 0, n)
	carriers := make([]string, 0, n)

	idCol := filtered.Col(ColOrderID)
	purchaseCol := filtered.Col(ColPurchaseTimestamp)
	customerCol := filtered.Col(ColDeliveredCustomer)
	carrierCol := filtered.Col(ColDeliveredCarrier)
	rows := rowNumbers(filtered)
	for i := 0; i < n; i++ {
		purchase, ok, err := parseCell(purchaseCol, TableOrders, i, rows[i])
		if err != nil {
			return dataframe.DataFrame{}, err
		}
		customer, ok2, err := parseCell(customerCol, TableOrders, i, rows[i])
		if err != nil {
			return dataframe.DataFrame{}, err
		}
		carrier, ok3, err := parseCell(carrierCol, TableOrders, i, rows[i])
		if err != nil {
			return dataframe.DataFrame{}, err
		}
		// 任一时间缺失则整行排除
		if !ok || !ok2 || !ok3 {
			continue
		}

		ids = append(ids, idCol.Elem(i).String())
		waits = append(waits, utils.DaysBetween(customer, purchase))
		carriers = append(carriers, utils.FormatTime(carrier))
	}

	return dataframe.New(
		series.New(ids, series.String, ColOrderID),
		series.New(waits, series.Float, ColWaitTime),
		series.New(carriers, series.String, ColDeliveredCarrier),
	), nil
}

// itemLines 由连接后的明细计算每件商品的承运商延误（小于0记为0）
func itemLines(joined dataframe.DataFrame) (dataframe.DataFrame, error) {
	n := joined.Nrow()
	keep := make([]int, 0, n)
	prices := make([]float64, 0, n)
	delays := make([]float64, 0, n)
	shipping := make([]string, 0, n)

	priceCol := joined.Col(ColPrice)
	priceValues := priceCol.Float()
	carrierCol := joined.Col(ColDeliveredCarrier)
	limitCol := joined.Col(ColShippingLimitDate)
	rows := rowNumbers(joined)

	for i := 0; i < n; i++ {
		limit, ok, err := parseCell(limitCol, TableOrderItems, i, rows[i])
		if err != nil {
			return dataframe.DataFrame{}, err
		}
		if !ok {
			continue
		}

		if math.IsNaN(priceValues[i]) {
			return dataframe.DataFrame{}, &ValueError{
				Table:  TableOrderItems,
				Column: ColPrice,
				Row:    rows[i],
				Value:  priceCol.Elem(i).String(),
			}
		}

		carrier, err := time.Parse(utils.TimeLayout, carrierCol.Elem(i).String())
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("carrier date at row %d: %w", i, err)
		}

		keep = append(keep, i)
		prices = append(prices, priceValues[i])
		delays = append(delays, math.Max(0, utils.DaysBetween(carrier, limit)))
		shipping = append(shipping, utils.FormatTime(limit))
	}

	kept := joined.Subset(keep)
	lines := dataframe.New(
		kept.Col(ColOrderID),
		kept.Col(ColSellerID),
		kept.Col(ColProductID),
		series.New(prices, series.Float, ColPrice),
		kept.Col(ColWaitTime),
		series.New(delays, series.Float, ColDelayToCarrier),
		series.New(shipping, series.String, ColShippingLimitDate),
	)
	return lines, lines.Err
}

// deriveSellerRates 计算 months_on_olist 和 quantity_per_order
func deriveSellerRates(result dataframe.DataFrame) (dataframe.DataFrame, error) {
	n := result.Nrow()
	months := make([]int, n)
	perOrder := make([]float64, n)

	firsts := result.Col(ColDateFirstSale).Records()
	lasts := result.Col(ColDateLastSale).Records()
	nOrders, err := result.Col(ColNOrders).Int()
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("n_orders: %w", err)
	}
	quantity, err := result.Col(ColQuantity).Int()
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("quantity: %w", err)
	}

	for i := 0; i < n; i++ {
		first, err := time.Parse(utils.TimeLayout, firsts[i])
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("date_first_sale: %w", err)
		}
		last, err := time.Parse(utils.TimeLayout, lasts[i])
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("date_last_sale: %w", err)
		}
		months[i] = MonthsOnOlist(utils.DaysBetween(last, first))
		perOrder[i] = float64(quantity[i]) / float64(nOrders[i])
	}

	out := result.CBind(dataframe.New(
		series.New(months, series.Int, ColMonthsOnOlist),
		series.New(perOrder, series.Float, ColQuantityPerOrder),
	))
	return out, out.Err
}

// MonthsOnOlist 天数按30天向上取整为月数，0个月记为1
func MonthsOnOlist(spanDays float64) int {
	months := int(math.Ceil(spanDays / monthDays))
	if months == 0 {
		return 1
	}
	return months
}

// timeExtreme 取分组内最早或最晚的时间
func timeExtreme(col string, latest bool) utils.AggFunc {
	return func(g dataframe.DataFrame) (interface{}, error) {
		var best time.Time
		for i, v := range g.Col(col).Records() {
			t, err := time.Parse(utils.TimeLayout, v)
			if err != nil {
				return nil, err
			}
			if i == 0 || (latest && t.After(best)) || (!latest && t.Before(best)) {
				best = t
			}
		}
		return utils.FormatTime(best), nil
	}
}

// parseCell 按统一规则解析时间，出错时给出源表行号
func parseCell(col series.Series, table string, i, row int) (time.Time, bool, error) {
	el := col.Elem(i)
	t, ok, err := utils.ParseTimestamp(el)
	if err != nil {
		return time.Time{}, false, &DateParseError{
			Table:  table,
			Column: col.Name,
			Row:    row,
			Value:  el.String(),
			Err:    err,
		}
	}
	return t, ok, nil
}

func withRowNumber(df dataframe.DataFrame) dataframe.DataFrame {
	rows := make([]int, df.Nrow())
	for i := range rows {
		rows[i] = i
	}
	return df.CBind(dataframe.New(series.New(rows, series.Int, colRow)))
}

// rowNumbers 取出源表行号，没有行号列时用当前行号
func rowNumbers(df dataframe.DataFrame) []int {
	if utils.HasColumn(df, colRow) {
		if rows, err := df.Col(colRow).Int(); err == nil {
			return rows
		}
	}
	rows := make([]int, df.Nrow())
	for i := range rows {
		rows[i] = i
	}
	return rows
}

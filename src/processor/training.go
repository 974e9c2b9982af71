package processor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"OlistTraining/src/utils"

	"github.com/go-gota/gota/dataframe"
	"golang.org/x/sync/errgroup"
)

// Report 一次运行各阶段的行数
type Report struct {
	Sellers  int
	Metrics  int
	Reviews  int
	Rows     int
	Columns  int
	Duration time.Duration
}

func (r Report) String() string {
	return fmt.Sprintf("训练表 %d 行 %d 列（卖家 %d，订单指标 %d，评价 %d），耗时 %v",
		r.Rows, r.Columns, r.Sellers, r.Metrics, r.Reviews, r.Duration.Round(time.Millisecond))
}

// Result 训练表和运行报告
type Result struct {
	Table  dataframe.DataFrame
	Report Report
}

// GetTrainingData 合并三个聚合结果，得到每个卖家一行、15列的训练表
func (s *Seller) GetTrainingData() (dataframe.DataFrame, error) {
	res, err := s.Run()
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return res.Table, nil
}

// Run 计算三个聚合并合并，同时返回各阶段行数
func (s *Seller) Run() (Result, error) {
	start := time.Now()

	features, metrics, reviews, err := s.buildAggregates()
	if err != nil {
		s.logger.Error("聚合计算失败: " + err.Error())
		return Result{}, err
	}

	table, err := Merge(features, metrics, reviews)
	if err != nil {
		s.logger.Error("合并训练表失败: " + err.Error())
		return Result{}, err
	}

	report := Report{
		Sellers:  features.Nrow(),
		Metrics:  metrics.Nrow(),
		Reviews:  reviews.Nrow(),
		Rows:     table.Nrow(),
		Columns:  table.Ncol(),
		Duration: time.Since(start),
	}
	s.logger.Info(report.String())
	return Result{Table: table, Report: report}, nil
}

// buildAggregates 三个聚合互不依赖，可以并行
func (s *Seller) buildAggregates() (features, metrics, reviews dataframe.DataFrame, err error) {
	if !s.parallel {
		if features, err = s.GetSellerFeatures(); err != nil {
			return
		}
		if metrics, err = s.GetOrderMetrics(); err != nil {
			return
		}
		reviews, err = s.GetReviewScore()
		return
	}

	var g errgroup.Group
	g.Go(func() error {
		var e error
		features, e = s.GetSellerFeatures()
		return e
	})
	g.Go(func() error {
		var e error
		metrics, e = s.GetOrderMetrics()
		return e
	})
	g.Go(func() error {
		var e error
		reviews, e = s.GetReviewScore()
		return e
	})
	err = g.Wait()
	return
}

// Merge 按 features ⋈ metrics ⋈ reviews 的顺序在 seller_id 上内连接。
// 连接前检查每张表 seller_id 唯一，连接后检查行数和列集合。
func Merge(features, metrics, reviews dataframe.DataFrame) (dataframe.DataFrame, error) {
	inputs := []struct {
		name string
		df   dataframe.DataFrame
		cols []string
	}{
		{"seller_features", features, SellerFeatureColumns},
		{"order_metrics", metrics, OrderMetricColumns},
		{"review_score", reviews, ReviewColumns},
	}

	minRows := -1
	for _, in := range inputs {
		if in.df.Err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("%s: %w", in.name, in.df.Err)
		}
		if err := requireColumns(in.name, in.df, in.cols...); err != nil {
			return dataframe.DataFrame{}, err
		}
		if err := assertUnique(in.name, in.df, ColSellerID); err != nil {
			return dataframe.DataFrame{}, err
		}
		if minRows < 0 || in.df.Nrow() < minRows {
			minRows = in.df.Nrow()
		}
	}

	merged := utils.InnerJoin(features.Select(SellerFeatureColumns), metrics.Select(OrderMetricColumns), ColSellerID)
	merged = utils.InnerJoin(merged, reviews.Select(ReviewColumns), ColSellerID)
	if merged.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("merge training data: %w", merged.Err)
	}

	if merged.Nrow() > minRows {
		return dataframe.DataFrame{}, &JoinInvariantError{
			Reason: fmt.Sprintf("merged rows %d exceed smallest input %d", merged.Nrow(), minRows),
		}
	}
	if names := merged.Names(); strings.Join(names, ",") != strings.Join(TrainingColumns, ",") {
		return dataframe.DataFrame{}, &JoinInvariantError{
			Reason: fmt.Sprintf("unexpected columns %v", names),
		}
	}
	return merged, nil
}

// assertUnique key列出现重复时返回最小的重复值，保证错误信息稳定
func assertUnique(table string, df dataframe.DataFrame, key string) error {
	dups := utils.DuplicateKeys(df, key)
	if len(dups) == 0 {
		return nil
	}
	values := make([]string, 0, len(dups))
	for v := range dups {
		values = append(values, v)
	}
	sort.Strings(values)
	return &KeyUniquenessViolation{Table: table, Key: key, Value: values[0], Count: dups[values[0]]}
}

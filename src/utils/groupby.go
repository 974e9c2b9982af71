package utils

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// AggFunc 对一个分组计算单个值
type AggFunc func(group dataframe.DataFrame) (interface{}, error)

// Agg 命名聚合，输出列名、类型和聚合函数一起声明
type Agg struct {
	Name string
	Type series.Type
	Fn   AggFunc
}

// GroupIndices 按key列分组，返回排序后的key和每组的行号
func GroupIndices(df dataframe.DataFrame, key string) ([]string, map[string][]int) {
	groups := make(map[string][]int)
	for i, k := range df.Col(key).Records() {
		groups[k] = append(groups[k], i)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, groups
}

// Aggregate 按key分组后依次执行命名聚合，结果按key升序排列
func Aggregate(df dataframe.DataFrame, key string, aggs ...Agg) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return df, df.Err
	}
	if !HasColumn(df, key) {
		return dataframe.DataFrame{}, fmt.Errorf("aggregate: can't find column name: %s", key)
	}

	keys, groups := GroupIndices(df, key)
	values := make([][]interface{}, len(aggs))
	for i := range values {
		values[i] = make([]interface{}, 0, len(keys))
	}

	for _, k := range keys {
		group := df.Subset(groups[k])
		if group.Err != nil {
			return dataframe.DataFrame{}, group.Err
		}
		for i, agg := range aggs {
			v, err := agg.Fn(group)
			if err != nil {
				return dataframe.DataFrame{}, fmt.Errorf("aggregate %s (%s=%s): %w", agg.Name, key, k, err)
			}
			values[i] = append(values[i], v)
		}
	}

	cols := make([]series.Series, 0, len(aggs)+1)
	cols = append(cols, series.New(keys, series.String, key))
	for i, agg := range aggs {
		cols = append(cols, series.New(values[i], agg.Type, agg.Name))
	}

	out := dataframe.New(cols...)
	return out, out.Err
}

// Mean 列均值，忽略NaN
func Mean(col string) AggFunc {
	return func(g dataframe.DataFrame) (interface{}, error) {
		xs := dropNaN(g.Col(col).Float())
		if len(xs) == 0 {
			return math.NaN(), nil
		}
		return stat.Mean(xs, nil), nil
	}
}

// Sum 列求和，忽略NaN
func Sum(col string) AggFunc {
	return func(g dataframe.DataFrame) (interface{}, error) {
		return floats.Sum(dropNaN(g.Col(col).Float())), nil
	}
}

// Count 非缺失值个数，空字符串也算缺失
func Count(col string) AggFunc {
	return func(g dataframe.DataFrame) (interface{}, error) {
		s := g.Col(col)
		n := 0
		for i := 0; i < s.Len(); i++ {
			if !IsMissing(s.Elem(i)) {
				n++
			}
		}
		return n, nil
	}
}

// NUnique 非缺失值去重个数
func NUnique(col string) AggFunc {
	return func(g dataframe.DataFrame) (interface{}, error) {
		s := g.Col(col)
		seen := make(map[string]struct{}, s.Len())
		for i := 0; i < s.Len(); i++ {
			if el := s.Elem(i); !IsMissing(el) {
				seen[el.String()] = struct{}{}
			}
		}
		return len(seen), nil
	}
}

func dropNaN(xs []float64) []float64 {
	out := xs[:0]
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// DropDuplicates 按指定列去重，保留第一次出现的行
func DropDuplicates(df dataframe.DataFrame, cols ...string) dataframe.DataFrame {
	if df.Err != nil || df.Nrow() == 0 {
		return df
	}
	records := make([][]string, len(cols))
	for i, c := range cols {
		records[i] = df.Col(c).Records()
	}

	seen := make(map[string]struct{}, df.Nrow())
	keep := make([]int, 0, df.Nrow())
	for row := 0; row < df.Nrow(); row++ {
		key := ""
		for i := range cols {
			// \x1f 作为分隔符，避免拼接后产生歧义
			key += records[i][row] + "\x1f"
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, row)
	}
	if len(keep) == df.Nrow() {
		return df.Copy()
	}
	return df.Subset(keep)
}

// DuplicateKeys 统计key列中出现多于一次的值
func DuplicateKeys(df dataframe.DataFrame, key string) map[string]int {
	counts := make(map[string]int, df.Nrow())
	for _, k := range df.Col(key).Records() {
		counts[k]++
	}
	dups := make(map[string]int)
	for k, n := range counts {
		if n > 1 {
			dups[k] = n
		}
	}
	return dups
}

// InnerJoin 基于哈希的内连接，行顺序跟随左表。
// 结果列为：左表全部列 + 右表除key外的列。
func InnerJoin(left, right dataframe.DataFrame, key string) dataframe.DataFrame {
	if left.Err != nil {
		return left
	}
	if right.Err != nil {
		return right
	}
	if !HasColumn(left, key) || !HasColumn(right, key) {
		return dataframe.DataFrame{Err: fmt.Errorf("inner join: can't find key column: %s", key)}
	}

	positions := make(map[string][]int, right.Nrow())
	for j, k := range right.Col(key).Records() {
		positions[k] = append(positions[k], j)
	}

	var li, ri []int
	for i, k := range left.Col(key).Records() {
		for _, j := range positions[k] {
			li = append(li, i)
			ri = append(ri, j)
		}
	}

	joined := left.Subset(li)
	if right.Ncol() == 1 {
		return joined
	}
	return joined.CBind(right.Subset(ri).Drop(key))
}

package utils

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// TimeLayout 统一的时间格式，所有日期列解析后都以此格式保存
const TimeLayout = "2006-01-02 15:04:05"

// Day 一天的时长
const Day = 24 * time.Hour

// 可以接受的时间格式
var timeLayouts = []string{
	TimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01-02-2006 15:04:05",
}

// excel 序列号形式的日期
var excelSerial = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	return Contains(df.Names(), name)
}

// MissingColumns 返回df中缺失的列名，按传入顺序
func MissingColumns(df dataframe.DataFrame, names ...string) []string {
	var missing []string
	existing := df.Names()
	for _, n := range names {
		if !Contains(existing, n) {
			missing = append(missing, n)
		}
	}
	return missing
}

// IsMissing 空字符串和NA都视为缺失
func IsMissing(el series.Element) bool {
	return el.IsNA() || strings.TrimSpace(el.String()) == ""
}

// ParseTimestamp 解析单个时间元素。
// 缺失值返回 ok=false 且 err=nil；有值但无法解析时返回错误。
func ParseTimestamp(el series.Element) (t time.Time, ok bool, err error) {
	if IsMissing(el) {
		return time.Time{}, false, nil
	}
	t, err = ParseTime(el.String())
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// ParseTime 依次尝试所有支持的格式，纯数字按excel序列号处理
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if excelSerial.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil {
			return ExcelToTime(f), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析时间 %q", s)
}

// ExcelToTime excel时间序列号转time.Time
func ExcelToTime(excelDays float64) time.Time {
	// excel 1900 闰年错误：60 之后的日期多算了一天
	if excelDays >= 60 {
		excelDays -= 1
	}
	base := time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)
	days := int(excelDays)
	fraction := excelDays - float64(days)

	return base.AddDate(0, 0, days).
		Add(time.Duration(math.Round(86400*fraction)) * time.Second)
}

// FormatTime 按统一格式输出
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// DaysBetween 计算 end-start 的天数（带小数）
func DaysBetween(end, start time.Time) float64 {
	return float64(end.Sub(start)) / float64(Day)
}

// SubSeriesDays 计算两列时间差（天），结果作为新列加入DataFrame。
// 两列都必须是已经统一格式化且无缺失的时间。
func SubSeriesDays(df dataframe.DataFrame, colEnd, colStart, colOut string) (dataframe.DataFrame, error) {
	col1 := df.Col(colEnd)
	col2 := df.Col(colStart)

	// 预分配切片容量
	durations := make([]float64, 0, df.Nrow())

	for i := 0; i < df.Nrow(); i++ {
		endTime, err := time.Parse(TimeLayout, col1.Elem(i).String())
		if err != nil {
			return df, fmt.Errorf("failed to parse end time at row %d: %w", i, err)
		}

		startTime, err := time.Parse(TimeLayout, col2.Elem(i).String())
		if err != nil {
			return df, fmt.Errorf("failed to parse start time at row %d: %w", i, err)
		}

		durations = append(durations, DaysBetween(endTime, startTime))
	}

	return df.CBind(dataframe.New(series.New(durations, series.Float, colOut))), nil
}

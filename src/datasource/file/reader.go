// reader.go
package file

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"OlistTraining/src/processor"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// 数据源格式
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// DefaultFiles Olist 公开数据集的默认文件名
var DefaultFiles = map[string]string{
	processor.TableSellers:      "olist_sellers_dataset.csv",
	processor.TableOrders:       "olist_orders_dataset.csv",
	processor.TableOrderItems:   "olist_order_items_dataset.csv",
	processor.TableOrderReviews: "olist_order_reviews_dataset.csv",
}

// tableNames 四张表的读取顺序
var tableNames = []string{
	processor.TableSellers,
	processor.TableOrders,
	processor.TableOrderItems,
	processor.TableOrderReviews,
}

// 数值列，其余列一律按字符串读取，避免 zip 前缀等被当作数字
var numericColumns = map[string]series.Type{
	processor.ColPrice:       series.Float,
	processor.ColReviewScore: series.Float,
}

// Config 配置结构体
type Config struct {
	Dir      string                       // 数据目录
	Format   string                       // csv 或 xlsx
	Workbook string                       // xlsx 文件名，每张表一个工作表
	Encoding string                       // csv 编码
	Files    map[string]string            // 表名 -> csv 文件名，未配置的用默认名
	Aliases  map[string]map[string]string // 表名 -> 原始列名 -> 标准列名
}

// Provider 从文件读取四张原始表，实现 processor.DataProvider
type Provider struct {
	config Config
}

func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Format == "" {
		cfg.Format = FormatCSV
	}
	if cfg.Format != FormatCSV && cfg.Format != FormatXLSX {
		return nil, fmt.Errorf("unsupported source format: %s", cfg.Format)
	}
	if cfg.Format == FormatXLSX && cfg.Workbook == "" {
		return nil, fmt.Errorf("xlsx source needs a workbook name")
	}
	if _, err := decoder(cfg.Encoding); err != nil {
		return nil, err
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s exists but is not a directory", cfg.Dir)
	}
	return &Provider{config: cfg}, nil
}

// Paths 返回会被读取的文件，watch 模式用来过滤事件
func (p *Provider) Paths() []string {
	if p.config.Format == FormatXLSX {
		return []string{filepath.Join(p.config.Dir, p.config.Workbook)}
	}
	paths := make([]string, 0, len(tableNames))
	for _, name := range tableNames {
		paths = append(paths, p.tablePath(name))
	}
	return paths
}

func (p *Provider) tablePath(table string) string {
	name := p.config.Files[table]
	if name == "" {
		name = DefaultFiles[table]
	}
	return filepath.Join(p.config.Dir, name)
}

// GetData 读取四张表
func (p *Provider) GetData() (processor.Tables, error) {
	var (
		tables processor.Tables
		read   func(table string) (dataframe.DataFrame, error)
	)

	switch p.config.Format {
	case FormatXLSX:
		xlFile, err := xlsx.OpenFile(filepath.Join(p.config.Dir, p.config.Workbook))
		if err != nil {
			return tables, fmt.Errorf("xlsx open file false: %w", err)
		}
		read = func(table string) (dataframe.DataFrame, error) {
			sheet, ok := xlFile.Sheet[table]
			if !ok {
				return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 不存在", table)
			}
			return toDataFrame(sheetRecords(sheet), p.config.Aliases[table])
		}
	default:
		read = func(table string) (dataframe.DataFrame, error) {
			records, err := ReadCSV(p.tablePath(table), p.config.Encoding)
			if err != nil {
				return dataframe.DataFrame{}, err
			}
			return toDataFrame(records, p.config.Aliases[table])
		}
	}

	targets := map[string]*dataframe.DataFrame{
		processor.TableSellers:      &tables.Sellers,
		processor.TableOrders:       &tables.Orders,
		processor.TableOrderItems:   &tables.OrderItems,
		processor.TableOrderReviews: &tables.OrderReviews,
	}
	for _, name := range tableNames {
		df, err := read(name)
		if err != nil {
			return processor.Tables{}, fmt.Errorf("读取 %s 失败: %w", name, err)
		}
		*targets[name] = df
	}
	return tables, nil
}

// decoder 根据名称返回字符集解码器，utf-8 时去掉 BOM
func decoder(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM, nil
	case "gbk":
		return simplifiedchinese.GBK, nil
	case "gb18030":
		return simplifiedchinese.GB18030, nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", name)
	}
}

// ReadCSV 按指定编码读取csv，返回包含表头的全部记录
func ReadCSV(filePath, charset string) ([][]string, error) {
	enc, err := decoder(charset)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	return readRecords(transform.NewReader(bufio.NewReader(f), enc.NewDecoder()))
}

func readRecords(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	// 评论字段经常跨行或字段数不一致，交给 toDataFrame 补齐
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return records, nil
}

// sheetRecords 将xlsx.Sheet转换为字符串记录，短行补空
func sheetRecords(sheet *xlsx.Sheet) [][]string {
	if len(sheet.Rows) == 0 {
		return nil
	}

	width := 0
	for _, row := range sheet.Rows {
		if row != nil && len(row.Cells) > width {
			width = len(row.Cells)
		}
	}

	records := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		record := make([]string, width)
		if row != nil {
			for i, cell := range row.Cells {
				if cell != nil {
					record[i] = cell.Value
				}
			}
		}
		records = append(records, record)
	}
	return records
}

// toDataFrame 规范表头并按列类型构造 DataFrame
func toDataFrame(records [][]string, aliases map[string]string) (dataframe.DataFrame, error) {
	if len(records) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("empty table")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		h = strings.TrimSpace(h)
		if canonical, ok := aliases[h]; ok {
			h = canonical
		}
		header[i] = h
	}

	// 补齐或截断每一行到表头宽度
	normalized := make([][]string, 0, len(records))
	normalized = append(normalized, header)
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make([]string, len(header))
		copy(row, rec)
		normalized = append(normalized, row)
	}

	types := make(map[string]series.Type)
	for _, h := range header {
		if t, ok := numericColumns[h]; ok {
			types[h] = t
		}
	}

	// 只有表头时 LoadRecords 会报空表，直接按列构造
	if len(normalized) == 1 {
		cols := make([]series.Series, len(header))
		for i, h := range header {
			t, ok := types[h]
			if !ok {
				t = series.String
			}
			cols[i] = series.New([]string{}, t, h)
		}
		df := dataframe.New(cols...)
		return df, df.Err
	}

	df := dataframe.LoadRecords(normalized,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(types),
	)
	return df, df.Err
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

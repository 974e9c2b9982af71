package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"OlistTraining/src/processor"
	"OlistTraining/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"github.com/xuri/excelize/v2"
)

// SheetName 导出的工作表名
const SheetName = "training"

// TrainingRecord 训练表一行的 parquet 结构
type TrainingRecord struct {
	SellerID         string  `parquet:"name=seller_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	SellerCity       string  `parquet:"name=seller_city, type=BYTE_ARRAY, convertedtype=UTF8"`
	SellerState      string  `parquet:"name=seller_state, type=BYTE_ARRAY, convertedtype=UTF8"`
	NOrders          int64   `parquet:"name=n_orders, type=INT64"`
	Quantity         int64   `parquet:"name=quantity, type=INT64"`
	Sales            float64 `parquet:"name=sales, type=DOUBLE"`
	WaitTime         float64 `parquet:"name=wait_time, type=DOUBLE"`
	DelayToCarrier   float64 `parquet:"name=delay_to_carrier, type=DOUBLE"`
	DateFirstSale    string  `parquet:"name=date_first_sale, type=BYTE_ARRAY, convertedtype=UTF8"`
	DateLastSale     string  `parquet:"name=date_last_sale, type=BYTE_ARRAY, convertedtype=UTF8"`
	MonthsOnOlist    int32   `parquet:"name=months_on_olist, type=INT32"`
	QuantityPerOrder float64 `parquet:"name=quantity_per_order, type=DOUBLE"`
	ReviewScore      float64 `parquet:"name=review_score, type=DOUBLE"`
	ShareOfOneStars  float64 `parquet:"name=share_of_one_stars, type=DOUBLE"`
	ShareOfFiveStars float64 `parquet:"name=share_of_five_stars, type=DOUBLE"`
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("%s exists but is not a directory", dir)
	}
	return os.MkdirAll(dir, 0755)
}

// SaveToExcel 将DataFrame保存为Excel文件
func SaveToExcel(df dataframe.DataFrame, filePath string) error {
	if err := ensureParent(filePath); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("重命名工作表失败: %w", err)
	}

	// 写入列名
	colNames := df.Names()
	for i, name := range colNames {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(SheetName, cell, name)
	}

	// 写入数据，列只取一次
	for colIdx, colName := range colNames {
		col := df.Col(colName)
		for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
			el := col.Elem(rowIdx)
			if el.IsNA() {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(SheetName, cell, el.Val()); err != nil {
				return fmt.Errorf("写入单元格 %s 失败: %w", cell, err)
			}
		}
	}

	// 保存文件
	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

// SaveToCSV 将DataFrame保存为CSV文件，第一行为列名
func SaveToCSV(df dataframe.DataFrame, filePath string) error {
	if err := ensureParent(filePath); err != nil {
		return err
	}
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("创建CSV文件失败: %w", err)
	}
	defer file.Close()

	if err := df.WriteCSV(file); err != nil {
		return fmt.Errorf("写入CSV文件失败: %w", err)
	}
	return file.Close()
}

// SaveToParquet 将训练表保存为parquet文件
func SaveToParquet(df dataframe.DataFrame, filePath string) error {
	records, err := trainingRecords(df)
	if err != nil {
		return err
	}
	if err := ensureParent(filePath); err != nil {
		return err
	}

	fw, err := local.NewLocalFileWriter(filePath)
	if err != nil {
		return fmt.Errorf("创建parquet文件失败: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(TrainingRecord), 4)
	if err != nil {
		return fmt.Errorf("创建parquet writer失败: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i := range records {
		if err := pw.Write(records[i]); err != nil {
			return fmt.Errorf("写入第 %d 行失败: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("parquet WriteStop 失败: %w", err)
	}
	return nil
}

// trainingRecords 按列名取值，列顺序不影响结果
func trainingRecords(df dataframe.DataFrame) ([]TrainingRecord, error) {
	if df.Err != nil {
		return nil, df.Err
	}
	if missing := utils.MissingColumns(df, processor.TrainingColumns...); len(missing) > 0 {
		return nil, fmt.Errorf("训练表缺少列 %v", missing)
	}

	str := func(name string) []string { return df.Col(name).Records() }
	flt := func(name string) []float64 { return df.Col(name).Float() }
	ints := func(name string) ([]int, error) {
		v, err := df.Col(name).Int()
		if err != nil {
			return nil, fmt.Errorf("列 %s 不是整数: %w", name, err)
		}
		return v, nil
	}

	nOrders, err := ints(processor.ColNOrders)
	if err != nil {
		return nil, err
	}
	quantity, err := ints(processor.ColQuantity)
	if err != nil {
		return nil, err
	}
	months, err := ints(processor.ColMonthsOnOlist)
	if err != nil {
		return nil, err
	}

	var (
		ids       = str(processor.ColSellerID)
		cities    = str(processor.ColSellerCity)
		states    = str(processor.ColSellerState)
		firsts    = str(processor.ColDateFirstSale)
		lasts     = str(processor.ColDateLastSale)
		sales     = flt(processor.ColSales)
		waits     = flt(processor.ColWaitTime)
		delays    = flt(processor.ColDelayToCarrier)
		perOrder  = flt(processor.ColQuantityPerOrder)
		scores    = flt(processor.ColReviewScore)
		oneStars  = flt(processor.ColShareOfOneStars)
		fiveStars = flt(processor.ColShareOfFiveStars)
	)

	records := make([]TrainingRecord, df.Nrow())
	for i := range records {
		records[i] = TrainingRecord{
			SellerID:         ids[i],
			SellerCity:       cities[i],
			SellerState:      states[i],
			NOrders:          int64(nOrders[i]),
			Quantity:         int64(quantity[i]),
			Sales:            sales[i],
			WaitTime:         waits[i],
			DelayToCarrier:   delays[i],
			DateFirstSale:    firsts[i],
			DateLastSale:     lasts[i],
			MonthsOnOlist:    int32(months[i]),
			QuantityPerOrder: perOrder[i],
			ReviewScore:      scores[i],
			ShareOfOneStars:  oneStars[i],
			ShareOfFiveStars: fiveStars[i],
		}
	}
	return records, nil
}

// Export 按格式导出到 filePath
func Export(df dataframe.DataFrame, format, filePath string) error {
	switch format {
	case "xlsx":
		return SaveToExcel(df, filePath)
	case "csv":
		return SaveToCSV(df, filePath)
	case "parquet":
		return SaveToParquet(df, filePath)
	default:
		return fmt.Errorf("未知导出格式: %s", format)
	}
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// 运行模式
const (
	ModeOnce  = "once"
	ModeCron  = "cron"
	ModeWatch = "watch"
)

// 数据源格式
const (
	SourceCSV  = "csv"
	SourceXLSX = "xlsx"
)

// 输出格式
const (
	FormatXLSX    = "xlsx"
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// 环境变量覆盖
const (
	EnvDataDir   = "OLIST_DATA_DIR"
	EnvOutputDir = "OLIST_OUTPUT_DIR"
	EnvMode      = "OLIST_MODE"
	EnvWebhook   = "OLIST_WEBHOOK"
	EnvSecret    = "OLIST_WEBHOOK_SECRET"
	EnvMailPass  = "OLIST_MAIL_PASSWORD"
)

// SourceConfig 原始数据读取方式
type SourceConfig struct {
	Format   string            `json:"format"`   // csv 或 xlsx
	Workbook string            `json:"workbook"` // xlsx 文件名
	Encoding string            `json:"encoding"` // csv 编码: utf-8 / gbk / gb18030 / latin1
	Files    map[string]string `json:"files"`    // 表名 -> csv 文件名
}

// OutputConfig 训练表导出
type OutputConfig struct {
	Dir     string   `json:"dir"`
	Name    string   `json:"name"`
	Formats []string `json:"formats"`
}

// ScheduleConfig 调度方式
type ScheduleConfig struct {
	Mode     string   `json:"mode"`
	CronSpec string   `json:"cron_spec"`
	Debounce Duration `json:"debounce"` // watch 模式下合并连续写入事件
}

// PushConfig 钉钉机器人
type PushConfig struct {
	Webhook       string   `json:"webhook"`
	Secret        string   `json:"secret"`
	Retries       int      `json:"retries"`
	RetryInterval Duration `json:"retry_interval"`
	Timeout       Duration `json:"timeout"`
}

// MailConfig 从邮箱拉取数据附件，并把训练表发回
type MailConfig struct {
	Server     string   `json:"server"`      // IMAP服务器(如"imap.qq.com:993")，为空时不收邮件
	Username   string   `json:"username"`    // 邮箱账号
	Password   string   `json:"password"`    // 密码/授权码
	Subject    string   `json:"subject"`     // 目标邮件主题关键词
	SMTPServer string   `json:"smtp_server"` // 为空时不发送训练表
	To         []string `json:"to"`
}

// Config 结构体定义了应用程序的配置结构
type Config struct {
	DataDir    string         `json:"data_dir"` // 原始数据目录
	Source     SourceConfig   `json:"source"`
	Output     OutputConfig   `json:"output"`
	Schedule   ScheduleConfig `json:"schedule"`
	Sequential bool           `json:"sequential"` // 三个聚合顺序执行
	LogName    string         `json:"log_name"`
	LogMaxSize string         `json:"log_max_size"`
	Push       PushConfig     `json:"push"`
	Mail       MailConfig     `json:"mail"`
}

// DataConfig 列名映射：表名 -> 原始列名 -> 标准列名
type DataConfig struct {
	Columns map[string]map[string]string `json:"columns"`
}

var mu sync.RWMutex

// LoadConfig 并发读取两个配置文件，再用 .env 和环境变量覆盖
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	cfg, dcfg, err := loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	if err != nil {
		return nil, nil, err
	}

	if err := loadEnv(jsonFolder); err != nil {
		return nil, nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, dcfg, nil
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	return waitForResults(cfgChan, dcfgChan, errChan)
}

// loadEnv 读取配置目录下的 .env，文件不存在时忽略
func loadEnv(jsonFolder string) error {
	envFile := filepath.Join(jsonFolder, ".env")
	if _, err := os.Stat(envFile); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("读取 %s 失败: %w", envFile, err)
	}
	return nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	if dcfg.Columns == nil {
		dcfg.Columns = make(map[string]map[string]string)
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg  *Config
		dcfg *DataConfig
		errs []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, nil, combineErrors(errs)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv(EnvMode); v != "" {
		c.Schedule.Mode = v
	}
	if v := os.Getenv(EnvWebhook); v != "" {
		c.Push.Webhook = v
	}
	if v := os.Getenv(EnvSecret); v != "" {
		c.Push.Secret = v
	}
	if v := os.Getenv(EnvMailPass); v != "" {
		c.Mail.Password = v
	}
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Source.Format == "" {
		c.Source.Format = SourceCSV
	}
	if c.Source.Encoding == "" {
		c.Source.Encoding = "utf-8"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "output"
	}
	if c.Output.Name == "" {
		c.Output.Name = "training_data"
	}
	if len(c.Output.Formats) == 0 {
		c.Output.Formats = []string{FormatCSV}
	}
	if c.Schedule.Mode == "" {
		c.Schedule.Mode = ModeOnce
	}
	if c.Schedule.Debounce == 0 {
		c.Schedule.Debounce = Duration(2 * time.Second)
	}
	if c.LogName == "" {
		c.LogName = "olist.log"
	}
	if c.LogMaxSize == "" {
		c.LogMaxSize = "10*1024*1024"
	}
	if c.Push.Retries <= 0 {
		c.Push.Retries = 3
	}
	if c.Push.RetryInterval == 0 {
		c.Push.RetryInterval = Duration(2 * time.Second)
	}
	if c.Push.Timeout == 0 {
		c.Push.Timeout = Duration(10 * time.Second)
	}
	if c.Mail.Server != "" && c.Mail.Subject == "" {
		c.Mail.Subject = "olist"
	}
}

// Validate 检查取值是否合法
func (c *Config) Validate() error {
	switch c.Schedule.Mode {
	case ModeOnce, ModeWatch:
	case ModeCron:
		if strings.TrimSpace(c.Schedule.CronSpec) == "" {
			return fmt.Errorf("cron 模式需要 schedule.cron_spec")
		}
	default:
		return fmt.Errorf("未知运行模式: %s", c.Schedule.Mode)
	}

	switch c.Source.Format {
	case SourceCSV:
	case SourceXLSX:
		if c.Source.Workbook == "" {
			return fmt.Errorf("xlsx 数据源需要 source.workbook")
		}
	default:
		return fmt.Errorf("未知数据源格式: %s", c.Source.Format)
	}

	switch strings.ToLower(c.Source.Encoding) {
	case "utf-8", "utf8", "gbk", "gb18030", "latin1", "iso-8859-1":
	default:
		return fmt.Errorf("不支持的编码: %s", c.Source.Encoding)
	}

	if c.Mail.SMTPServer != "" && len(c.Mail.To) == 0 {
		return fmt.Errorf("mail.smtp_server 已配置但 mail.to 为空")
	}
	if (c.Mail.Server != "" || c.Mail.SMTPServer != "") && c.Mail.Username == "" {
		return fmt.Errorf("邮箱功能需要 mail.username")
	}

	for _, f := range c.Output.Formats {
		switch f {
		case FormatXLSX, FormatCSV, FormatParquet:
		default:
			return fmt.Errorf("未知输出格式: %s", f)
		}
	}
	return nil
}

// OutputPath 某种格式的导出文件路径
func (c *Config) OutputPath(format string) string {
	return filepath.Join(c.Output.Dir, c.Output.Name+"."+format)
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Aliases 返回某张表的列名映射副本
func (dc *DataConfig) Aliases(table string) map[string]string {
	mu.RLock()
	defer mu.RUnlock()
	out := make(map[string]string, len(dc.Columns[table]))
	for raw, canonical := range dc.Columns[table] {
		out[raw] = canonical
	}
	return out
}

func (dc *DataConfig) SetAlias(table, raw, canonical string) {
	mu.Lock()
	defer mu.Unlock()
	if dc.Columns == nil {
		dc.Columns = make(map[string]map[string]string)
	}
	if dc.Columns[table] == nil {
		dc.Columns[table] = make(map[string]string)
	}
	dc.Columns[table][raw] = canonical
}

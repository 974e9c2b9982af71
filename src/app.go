package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"OlistTraining/src/config"
	"OlistTraining/src/datapush"
	"OlistTraining/src/datasource/email"
	"OlistTraining/src/datasource/file"
	"OlistTraining/src/processor"
	"OlistTraining/src/storage"
)

// app 串起数据源、训练表计算、导出和推送
type app struct {
	cfg        *config.Config
	provider   *file.Provider
	notifier   *datapush.Notifier // 未配置webhook时为nil
	mailbox    email.MailService  // 未配置IMAP时为nil
	attach     *email.AttachmentHandler
	smtp       *email.SMTPConfig // 未配置SMTP时为nil
	logger     *storage.Logger
	maxLogSize int64
	running    sync.Mutex
}

func newApp(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) (*app, error) {
	aliases := make(map[string]map[string]string, len(dcfg.Columns))
	for table := range dcfg.Columns {
		aliases[table] = dcfg.Aliases(table)
	}

	provider, err := file.NewProvider(file.Config{
		Dir:      cfg.DataDir,
		Format:   cfg.Source.Format,
		Workbook: cfg.Source.Workbook,
		Encoding: cfg.Source.Encoding,
		Files:    cfg.Source.Files,
		Aliases:  aliases,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化数据源失败: %w", err)
	}

	maxLogSize, err := storage.ParseSize(cfg.LogMaxSize)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		provider:   provider,
		logger:     logger,
		maxLogSize: maxLogSize,
	}

	if cfg.Push.Webhook != "" {
		a.notifier, err = datapush.NewNotifier(cfg.Push.Webhook, cfg.Push.Secret,
			datapush.WithRetry(cfg.Push.Retries, time.Duration(cfg.Push.RetryInterval)),
			datapush.WithTimeout(time.Duration(cfg.Push.Timeout)),
		)
		if err != nil {
			return nil, err
		}
	}

	if m := cfg.Mail; m.Server != "" {
		a.mailbox = email.NewEmailClient(m.Server, m.Username, m.Password, func(err error) {
			logger.Warning(err.Error())
		})
		a.attach = email.NewAttachmentHandler(m.Subject, cfg.DataDir)
	}
	if m := cfg.Mail; m.SMTPServer != "" {
		a.smtp = &email.SMTPConfig{
			Server:   m.SMTPServer,
			Username: m.Username,
			Password: m.Password,
			To:       m.To,
		}
	}
	return a, nil
}

// trigger 定时任务、文件变化可能同时触发，正在运行时跳过
func (a *app) trigger(ctx context.Context, reason string) {
	if !a.running.TryLock() {
		a.logger.Warning("上一次计算尚未结束，跳过本次触发: " + reason)
		return
	}
	defer a.running.Unlock()

	a.logger.Info("开始计算训练表，触发原因: " + reason)
	if _, err := a.runOnce(ctx); err != nil {
		a.logger.Error(err.Error())
	}
}

// runOnce 读取数据、计算、导出并推送结果，返回写出的文件
func (a *app) runOnce(ctx context.Context) ([]string, error) {
	defer a.rotateLog()

	// 邮箱拉取失败时仍用数据目录里已有的文件计算
	if a.mailbox != nil {
		if _, err := email.FetchAttachments(a.mailbox, a.attach, a.logger); err != nil {
			a.logger.Warning("收取数据邮件失败: " + err.Error())
		}
	}

	seller, err := processor.NewSeller(a.provider,
		processor.WithLogger(a.logger),
		processor.WithParallel(!a.cfg.Sequential),
	)
	if err != nil {
		a.notify(ctx, "训练表计算失败: "+err.Error())
		return nil, fmt.Errorf("读取原始数据失败: %w", err)
	}

	res, err := seller.Run()
	if err != nil {
		a.notify(ctx, "训练表计算失败: "+err.Error())
		return nil, fmt.Errorf("计算训练表失败: %w", err)
	}

	written := make([]string, 0, len(a.cfg.Output.Formats))
	for _, format := range a.cfg.Output.Formats {
		path := a.cfg.OutputPath(format)
		if err := storage.Export(res.Table, format, path); err != nil {
			a.notify(ctx, "训练表导出失败: "+err.Error())
			return written, fmt.Errorf("导出 %s 失败: %w", format, err)
		}
		a.logger.Info("训练表已保存到: " + path)
		written = append(written, path)
	}

	text := summary(res.Report, written)
	a.notify(ctx, text)
	a.mailReport(text, written)
	return written, nil
}

func (a *app) mailReport(text string, files []string) {
	if a.smtp == nil {
		return
	}
	if err := email.SendReport(*a.smtp, "Olist卖家训练表", text, files); err != nil {
		a.logger.Error("发送训练表邮件失败: " + err.Error())
		return
	}
	a.logger.Info("训练表邮件已发送")
}

func (a *app) notify(ctx context.Context, content string) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Send(ctx, content); err != nil {
		a.logger.Error("推送钉钉消息失败: " + err.Error())
	}
}

func (a *app) rotateLog() {
	rotated, err := a.logger.CheckRotate(a.maxLogSize)
	if err != nil {
		a.logger.Error("日志轮转失败: " + err.Error())
		return
	}
	if rotated {
		a.logger.Info("日志文件已轮转")
	}
}

func summary(r processor.Report, files []string) string {
	var b strings.Builder
	b.WriteString("【卖家训练表】\n")
	b.WriteString(r.String())
	for _, f := range files {
		b.WriteString("\n- ")
		b.WriteString(f)
	}
	return b.String()
}

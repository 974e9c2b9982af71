// sender.go
package email

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"strings"

	"github.com/jordan-wright/email"
)

// SMTPConfig 训练表发送配置
type SMTPConfig struct {
	Server   string // 如"smtp.qq.com"，不带端口时默认465
	Username string
	Password string
	To       []string
}

// NewReport 组装带附件的训练表邮件，不存在的附件直接报错
func NewReport(cfg SMTPConfig, subject, body string, attachments []string) (*email.Email, error) {
	e := email.NewEmail()
	e.From = fmt.Sprintf("Olist Training <%s>", cfg.Username)
	e.To = cfg.To
	e.Subject = subject
	e.Text = []byte(body)

	for _, path := range attachments {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("附件文件不存在: %s", path)
		}
		if _, err := e.AttachFile(path); err != nil {
			return nil, fmt.Errorf("附件添加失败: %w", err)
		}
	}
	return e, nil
}

// SendReport 以显式TLS发送训练表邮件
func SendReport(cfg SMTPConfig, subject, body string, attachments []string) error {
	if len(cfg.To) == 0 {
		return fmt.Errorf("未配置收件人")
	}

	e, err := NewReport(cfg, subject, body, attachments)
	if err != nil {
		return err
	}

	addr := smtpAddr(cfg.Server)
	host, _, _ := net.SplitHostPort(addr)
	err = e.SendWithTLS(
		addr,
		smtp.PlainAuth("", cfg.Username, cfg.Password, host),
		&tls.Config{ServerName: host},
	)
	if err != nil {
		return fmt.Errorf("邮件发送失败: %w (Server: %s)", err, addr)
	}
	return nil
}

// smtpAddr 确保服务器地址包含端口
func smtpAddr(server string) string {
	if strings.Contains(server, ":") {
		return server
	}
	return server + ":465" // 默认 SSL 端口
}

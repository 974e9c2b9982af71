package datapush

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// 常量定义
const (
	RETRY_TIMES    = 3
	RETRY_INTERVAL = 2 * time.Second
	TIMEOUT        = 10 * time.Second
)

// 钉钉 API 响应结构体
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

type textMessage struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
}

// Notifier 钉钉群机器人，secret 非空时按加签方式发送
type Notifier struct {
	webhook  string
	secret   string
	times    int
	interval time.Duration
	client   *http.Client
	now      func() time.Time
}

// Option 配置Notifier
type Option func(*Notifier)

func WithRetry(times int, interval time.Duration) Option {
	return func(n *Notifier) {
		if times > 0 {
			n.times = times
		}
		if interval >= 0 {
			n.interval = interval
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.client.Timeout = timeout
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) {
		if client != nil {
			n.client = client
		}
	}
}

func NewNotifier(webhook, secret string, opts ...Option) (*Notifier, error) {
	if webhook == "" {
		return nil, fmt.Errorf("webhook 不能为空")
	}
	if _, err := url.Parse(webhook); err != nil {
		return nil, fmt.Errorf("webhook 地址无效: %w", err)
	}
	n := &Notifier{
		webhook:  webhook,
		secret:   secret,
		times:    RETRY_TIMES,
		interval: RETRY_INTERVAL,
		client:   &http.Client{Timeout: TIMEOUT},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Send 发送文本消息，失败时按固定间隔重试
func (n *Notifier) Send(ctx context.Context, content string) error {
	msg := textMessage{MsgType: "text"}
	msg.Text.Content = content

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %w", err)
	}

	return retry(ctx, func() error {
		return n.post(ctx, payload)
	}, n.times, n.interval)
}

func (n *Notifier) post(ctx context.Context, payload []byte) error {
	target, err := n.signedURL()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("钉钉返回 HTTP %d: %s", resp.StatusCode, respBody)
	}

	var result DingTalkResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("发送消息失败: %d %s", result.ErrCode, result.ErrMsg)
	}
	return nil
}

// signedURL 加签：timestamp + "\n" + secret 做 HmacSHA256，再 base64
func (n *Notifier) signedURL() (string, error) {
	if n.secret == "" {
		return n.webhook, nil
	}
	u, err := url.Parse(n.webhook)
	if err != nil {
		return "", err
	}
	timestamp := strconv.FormatInt(n.now().UnixMilli(), 10)
	q := u.Query()
	q.Set("timestamp", timestamp)
	q.Set("sign", Sign(timestamp, n.secret))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Sign 计算钉钉机器人签名
func Sign(timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "\n" + secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// 重试函数
func retry(ctx context.Context, fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %w", times, err)
}

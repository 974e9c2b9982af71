// email_handler.go
package email

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"OlistTraining/src/storage"
)

// ====================== 附件落盘 ======================

// AttachmentHandler 把目标邮件里的 csv / xlsx 附件保存到数据目录
type AttachmentHandler struct {
	TargetSubject string          // 目标邮件主题关键词
	DataDir       string          // 附件保存目录
	processedUIDs map[uint32]bool // 已处理邮件UID记录
	mu            sync.RWMutex
}

func NewAttachmentHandler(subject, dataDir string) *AttachmentHandler {
	return &AttachmentHandler{
		TargetSubject: subject,
		DataDir:       dataDir,
		processedUIDs: make(map[uint32]bool),
	}
}

func (h *AttachmentHandler) isProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

func (h *AttachmentHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// Handle 保存单封邮件的数据附件，返回写出的文件路径
func (h *AttachmentHandler) Handle(email *Email) ([]string, error) {
	if h.isProcessed(email.UID) {
		return nil, nil
	}
	if !matchSubject(email.Subject, h.TargetSubject) {
		return nil, nil
	}

	if err := os.MkdirAll(h.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}

	var saved []string
	for _, attachment := range email.Attachments {
		if !isDataFile(attachment.Filename) {
			continue
		}

		// 附件名可能带路径，只保留文件名
		filePath := filepath.Join(h.DataDir, filepath.Base(attachment.Filename))
		if err := writeAtomic(filePath, attachment.Content); err != nil {
			return saved, fmt.Errorf("保存附件失败: %w", err)
		}
		saved = append(saved, filePath)
	}

	if len(saved) > 0 {
		h.markAsProcessed(email.UID)
	}
	return saved, nil
}

// FetchAttachments 收取未读邮件，保存最新一封目标邮件的数据附件
func FetchAttachments(svc MailService, handler *AttachmentHandler, logger *storage.Logger) ([]string, error) {
	startTime := time.Now()
	logger.Info("开始检查邮箱...")

	if err := svc.Connect(); err != nil {
		return nil, fmt.Errorf("连接失败: %w", err)
	}
	defer svc.Disconnect()

	emails, err := svc.FetchUnreadEmails()
	if err != nil {
		return nil, fmt.Errorf("获取邮件失败: %w", err)
	}
	if len(emails) == 0 {
		logger.Info("没有新邮件")
		return nil, nil
	}

	target := filterLatestTargetEmail(emails, handler.TargetSubject)
	if target == nil {
		logger.Info("没有目标邮件")
		return nil, nil
	}

	saved, err := handler.Handle(target)
	if err != nil {
		return saved, err
	}
	for _, f := range saved {
		logger.Info("附件已保存到: " + f)
	}
	logger.Info(fmt.Sprintf("邮件处理完成，耗时: %v", time.Since(startTime)))
	return saved, nil
}

// filterLatestTargetEmail 主题命中关键词的邮件里日期最新的一封
func filterLatestTargetEmail(emails []*Email, keyword string) *Email {
	var targetEmails []*Email
	for _, email := range emails {
		if matchSubject(email.Subject, keyword) && hasDataFile(email) {
			targetEmails = append(targetEmails, email)
		}
	}

	if len(targetEmails) == 0 {
		return nil
	}

	sort.SliceStable(targetEmails, func(i, j int) bool {
		return targetEmails[i].Date.After(targetEmails[j].Date)
	})

	return targetEmails[0]
}

func matchSubject(subject, keyword string) bool {
	return strings.Contains(strings.ToLower(subject), strings.ToLower(keyword))
}

func hasDataFile(email *Email) bool {
	for _, a := range email.Attachments {
		if isDataFile(a.Filename) {
			return true
		}
	}
	return false
}

func isDataFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// writeAtomic 先写临时文件再改名，避免监控方读到半个文件
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".mail-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

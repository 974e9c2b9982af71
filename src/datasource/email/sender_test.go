package email

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training_data.csv")
	require.NoError(t, os.WriteFile(path, []byte("seller_id\ns1\n"), 0644))

	cfg := SMTPConfig{Server: "smtp.example.com", Username: "bot@example.com", To: []string{"ops@example.com"}}
	e, err := NewReport(cfg, "Olist training table", "2 rows", []string{path})
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@example.com"}, e.To)
	assert.Contains(t, e.From, "bot@example.com")

	raw, err := e.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: Olist training table")
	assert.Contains(t, string(raw), `filename="training_data.csv"`)
}

func TestNewReportMissingAttachment(t *testing.T) {
	_, err := NewReport(SMTPConfig{Username: "bot@example.com"}, "s", "b",
		[]string{filepath.Join(t.TempDir(), "missing.csv")})
	assert.ErrorContains(t, err, "附件文件不存在")
}

func TestSendReportRequiresRecipients(t *testing.T) {
	err := SendReport(SMTPConfig{Server: "smtp.example.com"}, "s", "b", nil)
	assert.ErrorContains(t, err, "未配置收件人")
}

func TestSMTPAddr(t *testing.T) {
	assert.Equal(t, "smtp.qq.com:465", smtpAddr("smtp.qq.com"))
	assert.Equal(t, "smtp.qq.com:587", smtpAddr("smtp.qq.com:587"))
}

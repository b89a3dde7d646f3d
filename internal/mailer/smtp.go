package mailer

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/google/uuid"
)

// SMTPSender 通过 SMTP 中继发送邮件
//
// 端口 465 使用隐式 TLS，其他端口在服务器支持时使用 STARTTLS。
type SMTPSender struct {
	addr     string
	implicit bool
	from     string
	replyTo  string
	auth     sasl.Client
	now      func() time.Time
	sendMail func(addr string, a sasl.Client, from string, to []string, msg []byte) error
}

// NewSMTPSender 创建 SMTP 发送器
func NewSMTPSender(cfg Config) *SMTPSender {
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}

	s := &SMTPSender{
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, port),
		implicit: port == 465,
		from:     cfg.From,
		replyTo:  cfg.ReplyTo,
		now:      time.Now,
	}
	if cfg.SMTPUser != "" {
		s.auth = sasl.NewPlainClient("", cfg.SMTPUser, cfg.SMTPPass)
	}
	s.sendMail = s.deliver
	return s
}

// Send 实现 Sender
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := s.buildMIME(msg)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	if err := s.sendMail(s.addr, s.auth, envelopeAddress(s.from), msg.To, raw); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) deliver(addr string, a sasl.Client, from string, to []string, msg []byte) error {
	if s.implicit {
		return gosmtp.SendMailTLS(addr, a, from, to, bytes.NewReader(msg))
	}
	return gosmtp.SendMail(addr, a, from, to, bytes.NewReader(msg))
}

// buildMIME 构建 multipart/alternative 邮件（纯文本 + HTML）
func (s *SMTPSender) buildMIME(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	headers := map[string]string{
		"MIME-Version": "1.0",
		"From":         s.from,
		"To":           strings.Join(msg.To, ", "),
		"Subject":      mime.QEncoding.Encode("utf-8", msg.Subject),
		"Date":         s.now().Format(time.RFC1123Z),
		"Message-ID":   fmt.Sprintf("<%s@%s>", uuid.NewString(), senderDomain(s.from)),
		"Content-Type": fmt.Sprintf("multipart/alternative; boundary=%q", mw.Boundary()),
	}
	replyTo := msg.ReplyTo
	if replyTo == "" {
		replyTo = s.replyTo
	}
	if replyTo != "" {
		headers["Reply-To"] = replyTo
	}
	for k, v := range msg.Headers {
		headers[textproto.CanonicalMIMEHeaderKey(k)] = v
	}

	var head bytes.Buffer
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&head, "%s: %s\r\n", k, headers[k])
	}
	head.WriteString("\r\n")

	text := msg.Text
	if text == "" {
		text = "This message requires an HTML capable email client."
	}
	if err := writePart(mw, "text/plain; charset=UTF-8", text); err != nil {
		return nil, err
	}
	if err := writePart(mw, "text/html; charset=UTF-8", msg.HTML); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	return append(head.Bytes(), buf.Bytes()...), nil
}

func writePart(mw *multipart.Writer, contentType, body string) error {
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	return qp.Close()
}

// envelopeAddress 从 "Name <addr>" 形式中提取邮箱部分
func envelopeAddress(from string) string {
	start := strings.LastIndex(from, "<")
	end := strings.LastIndex(from, ">")
	if start >= 0 && end > start {
		return from[start+1 : end]
	}
	return strings.TrimSpace(from)
}

func senderDomain(from string) string {
	addr := envelopeAddress(from)
	if at := strings.LastIndex(addr, "@"); at >= 0 {
		return addr[at+1:]
	}
	return "localhost"
}

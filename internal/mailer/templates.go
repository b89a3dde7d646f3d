package mailer

import (
	"bytes"
	"html/template"
	"time"
)

// ConfirmationData 订阅确认邮件数据
type ConfirmationData struct {
	SiteName       string
	ConfirmURL     string
	UnsubscribeURL string
}

// WelcomeData 确认成功后的欢迎邮件数据
type WelcomeData struct {
	SiteName       string
	SiteURL        string
	UnsubscribeURL string
}

// BroadcastData 群发邮件数据，Content 为管理员提交的 HTML，原样嵌入
type BroadcastData struct {
	SiteName       string
	Subject        string
	PreviewText    string
	Content        template.HTML
	UnsubscribeURL string
}

// ContactNotificationData 联系表单通知数据
type ContactNotificationData struct {
	ID         string
	Name       string
	Email      string
	Company    string
	Message    string
	ReceivedAt time.Time
}

var templates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"year": func() int {
		return time.Now().Year()
	},
}).Parse(layoutTpl))

func init() {
	template.Must(templates.New("confirmation").Parse(confirmationTpl))
	template.Must(templates.New("welcome").Parse(welcomeTpl))
	template.Must(templates.New("broadcast").Parse(broadcastTpl))
	template.Must(templates.New("contact").Parse(contactTpl))
}

func renderTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderConfirmation 渲染订阅确认邮件
func RenderConfirmation(data ConfirmationData) (string, error) {
	return renderTemplate("confirmation", data)
}

// RenderWelcome 渲染欢迎邮件
func RenderWelcome(data WelcomeData) (string, error) {
	return renderTemplate("welcome", data)
}

// RenderBroadcast 渲染群发邮件，附带预览文本与退订链接
func RenderBroadcast(data BroadcastData) (string, error) {
	return renderTemplate("broadcast", data)
}

// RenderContactNotification 渲染联系表单通知邮件
func RenderContactNotification(data ContactNotificationData) (string, error) {
	return renderTemplate("contact", data)
}

const layoutTpl = `{{define "footer"}}
<hr style="width:100%;border:none;border-top:1px solid #eaeaea;margin:26px 0" />
<p style="font-size:11px;line-height:20px;color:#9ca3af;text-align:center">
  ©{{year}} {{.SiteName}}{{if .UnsubscribeURL}} · <a href="{{.UnsubscribeURL}}" style="color:#9ca3af">Unsubscribe</a>{{end}}
</p>
{{end}}`

const confirmationTpl = `<!DOCTYPE html>
<html lang="en">
<body style="font-family:ui-sans-serif,system-ui,-apple-system,Segoe UI,Roboto,Helvetica Neue,Arial,sans-serif;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:#111">Confirm your subscription</h2>
  <p>Thanks for subscribing to the {{.SiteName}} newsletter. Please confirm your email address:</p>
  <p style="margin-top:24px">
    <a href="{{.ConfirmURL}}" style="background:#4f46e5;color:#fff;padding:10px 18px;text-decoration:none;border-radius:4px">Confirm subscription</a>
  </p>
  <p style="color:#6b7280;font-size:12px">If you did not request this, you can ignore this email.</p>
  {{template "footer" .}}
</div>
</body>
</html>`

const welcomeTpl = `<!DOCTYPE html>
<html lang="en">
<body style="font-family:ui-sans-serif,system-ui,-apple-system,Segoe UI,Roboto,Helvetica Neue,Arial,sans-serif;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:#111">Welcome to {{.SiteName}}</h2>
  <p>Your subscription is confirmed. You will receive our insights on engineering, product and digital transformation.</p>
  {{if .SiteURL}}<p><a href="{{.SiteURL}}" style="color:#4f46e5">Visit {{.SiteName}}</a></p>{{end}}
  {{template "footer" .}}
</div>
</body>
</html>`

const broadcastTpl = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
  <title>{{.Subject}}</title>
</head>
<body style="font-family:ui-sans-serif,system-ui,-apple-system,Segoe UI,Roboto,Helvetica Neue,Arial,sans-serif;background:#fff;margin:0 auto;padding:.5rem">
{{if .PreviewText}}<div style="display:none;max-height:0;overflow:hidden">{{.PreviewText}}</div>{{end}}
<div style="max-width:600px;margin:0 auto">
  {{.Content}}
  {{template "footer" .}}
</div>
</body>
</html>`

const contactTpl = `<!DOCTYPE html>
<html lang="en">
<body style="font-family:ui-sans-serif,system-ui,-apple-system,Segoe UI,Roboto,Helvetica Neue,Arial,sans-serif;padding:20px">
  <h2>New contact request</h2>
  <table cellpadding="4" style="font-size:14px">
    <tr><td><strong>Name</strong></td><td>{{.Name}}</td></tr>
    <tr><td><strong>Email</strong></td><td>{{.Email}}</td></tr>
    {{if .Company}}<tr><td><strong>Company</strong></td><td>{{.Company}}</td></tr>{{end}}
    <tr><td><strong>Received</strong></td><td>{{.ReceivedAt.Format "2006-01-02 15:04 MST"}}</td></tr>
    <tr><td><strong>Reference</strong></td><td>{{.ID}}</td></tr>
  </table>
  <p style="white-space:pre-wrap;background:#f3f4f6;border-radius:8px;padding:12px">{{.Message}}</p>
</body>
</html>`

package mailer

import (
	"bytes"
	"html/template"
)

var (
	otpTmpl = template.Must(template.New("otp").Parse(`
<p>Hi {{.Name}},</p>
<p>Your verification code is:</p>
<h2 style="letter-spacing:4px">{{.Code}}</h2>
<p>The code expires in {{.Minutes}} minutes. If you did not request it, ignore this email.</p>
`))

	resetTmpl = template.Must(template.New("reset").Parse(`
<p>Hi {{.Name}},</p>
<p>We received a request to reset your password. The link below is valid for one hour:</p>
<p><a href="{{.Link}}">Reset your password</a></p>
<p>If you did not request a reset, you can safely ignore this email.</p>
`))

	passwordChangedTmpl = template.Must(template.New("changed").Parse(`
<p>Hi {{.Name}},</p>
<p>Your password was just changed. If this was not you, reset your password immediately.</p>
`))
)

func RenderOTP(name, code string, minutes int) (string, error) {
	return render(otpTmpl, map[string]any{"Name": name, "Code": code, "Minutes": minutes})
}

func RenderResetLink(name, link string) (string, error) {
	return render(resetTmpl, map[string]any{"Name": name, "Link": link})
}

func RenderPasswordChanged(name string) (string, error) {
	return render(passwordChangedTmpl, map[string]any{"Name": name})
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

package mailer

import (
	htmltemplate "html/template"
	"io"
	"strings"
	texttemplate "text/template"

	"github.com/astro-comp/registrar/config"
	"github.com/astro-comp/registrar/internal/models"
)

const notProvided = "Not provided"

type confirmationData struct {
	Name           string
	Email          string
	RegistrationID string
	SupportEmail   string
	Competition    config.CompetitionConfig
}

type noticeData struct {
	Registration *models.Registration
	Timestamp    string
	Experience   string
	Motivation   string
	Short        string
}

const confirmationHTML = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #2c3e50; text-align: center;">Welcome to the {{.Competition.Name}}!</h2>
  <p>Dear {{.Name}},</p>
  <p>Congratulations! You have successfully registered for the <strong>{{.Competition.Name}} ({{.Competition.Short}})</strong>.</p>
  <div style="background-color: #f8f9fa; padding: 20px; border-radius: 8px; margin: 20px 0;">
    <h3 style="color: #495057; margin-top: 0;">Competition Details:</h3>
    <ul style="color: #495057;">
      <li><strong>Date:</strong> {{.Competition.Date}}</li>
      <li><strong>Time:</strong> {{.Competition.Time}}</li>
      <li><strong>Format:</strong> {{.Competition.Format}}</li>
      <li><strong>Duration:</strong> {{.Competition.Duration}}</li>
    </ul>
  </div>
  <div style="background-color: #e8f5e8; padding: 20px; border-radius: 8px; margin: 20px 0;">
    <h3 style="color: #155724; margin-top: 0;">What's Next?</h3>
    <ol style="color: #155724;">{{range nextSteps}}
      <li>{{.}}</li>{{end}}
    </ol>
  </div>
  <div style="background-color: #fff3cd; padding: 20px; border-radius: 8px; margin: 20px 0;">
    <h3 style="color: #856404; margin-top: 0;">Study Resources:</h3>
    <ul style="color: #856404;">{{range studyResources}}
      <li>{{.}}</li>{{end}}
    </ul>
  </div>
  <p>If you have any questions, please contact us at <a href="mailto:{{.SupportEmail}}">{{.SupportEmail}}</a>.</p>
  <p>Best of luck with your preparation!</p>
  <p style="text-align: center; margin-top: 30px;"><strong>The {{.Competition.Short}} Team</strong></p>
  <hr style="margin: 30px 0; border: none; border-top: 1px solid #dee2e6;">
  <p style="font-size: 12px; color: #6c757d; text-align: center;">
    This email was sent to {{.Email}} because you registered for the {{.Competition.Name}}.<br>
    Registration ID: {{.RegistrationID}}
  </p>
</div>
`

const confirmationText = `Hi {{.Name}},

Congratulations! You have successfully registered for the {{.Competition.Name}} ({{.Competition.Short}}).

Competition Details:
- Date: {{.Competition.Date}}
- Time: {{.Competition.Time}}
- Format: {{.Competition.Format}}
- Duration: {{.Competition.Duration}}

What's Next?
{{range $i, $step := nextSteps}}{{inc $i}}. {{$step}}
{{end}}
Study Resources:
{{range studyResources}}- {{.}}
{{end}}
If you have any questions, please contact us at {{.SupportEmail}}.

Best of luck with your preparation!

The {{.Competition.Short}} Team

This email was sent to {{.Email}} because you registered for the {{.Competition.Name}}.
Registration ID: {{.RegistrationID}}
`

const noticeHTML = `<h3>New Registration Received</h3>
<p><strong>Name:</strong> {{.Registration.Name}}</p>
<p><strong>Email:</strong> {{.Registration.StudentEmail}}</p>
<p><strong>School:</strong> {{.Registration.School}}</p>
<p><strong>Grade:</strong> {{.Registration.Grade}}</p>
<p><strong>Age:</strong> {{.Registration.Age}}</p>
<p><strong>Country:</strong> {{.Registration.Country}}</p>
<p><strong>Parent Email:</strong> {{.Registration.ParentEmail}}</p>
<p><strong>Previous Experience:</strong> {{.Experience}}</p>
<p><strong>Motivation:</strong> {{.Motivation}}</p>
<p><strong>Registration ID:</strong> {{.Registration.ID}}</p>
<p><strong>Timestamp:</strong> {{.Timestamp}}</p>
`

const noticeText = `New {{.Short}} Registration:

Name: {{.Registration.Name}}
Email: {{.Registration.StudentEmail}}
School: {{.Registration.School}}
Grade: {{.Registration.Grade}}
Age: {{.Registration.Age}}
Country: {{.Registration.Country}}
Parent Email: {{.Registration.ParentEmail}}
Previous Experience: {{.Experience}}
Motivation: {{.Motivation}}
Registration ID: {{.Registration.ID}}
Timestamp: {{.Timestamp}}
`

var (
	nextSteps = []string{
		"Mark your calendar for the competition date",
		"Review the sample problems on our website",
		"Prepare using the recommended study topics",
		"Check your email for competition access details closer to the date",
	}
	studyResources = []string{
		"Visit our website for sample problems",
		"Review the recommended study topics",
		"Practice with astronomy olympiad problems",
		"Join our community for discussion and tips",
	}

	funcs = map[string]any{
		"nextSteps":      func() []string { return nextSteps },
		"studyResources": func() []string { return studyResources },
		"inc":            func(i int) int { return i + 1 },
	}

	confirmationHTMLTmpl = htmltemplate.Must(htmltemplate.New("confirmation.html").Funcs(funcs).Parse(confirmationHTML))
	confirmationTextTmpl = texttemplate.Must(texttemplate.New("confirmation.txt").Funcs(funcs).Parse(confirmationText))
	noticeHTMLTmpl       = htmltemplate.Must(htmltemplate.New("notice.html").Parse(noticeHTML))
	noticeTextTmpl       = texttemplate.Must(texttemplate.New("notice.txt").Parse(noticeText))
)

type renderer interface {
	Execute(wr io.Writer, data any) error
}

func render(tmpl renderer, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func orNotProvided(s string) string {
	if strings.TrimSpace(s) == "" {
		return notProvided
	}
	return s
}

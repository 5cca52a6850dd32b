package mail

import (
	htmltemplate "html/template"
	"strings"
	"text/template"
)

// HumanDateLayout renders submission dates as "01 February 2024 02:05 PM".
const HumanDateLayout = "02 January 2006 03:04 PM"

type emailData struct {
	Name          string
	Assignment    string
	SubmissionURL string
	StorageKey    string
	SubmittedAt   string
	Attempts      int
	Reason        string
	Signature     string
}

var successText = template.Must(template.New("success.txt").Parse(
	`Hi {{.Name}},
Congratulations! Your submission for the '{{.Assignment}}' assignment has been successful.
Here are the details of your submission:
Submitted URL: {{.SubmissionURL}}
Storage Path: {{.StorageKey}}
Submission Updated Date: {{.SubmittedAt}}
Attempts used: {{.Attempts}}

Best Of Luck!
{{.Signature}}
`))

var failureText = template.Must(template.New("failure.txt").Parse(
	`Hi {{.Name}},
We regret to inform you that your submission for the '{{.Assignment}}' assignment has failed due to the following reason:
{{.Reason}}
Please review your submission and try again.
Here are the details of your submission:
Submission Updated Date: {{.SubmittedAt}}
Attempts used: {{.Attempts}}

Best Of Luck!
{{.Signature}}
`))

var successHTML = htmltemplate.Must(htmltemplate.New("success.html").Parse(`<html>
<head></head>
<body>
	<p>Hi {{.Name}},</p>
	<p>Your submission for the '{{.Assignment}}' assignment has been successful.</p>
	<p>Here are the details of your submission:</p>
	<ul>
		<li>Submitted URL: {{.SubmissionURL}}</li>
		<li>Storage Path: {{.StorageKey}}</li>
		<li>Submission Updated Date: {{.SubmittedAt}}</li>
		<li>Attempts used: {{.Attempts}}</li>
	</ul>
	<p>Sincerely,<br>{{.Signature}}</p>
</body>
</html>
`))

var failureHTML = htmltemplate.Must(htmltemplate.New("failure.html").Parse(`<html>
<head></head>
<body>
	<p>Hi {{.Name}},</p>
	<p>We regret to inform you that your submission for the '{{.Assignment}}' assignment has failed due to the following reason:</p>
	<p>{{.Reason}}</p>
	<p>Please review your submission and try again.</p>
	<p>Here are the details of your submission:</p>
	<ul>
		<li>Submission Updated Date: {{.SubmittedAt}}</li>
		<li>Attempts used: {{.Attempts}}</li>
	</ul>
	<p>Sincerely,<br>{{.Signature}}</p>
</body>
</html>
`))

func render(succeeded bool, data emailData) (text string, html string, err error) {
	var textBuf, htmlBuf strings.Builder
	if succeeded {
		err = successText.Execute(&textBuf, data)
		if err == nil {
			err = successHTML.Execute(&htmlBuf, data)
		}
	} else {
		err = failureText.Execute(&textBuf, data)
		if err == nil {
			err = failureHTML.Execute(&htmlBuf, data)
		}
	}
	if err != nil {
		return "", "", err
	}
	return textBuf.String(), htmlBuf.String(), nil
}

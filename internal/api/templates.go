package api

import "html/template"

const successTemplateHTML = `<!DOCTYPE html><html><head><title>Verification Success</title></head>
<body><h1>Verification Successful!</h1><p>{{ .Message }}</p>
<p>You can now close this tab.</p></body></html>
`

const errorTemplateHTML = `<!DOCTYPE html><html><head><title>Verification Error</title></head>
<body><h1>Verification Error</h1><p>{{ .Message }}</p>
<p>Please try again or contact an admin.</p></body></html>
`

var (
	successTemplate = template.Must(template.New("success").Parse(successTemplateHTML))
	errorTemplate   = template.Must(template.New("error").Parse(errorTemplateHTML))
)

type terminalPage struct {
	Message string
}

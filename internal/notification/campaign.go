package notification

import "html/template"

// Campaign bodies are authored by the studio owner and rendered as-is.
type campaignData struct {
	StudioName  string
	StudioEmail string
	Body        template.HTML
}

func trustedHTML(body string) template.HTML {
	return template.HTML(body)
}

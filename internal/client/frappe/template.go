package frappe

import "context"

const doctypeEmailTemplate = "Email Template"

// EmailTemplate returns the body of the named Email Template, preferring
// its HTML response over the plain one.
func (c *Client) EmailTemplate(ctx context.Context, name string) (string, error) {
	tmpl, err := get[struct {
		Response     string `json:"response"`
		ResponseHTML string `json:"response_html"`
	}](ctx, c, doctypeEmailTemplate, name)
	if err != nil {
		return "", err
	}
	if tmpl.ResponseHTML != "" {
		return tmpl.ResponseHTML, nil
	}
	return tmpl.Response, nil
}

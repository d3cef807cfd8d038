package dashboard

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// Form validation errors.
var (
	ErrFieldsRequired = errors.New("please fill in all fields")
	ErrInvalidURL     = errors.New("please enter a valid URL (e.g. https://example.com)")
)

// ErrSaveFailed is the fallback message when the backend gives no reason.
const ErrSaveFailed = "Error saving site"

// SiteForm is the add/edit site form.
type SiteForm struct {
	Name string
	URL  string

	// Editing is the site being edited, nil when adding
	Editing *Site
}

// NewSiteForm creates a form, prefilled when editing.
func NewSiteForm(editing *Site) *SiteForm {
	f := &SiteForm{Editing: editing}
	if editing != nil {
		f.Name = editing.Name
		f.URL = editing.URL
	}
	return f
}

// Title returns the form heading.
func (f *SiteForm) Title() string {
	if f.Editing != nil {
		return "Edit Site"
	}
	return "Add Site"
}

// Validate checks the fields before anything is sent.
func (f *SiteForm) Validate() error {
	name := strings.TrimSpace(f.Name)
	raw := strings.TrimSpace(f.URL)
	if name == "" || raw == "" {
		return ErrFieldsRequired
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// Submit validates and sends the form. New sites are created with
// monitoring and notifications off; the backend may override this.
func (f *SiteForm) Submit(ctx context.Context, client *Client) (*Site, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(f.Name)
	raw := strings.TrimSpace(f.URL)

	if f.Editing != nil {
		return client.UpdateSite(ctx, f.Editing.ID, SitePatch{Name: &name, URL: &raw})
	}
	return client.CreateSite(ctx, SiteInput{Name: name, URL: raw})
}

// SubmitErrorMessage returns the text shown when Submit fails.
func SubmitErrorMessage(err error) string {
	if errors.Is(err, ErrFieldsRequired) || errors.Is(err, ErrInvalidURL) {
		return err.Error()
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return ErrSaveFailed + ": " + apiErr.Message
	}
	if err != nil {
		return ErrSaveFailed + ": " + err.Error()
	}
	return ErrSaveFailed
}

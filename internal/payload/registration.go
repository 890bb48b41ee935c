package payload

import (
	"strings"

	appErrors "github.com/unclebandit/wa-dispatch/internal/errors"
	"github.com/unclebandit/wa-dispatch/internal/model"
)

// RegistrationHeader is the HEADER component submitted when a template is
// created with the provider. Both providers use the same shape.
type RegistrationHeader struct {
	Type    string               `json:"type"`
	Format  string               `json:"format"`
	Text    string               `json:"text,omitempty"`
	Example *registrationExample `json:"example,omitempty"`
}

type registrationExample struct {
	HeaderHandle []string `json:"header_handle,omitempty"`
	HeaderText   []string `json:"header_text,omitempty"`
}

// NewRegistrationHeader builds the template-creation header. Media headers
// need at least one uploaded sample handle.
func NewRegistrationHeader(kind model.HeaderKind, text string, handles []string) (*RegistrationHeader, error) {
	switch kind {
	case "", model.HeaderNone:
		return nil, nil
	case model.HeaderText:
		if strings.TrimSpace(text) == "" {
			return nil, appErrors.NewBuildError("", "header", "text header requires text")
		}
		return &RegistrationHeader{Type: "HEADER", Format: "TEXT", Text: text}, nil
	case model.HeaderImage, model.HeaderVideo, model.HeaderDocument:
		var clean []string
		for _, h := range handles {
			if h = strings.TrimSpace(h); h != "" {
				clean = append(clean, h)
			}
		}
		if len(clean) == 0 {
			return nil, appErrors.NewBuildError("", "header", string(kind)+" header requires example.header_handle")
		}
		return &RegistrationHeader{
			Type:    "HEADER",
			Format:  strings.ToUpper(string(kind)),
			Example: &registrationExample{HeaderHandle: clean},
		}, nil
	default:
		return nil, appErrors.NewBuildError("", "header", "unsupported header kind "+string(kind))
	}
}

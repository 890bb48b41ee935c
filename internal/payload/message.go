// Package payload renders a provider-agnostic template message into the JSON
// body each WhatsApp provider's template-send API expects.
package payload

import (
	"encoding/json"
	"strings"

	appErrors "github.com/unclebandit/wa-dispatch/internal/errors"
	"github.com/unclebandit/wa-dispatch/internal/model"
)

// Header is the optional header of a template message. Media headers need
// either Link or MediaID.
type Header struct {
	Kind     model.HeaderKind
	Text     string
	Link     string
	MediaID  string
	Filename string
}

// ButtonParam fills the dynamic suffix of the URL button at position Index.
type ButtonParam struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Message is the canonical template message shared by every builder.
type Message struct {
	To           string
	TemplateName string
	LanguageCode string
	Header       Header
	BodyParams   []string
	Buttons      []ButtonParam
}

// FromItem decodes the serialized parameter sets of an outbound item.
func FromItem(item model.OutboundItem) (Message, error) {
	msg := Message{
		To:           item.To,
		TemplateName: item.TemplateName,
		LanguageCode: item.LanguageCode,
		Header: Header{
			Kind:     item.HeaderKind,
			Text:     item.HeaderText,
			Link:     item.HeaderURL,
			MediaID:  item.HeaderMediaID,
			Filename: item.HeaderFilename,
		},
	}
	if len(item.BodyParams) > 0 && string(item.BodyParams) != "null" {
		if err := json.Unmarshal(item.BodyParams, &msg.BodyParams); err != nil {
			return Message{}, appErrors.NewBuildError(string(item.Provider), "body_params", "must be a JSON array of strings")
		}
	}
	if len(item.ButtonParams) > 0 && string(item.ButtonParams) != "null" {
		if err := json.Unmarshal(item.ButtonParams, &msg.Buttons); err != nil {
			return Message{}, appErrors.NewBuildError(string(item.Provider), "button_params", "must be a JSON array of {index,text}")
		}
	}
	return msg, nil
}

// component is the provider-neutral variant a builder maps onto its own wire
// struct.
type component struct {
	kind    string
	subType string
	index   int
	params  []parameter
}

// parameter shapes are identical for both providers.
type parameter struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Image    *media `json:"image,omitempty"`
	Video    *media `json:"video,omitempty"`
	Document *media `json:"document,omitempty"`
}

type media struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type language struct {
	Code string `json:"code"`
}

const maxButtonIndex = 9

// components validates msg and lays out header, body and button components in
// the order providers expect.
func components(provider string, msg Message) ([]component, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, appErrors.NewBuildError(provider, "to", "destination is required")
	}
	if strings.TrimSpace(msg.TemplateName) == "" {
		return nil, appErrors.NewBuildError(provider, "template_name", "template name is required")
	}
	if strings.TrimSpace(msg.LanguageCode) == "" {
		return nil, appErrors.NewBuildError(provider, "language_code", "language code is required")
	}

	var out []component

	header, err := headerComponent(provider, msg.Header)
	if err != nil {
		return nil, err
	}
	if header != nil {
		out = append(out, *header)
	}

	if len(msg.BodyParams) > 0 {
		params := make([]parameter, 0, len(msg.BodyParams))
		for _, p := range msg.BodyParams {
			params = append(params, parameter{Type: "text", Text: p})
		}
		out = append(out, component{kind: "body", params: params})
	}

	seen := map[int]bool{}
	for _, b := range msg.Buttons {
		if b.Index < 0 || b.Index > maxButtonIndex {
			return nil, appErrors.NewBuildError(provider, "button_params", "button index out of range")
		}
		if seen[b.Index] {
			return nil, appErrors.NewBuildError(provider, "button_params", "duplicate button index")
		}
		if strings.TrimSpace(b.Text) == "" {
			return nil, appErrors.NewBuildError(provider, "button_params", "button text is required")
		}
		seen[b.Index] = true
		out = append(out, component{
			kind:    "button",
			subType: "url",
			index:   b.Index,
			params:  []parameter{{Type: "text", Text: b.Text}},
		})
	}

	return out, nil
}

func headerComponent(provider string, h Header) (*component, error) {
	switch h.Kind {
	case "", model.HeaderNone:
		return nil, nil
	case model.HeaderText:
		// a static text header carries no parameters
		if h.Text == "" {
			return nil, nil
		}
		return &component{kind: "header", params: []parameter{{Type: "text", Text: h.Text}}}, nil
	case model.HeaderImage, model.HeaderVideo, model.HeaderDocument:
		if strings.TrimSpace(h.Link) == "" && strings.TrimSpace(h.MediaID) == "" {
			return nil, appErrors.NewBuildError(provider, "header", string(h.Kind)+" header requires a media link or media id")
		}
		ref := &media{ID: h.MediaID, Link: h.Link}
		if ref.ID != "" {
			// the handle wins when both are present
			ref.Link = ""
		}
		p := parameter{Type: string(h.Kind)}
		switch h.Kind {
		case model.HeaderImage:
			p.Image = ref
		case model.HeaderVideo:
			p.Video = ref
		case model.HeaderDocument:
			ref.Filename = h.Filename
			p.Document = ref
		}
		return &component{kind: "header", params: []parameter{p}}, nil
	default:
		return nil, appErrors.NewBuildError(provider, "header", "unsupported header kind "+string(h.Kind))
	}
}

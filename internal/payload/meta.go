package payload

import (
	"encoding/json"
	"strconv"

	"github.com/unclebandit/wa-dispatch/internal/model"
)

// MetaBuilder renders the WhatsApp Cloud API template body. Button sub-type
// is sent as "sub_type" and the button index as a string.
type MetaBuilder struct{}

type metaEnvelope struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Template         metaTemplate `json:"template"`
}

type metaTemplate struct {
	Name       string          `json:"name"`
	Language   language        `json:"language"`
	Components []metaComponent `json:"components,omitempty"`
}

type metaComponent struct {
	Type       string      `json:"type"`
	SubType    string      `json:"sub_type,omitempty"`
	Index      string      `json:"index,omitempty"`
	Parameters []parameter `json:"parameters"`
}

func (MetaBuilder) Build(msg Message) ([]byte, error) {
	comps, err := components(string(model.ProviderMetaCloud), msg)
	if err != nil {
		return nil, err
	}

	out := make([]metaComponent, 0, len(comps))
	for _, c := range comps {
		mc := metaComponent{Type: c.kind, Parameters: c.params}
		if c.kind == "button" {
			mc.SubType = c.subType
			mc.Index = strconv.Itoa(c.index)
		}
		out = append(out, mc)
	}

	return json.Marshal(metaEnvelope{
		MessagingProduct: "whatsapp",
		To:               msg.To,
		Type:             "template",
		Template: metaTemplate{
			Name:       msg.TemplateName,
			Language:   language{Code: msg.LanguageCode},
			Components: out,
		},
	})
}

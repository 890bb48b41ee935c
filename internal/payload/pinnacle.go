package payload

import (
	"encoding/json"

	"github.com/unclebandit/wa-dispatch/internal/model"
)

// PinnacleBuilder renders the Pinnacle template body. It matches the Cloud API
// shape except that the button sub-type is "subType" and the index is a
// number.
type PinnacleBuilder struct{}

type pinnacleEnvelope struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Template         pinnacleTemplate `json:"template"`
}

type pinnacleTemplate struct {
	Name       string              `json:"name"`
	Language   language            `json:"language"`
	Components []pinnacleComponent `json:"components,omitempty"`
}

type pinnacleComponent struct {
	Type       string      `json:"type"`
	SubType    string      `json:"subType,omitempty"`
	Index      *int        `json:"index,omitempty"`
	Parameters []parameter `json:"parameters"`
}

func (PinnacleBuilder) Build(msg Message) ([]byte, error) {
	comps, err := components(string(model.ProviderPinnacle), msg)
	if err != nil {
		return nil, err
	}

	out := make([]pinnacleComponent, 0, len(comps))
	for _, c := range comps {
		pc := pinnacleComponent{Type: c.kind, Parameters: c.params}
		if c.kind == "button" {
			idx := c.index
			pc.SubType = c.subType
			pc.Index = &idx
		}
		out = append(out, pc)
	}

	return json.Marshal(pinnacleEnvelope{
		MessagingProduct: "whatsapp",
		To:               msg.To,
		Type:             "template",
		Template: pinnacleTemplate{
			Name:       msg.TemplateName,
			Language:   language{Code: msg.LanguageCode},
			Components: out,
		},
	})
}

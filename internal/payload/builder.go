package payload

import (
	"fmt"

	appErrors "github.com/unclebandit/wa-dispatch/internal/errors"
	"github.com/unclebandit/wa-dispatch/internal/model"
)

// Builder renders a canonical Message into a provider's wire JSON.
type Builder interface {
	Build(msg Message) ([]byte, error)
}

var builders = map[model.Provider]Builder{
	model.ProviderMetaCloud: MetaBuilder{},
	model.ProviderPinnacle:  PinnacleBuilder{},
}

// For returns the builder registered for provider.
func For(provider model.Provider) (Builder, error) {
	b, ok := builders[provider]
	if !ok {
		return nil, appErrors.NewBuildError(string(provider), "provider", fmt.Sprintf("no payload builder for %q", provider))
	}
	return b, nil
}

// BuildItem decodes item and renders it with the builder for its provider.
func BuildItem(item model.OutboundItem) ([]byte, error) {
	b, err := For(item.Provider)
	if err != nil {
		return nil, err
	}
	msg, err := FromItem(item)
	if err != nil {
		return nil, err
	}
	return b.Build(msg)
}

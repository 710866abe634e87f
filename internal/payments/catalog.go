package payments

import (
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/commerce"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// Provider is a payment provider enabled for the cart's region, tagged with its
// capability class.
type Provider struct {
	ID   string             `json:"id"`
	Kind enums.ProviderKind `json:"kind"`
}

// CreatesSession reports whether a pending payment session must exist before the
// instrument can be entered.
func (p Provider) CreatesSession() bool {
	return p.Kind == enums.ProviderSessionBased
}

// CollectsInstrument reports whether the provider's own widget collects the instrument
// and produces Card Payment Data.
func (p Provider) CollectsInstrument() bool {
	return p.Kind == enums.ProviderWalletHosted
}

// RequiresSubmission reports whether the submit action drives the move to review. The
// wallet widget drives it itself.
func (p Provider) RequiresSubmission() bool {
	return p.Kind != enums.ProviderWalletHosted
}

// Catalog classifies provider ids by prefix. Classification happens here only.
type Catalog struct {
	sessionPrefixes []string
	walletPrefixes  []string
}

func NewCatalog(cfg config.ProvidersConfig) *Catalog {
	return &Catalog{
		sessionPrefixes: cleanPrefixes(cfg.SessionPrefixes),
		walletPrefixes:  cleanPrefixes(cfg.WalletPrefixes),
	}
}

// Classify tags a single provider id.
func (c *Catalog) Classify(providerID string) Provider {
	id := strings.TrimSpace(providerID)
	kind := enums.ProviderGeneric
	switch {
	case hasAnyPrefix(id, c.sessionPrefixes):
		kind = enums.ProviderSessionBased
	case hasAnyPrefix(id, c.walletPrefixes):
		kind = enums.ProviderWalletHosted
	}
	return Provider{ID: id, Kind: kind}
}

// Resolve tags every descriptor, keeping the backend's order.
func (c *Catalog) Resolve(descriptors []commerce.ProviderDescriptor) []Provider {
	out := make([]Provider, 0, len(descriptors))
	for _, d := range descriptors {
		if strings.TrimSpace(d.ID) == "" {
			continue
		}
		out = append(out, c.Classify(d.ID))
	}
	return out
}

func cleanPrefixes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hasAnyPrefix(id string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

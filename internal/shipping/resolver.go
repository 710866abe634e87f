package shipping

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-checkout/internal/commerce"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
)

type optionLister interface {
	ListShippingOptions(ctx context.Context, cartID string) ([]commerce.ShippingOption, error)
	CalculateShippingPrice(ctx context.Context, optionID, cartID string) (commerce.CalculatedPrice, error)
}

// Option is a shipping option as offered to the buyer. Price is nil while a calculated
// price could not be resolved, in which case the option is disabled.
type Option struct {
	ID                    string             `json:"id"`
	Name                  string             `json:"name"`
	PriceType             string             `json:"price_type"`
	Price                 *decimal.Decimal   `json:"price"`
	Fulfillment           string             `json:"fulfillment_type"`
	Location              *commerce.Location `json:"location,omitempty"`
	InsufficientInventory bool               `json:"insufficient_inventory,omitempty"`
	Disabled              bool               `json:"disabled"`
}

// Options is the shipping step view for one cart.
type Options struct {
	Delivery         []Option `json:"delivery"`
	Pickup           []Option `json:"pickup"`
	PickupSelected   bool     `json:"pickup_selected"`
	SelectedOptionID string   `json:"selected_option_id,omitempty"`
	SelectionPending bool     `json:"selection_pending,omitempty"`
	CanContinue      bool     `json:"can_continue"`
}

// ShowSelected marks optionID as the selected option and recomputes the pickup toggle.
func (o *Options) ShowSelected(optionID string) {
	o.SelectedOptionID = optionID
	o.PickupSelected = false
	for _, opt := range o.Pickup {
		if opt.ID == optionID {
			o.PickupSelected = true
			return
		}
	}
}

// Resolver lists the options of a cart and prices the calculated ones.
type Resolver struct {
	api     optionLister
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
}

func NewResolver(api optionLister, m *metrics.CheckoutMetrics, logg *logger.Logger) *Resolver {
	return &Resolver{api: api, metrics: m, logg: logg}
}

// Resolve partitions the cart's options into delivery and pickup sets and resolves every
// calculated delivery price concurrently. A failed calculation never aborts the view.
func (r *Resolver) Resolve(ctx context.Context, cart *commerce.Cart) (*Options, error) {
	if cart == nil {
		return nil, commerce.ErrMissingCartID
	}
	raw, err := r.api.ListShippingOptions(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	out := &Options{
		Delivery:    []Option{},
		Pickup:      []Option{},
		CanContinue: cart.HasShippingMethod(),
	}

	var calculated []int
	for _, opt := range raw {
		view := toOption(opt)
		if opt.IsPickup() {
			view.Disabled = opt.InsufficientInventory
			out.Pickup = append(out.Pickup, view)
			continue
		}
		if opt.IsCalculated() {
			view.Price = nil
			view.Disabled = true
			calculated = append(calculated, len(out.Delivery))
		}
		out.Delivery = append(out.Delivery, view)
	}

	if current := cart.CurrentShippingMethod(); current != nil {
		out.ShowSelected(current.ShippingOptionID)
	}
	r.resolvePrices(ctx, cart.ID, out.Delivery, calculated)
	return out, nil
}

func (r *Resolver) resolvePrices(ctx context.Context, cartID string, options []Option, idx []int) {
	if len(idx) == 0 {
		return
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	for _, i := range idx {
		opt := &options[i]
		g.Go(func() error {
			price, err := r.api.CalculateShippingPrice(ctx, opt.ID, cartID)
			r.metrics.IncPriceCalculation(err == nil)
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("option %s: %w", opt.ID, err))
				mu.Unlock()
				return nil
			}
			amount := price.Amount
			opt.Price = &amount
			opt.Disabled = false
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil && r.logg != nil {
		logCtx := r.logg.WithFields(ctx, map[string]any{
			"cart_id":  cartID,
			"failures": len(multierr.Errors(errs)),
		})
		r.logg.Error(logCtx, "shipping.price_calculation_failed", errs)
	}
}

func toOption(opt commerce.ShippingOption) Option {
	return Option{
		ID:                    opt.ID,
		Name:                  opt.Name,
		PriceType:             opt.PriceType.String(),
		Price:                 opt.Amount,
		Fulfillment:           opt.Fulfillment.String(),
		Location:              opt.Location,
		InsufficientInventory: opt.InsufficientInventory,
	}
}

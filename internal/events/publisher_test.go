package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	data  []byte
	attrs map[string]string
	err   error
}

func (c *captureSender) Send(_ context.Context, data []byte, attrs map[string]string) error {
	c.data = data
	c.attrs = attrs
	return c.err
}

func TestCheckoutCompletedWrapsEnvelope(t *testing.T) {
	sender := &captureSender{}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pub := &Publisher{sender: sender, now: func() time.Time { return fixed }}

	err := pub.CheckoutCompleted(context.Background(), CheckoutCompleted{
		CartID:      "cart_1",
		OrderID:     "order_1",
		ProviderID:  "pp_mercadopago",
		Path:        "wallet",
		PaymentID:   "pay_1",
		RedirectURL: "/order/confirmed/order_1",
	})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(sender.data, &env))
	assert.Equal(t, 1, env.Version)
	assert.Equal(t, TypeCheckoutCompleted, env.EventType)
	assert.True(t, env.OccurredAt.Equal(fixed))
	assert.NotEmpty(t, env.EventID)

	var data CheckoutCompleted
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "order_1", data.OrderID)

	assert.Equal(t, env.EventID, sender.attrs["event_id"])
	assert.Equal(t, "cart_1", sender.attrs["cart_id"])
}

func TestCheckoutCompletedPropagatesSendError(t *testing.T) {
	pub := &Publisher{sender: &captureSender{err: errors.New("unavailable")}, now: time.Now}
	err := pub.CheckoutCompleted(context.Background(), CheckoutCompleted{CartID: "cart_1"})
	assert.Error(t, err)
}

func TestDisabledPublisherIsNoop(t *testing.T) {
	assert.NoError(t, NewPublisher(nil, nil).CheckoutCompleted(context.Background(), CheckoutCompleted{}))
	var nilPub *Publisher
	assert.NoError(t, nilPub.CheckoutCompleted(context.Background(), CheckoutCompleted{}))
}

package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const knownSignature = "b6c247d87924c16697d8cd4d0dcc5beda20c415a770157e8292db099de365613"

func TestSignPayment_KnownVector(t *testing.T) {
	assert.Equal(t, knownSignature, SignPayment("test_secret", "order_Abc123", "pay_Xyz789"))
}

func TestVerifySignature(t *testing.T) {
	assert.True(t, VerifySignature("test_secret", "order_Abc123", "pay_Xyz789", knownSignature))

	cases := map[string][4]string{
		"wrong secret":     {"other_secret", "order_Abc123", "pay_Xyz789", knownSignature},
		"wrong order":      {"test_secret", "order_Abc124", "pay_Xyz789", knownSignature},
		"wrong payment":    {"test_secret", "order_Abc123", "pay_Xyz780", knownSignature},
		"uppercase hex":    {"test_secret", "order_Abc123", "pay_Xyz789", strings.ToUpper(knownSignature)},
		"truncated":        {"test_secret", "order_Abc123", "pay_Xyz789", knownSignature[:63]},
		"empty signature":  {"test_secret", "order_Abc123", "pay_Xyz789", ""},
		"empty secret":     {"", "order_Abc123", "pay_Xyz789", SignPayment("", "order_Abc123", "pay_Xyz789")},
		"separator shifts": {"test_secret", "order_Abc123|pay", "_Xyz789", knownSignature},
	}
	for name, c := range cases {
		assert.False(t, VerifySignature(c[0], c[1], c[2], c[3]), name)
	}
}

func TestPaymentService_Verify(t *testing.T) {
	svc := NewPaymentService(nil, "test_secret", zap.NewNop())
	ctx := context.Background()

	res, err := svc.Verify(ctx, VerifyPaymentInput{
		RazorpayOrderID:   "order_Abc123",
		RazorpayPaymentID: "pay_Xyz789",
		RazorpaySignature: knownSignature,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Payment verified successfully", res.Message)
	assert.Equal(t, "pay_Xyz789", res.PaymentID)

	_, err = svc.Verify(ctx, VerifyPaymentInput{
		RazorpayOrderID:   "order_Abc123",
		RazorpayPaymentID: "pay_Xyz789",
		RazorpaySignature: "deadbeef",
	})
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "Payment verification failed", messageOf(t, err))
}

func TestPaymentService_VerifyWithoutSecret(t *testing.T) {
	svc := NewPaymentService(nil, "", zap.NewNop())

	_, err := svc.Verify(context.Background(), VerifyPaymentInput{RazorpaySignature: knownSignature})
	assert.Equal(t, KindUpstream, KindOf(err))
}

func TestCreateGatewayOrder(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewPaymentService(gw, "test_secret", zap.NewNop())
	svc.now = func() time.Time { return time.UnixMilli(1767225600000) }

	order, err := svc.CreateGatewayOrder(context.Background(), decimal.RequireFromString("499.99"))
	require.NoError(t, err)

	assert.EqualValues(t, 49999, gw.amount)
	assert.Equal(t, "INR", gw.currency)
	assert.Equal(t, "order_1767225600000", gw.receipt)
	assert.Equal(t, "order_Test1", order.ID)
	assert.Equal(t, "rzp_test_key", order.KeyID)
}

func TestCreateGatewayOrder_Errors(t *testing.T) {
	ctx := context.Background()

	svc := NewPaymentService(&fakeGateway{}, "s", zap.NewNop())
	for _, amount := range []string{"0", "-5"} {
		_, err := svc.CreateGatewayOrder(ctx, decimal.RequireFromString(amount))
		assert.Equal(t, KindValidation, KindOf(err), amount)
	}

	svc = NewPaymentService(nil, "s", zap.NewNop())
	_, err := svc.CreateGatewayOrder(ctx, decimal.NewFromInt(10))
	assert.Equal(t, KindUpstream, KindOf(err))

	svc = NewPaymentService(&fakeGateway{err: errProviderDown}, "s", zap.NewNop())
	_, err = svc.CreateGatewayOrder(ctx, decimal.NewFromInt(10))
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.ErrorIs(t, err, errProviderDown)
}

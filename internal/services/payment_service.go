package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/utils"
)

const paymentCurrency = "INR"

// PaymentService talks to the payment gateway and checks the signatures it
// hands back to clients.
type PaymentService struct {
	gateway PaymentGateway
	secret  string
	logger  *zap.Logger
	now     func() time.Time
}

func NewPaymentService(gateway PaymentGateway, secret string, logger *zap.Logger) *PaymentService {
	return &PaymentService{gateway: gateway, secret: secret, logger: logger, now: time.Now}
}

// SignPayment returns the lowercase hex HMAC-SHA256 of
// "<orderID>|<paymentID>" under secret.
func SignPayment(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is the gateway's signature for
// the order and payment pair. The comparison is constant time.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := SignPayment(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyPaymentInput is the gateway callback data the client relays.
type VerifyPaymentInput struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// VerifyPaymentResult is returned for a valid signature.
type VerifyPaymentResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PaymentID string `json:"paymentId,omitempty"`
}

// Verify checks a relayed payment signature.
func (s *PaymentService) Verify(ctx context.Context, in VerifyPaymentInput) (*VerifyPaymentResult, error) {
	_, span := utils.StartSpan(ctx, "PaymentService.Verify")
	defer span.End()

	if s.secret == "" {
		return nil, Upstream("Payment verification error", nil)
	}
	if !VerifySignature(s.secret, in.RazorpayOrderID, in.RazorpayPaymentID, in.RazorpaySignature) {
		utils.PaymentVerificationsTotal.WithLabelValues("rejected").Inc()
		return nil, Validation("Payment verification failed")
	}

	utils.PaymentVerificationsTotal.WithLabelValues("verified").Inc()
	return &VerifyPaymentResult{
		Success:   true,
		Message:   "Payment verified successfully",
		PaymentID: in.RazorpayPaymentID,
	}, nil
}

// CreateGatewayOrder opens a pending INR charge for amount rupees.
func (s *PaymentService) CreateGatewayOrder(ctx context.Context, amount decimal.Decimal) (*GatewayOrder, error) {
	ctx, span := utils.StartSpan(ctx, "PaymentService.CreateGatewayOrder")
	defer span.End()

	if !amount.IsPositive() {
		return nil, Validation("Invalid amount")
	}
	if s.gateway == nil {
		return nil, Upstream("Failed to create payment order", nil)
	}

	paise := amount.Shift(2).Round(0).IntPart()
	receipt := "order_" + strconv.FormatInt(s.now().UnixMilli(), 10)

	order, err := s.gateway.CreateOrder(ctx, paise, paymentCurrency, receipt)
	if err != nil {
		s.logger.Error("payment gateway order failed", zap.Error(err), zap.String("receipt", receipt))
		return nil, Upstream("Failed to create payment order", err)
	}
	if order.KeyID == "" {
		order.KeyID = s.gateway.KeyID()
	}
	return order, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

var errProviderDown = errors.New("provider down")

type sentSMS struct {
	To   string
	Body string
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []sentSMS
	err  error
}

func (f *fakeSMS) SendSMS(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentSMS{To: to, Body: body})
	return nil
}

func (f *fakeSMS) last() sentSMS {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentSMS{}
	}
	return f.sent[len(f.sent)-1]
}

type fakeMailer struct {
	to      []string
	subject string
	err     error
}

func (f *fakeMailer) SendMail(_ context.Context, to, subject, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	f.subject = subject
	return nil
}

type fakeAdmin struct {
	orders []OrderNotification
	err    error
}

func (f *fakeAdmin) NotifyNewOrder(_ context.Context, order OrderNotification) error {
	if f.err != nil {
		return f.err
	}
	f.orders = append(f.orders, order)
	return nil
}

type fakeEvents struct {
	events []OrderEvent
	err    error
}

func (f *fakeEvents) Publish(_ context.Context, event OrderEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type fakeGateway struct {
	amount   int64
	currency string
	receipt  string
	err      error
}

func (f *fakeGateway) CreateOrder(_ context.Context, amountMinor int64, currency, receipt string) (*GatewayOrder, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.amount, f.currency, f.receipt = amountMinor, currency, receipt
	return &GatewayOrder{ID: "order_Test1", Amount: amountMinor, Currency: currency}, nil
}

func (f *fakeGateway) KeyID() string { return "rzp_test_key" }

type fakeUploader struct {
	mu      sync.Mutex
	folders []string
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, folder, filename string, file io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.ReadAll(file); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.folders = append(f.folders, folder)
	f.mu.Unlock()
	return fmt.Sprintf("https://cdn.test/%s/%s", folder, filename), nil
}

type fakeLimiter struct {
	allow bool
	err   error
}

func (f fakeLimiter) Allow(context.Context, string) (bool, error) {
	return f.allow, f.err
}

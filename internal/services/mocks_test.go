package services

import (
	"github.com/ruralpay/billpay/internal/notifications"
	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyInvoicePaid(event notifications.InvoicePaidEvent) {
	m.Called(event)
}

package notifications

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// InvoicePaidEvent is delivered when a bill payment settles an external invoice.
type InvoicePaidEvent struct {
	InvoiceNumber string          `json:"invoiceNumber"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transactionId"`
	PaymentDate   time.Time       `json:"paymentDate"`
}

type Sender interface {
	Send(ctx context.Context, url string, payload any) error
}

// Dispatcher delivers invoice notifications out of band. Delivery is
// best-effort: no retry, and a send in flight is lost if the process dies.
type Dispatcher struct {
	sender  Sender
	url     string
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, url string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{sender: sender, url: url, timeout: timeout}
}

// NotifyInvoicePaid returns immediately; the send runs in its own goroutine
// detached from the caller's context.
func (d *Dispatcher) NotifyInvoicePaid(event InvoicePaidEvent) {
	if d.url == "" {
		log.Printf("[WEBHOOK] Invoice webhook not configured, skipping %s", event.InvoiceNumber)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, d.url, event); err != nil {
			log.Printf("[WEBHOOK] Invoice notification failed for %s (tx %s): %v", event.InvoiceNumber, event.TransactionID, err)
			return
		}
		log.Printf("[WEBHOOK] Invoice %s notified for transaction %s", event.InvoiceNumber, event.TransactionID)
	}()
}

// Wait blocks until in-flight notifications finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

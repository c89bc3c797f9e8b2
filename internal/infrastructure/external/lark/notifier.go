package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/site-invoices/internal/application/port"
	"github.com/garyjia/site-invoices/internal/domain/entity"
	"github.com/garyjia/site-invoices/internal/domain/event"
)

// MessageSender delivers a raw Lark message
type MessageSender interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// Notifier implements port.Notifier by posting to a Lark group chat
type Notifier struct {
	sender MessageSender
	chatID string
	logger *zap.Logger
}

// NewNotifier creates a notifier posting to chatID
func NewNotifier(sender MessageSender, chatID string, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		chatID: chatID,
		logger: logger,
	}
}

// InvoiceSynced posts a short summary of a synchronized invoice
func (n *Notifier) InvoiceSynced(ctx context.Context, invoice *entity.Invoice, created bool) error {
	return n.post(ctx, invoice, summarize(invoice, created))
}

// HandleEvent posts ledger events worth a chat message. Events without an
// invoice and removals, which never reach the store of record, are ignored.
func (n *Notifier) HandleEvent(ctx context.Context, evt *event.Event) error {
	if evt.Invoice == nil {
		return nil
	}

	switch evt.Type {
	case event.TypeInvoiceCreated, event.TypeInvoiceUpdated:
		return n.InvoiceSynced(ctx, evt.Invoice, evt.Type == event.TypeInvoiceCreated)
	case event.TypeStatusChanged:
		text := fmt.Sprintf("Invoice %s %s %s: %s -> %s",
			evt.Invoice.VendorName,
			evt.Invoice.EffectiveTotal().StringFixed(2),
			evt.Invoice.Currency,
			evt.GetPayloadString(event.KeyPreviousStatus),
			evt.Invoice.Status)
		return n.post(ctx, evt.Invoice, text)
	default:
		return nil
	}
}

func (n *Notifier) post(ctx context.Context, invoice *entity.Invoice, text string) error {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	messageID, err := n.sender.SendMessage(ctx, "chat_id", n.chatID, "text", string(content))
	if err != nil {
		return err
	}

	n.logger.Debug("Sync notification sent",
		zap.String("message_id", messageID),
		zap.String("invoice_id", invoice.ID.Value()))
	return nil
}

func summarize(inv *entity.Invoice, created bool) string {
	verb := "updated"
	if created {
		verb = "recorded"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Invoice %s: %s %s %s", verb, inv.VendorName, inv.EffectiveTotal().StringFixed(2), inv.Currency)
	if inv.InvoiceNumber != "" {
		fmt.Fprintf(&b, " (#%s)", inv.InvoiceNumber)
	}
	if inv.ProjectName != "" {
		fmt.Fprintf(&b, "\nProject: %s", inv.ProjectName)
	}
	fmt.Fprintf(&b, "\nStatus: %s", inv.Status)
	if inv.DueDate != nil {
		fmt.Fprintf(&b, "\nDue: %s", inv.DueDate.Format("2006-01-02"))
	}
	return b.String()
}

var _ port.Notifier = (*Notifier)(nil)

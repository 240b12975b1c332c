package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"

	"github.com/judyrop/catering-backend/internal/ctxmanage"
	"github.com/judyrop/catering-backend/internal/logkey"
	"github.com/judyrop/catering-backend/models"
)

// Notifier is told about every committed order.
type Notifier interface {
	OrderPlaced(ctx context.Context, order models.Order) error
}

type LogNotifier struct{}

func (LogNotifier) OrderPlaced(ctx context.Context, order models.Order) error {
	slog.Info("order placed",
		slog.String(logkey.TraceID, ctxmanage.TraceID(ctx)),
		slog.String(logkey.OrderID, order.ID),
		slog.Float64("total_amount", order.TotalAmount),
		slog.Int("items", len(order.Items)),
	)
	return nil
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier mails the kitchen a summary of each new order.
type SMTPNotifier struct {
	addr     string
	from     string
	to       string
	auth     smtp.Auth
	sendMail sendMailFunc
}

func NewSMTPNotifier(addr, from, to, user, password string) *SMTPNotifier {
	n := &SMTPNotifier{addr: addr, from: from, to: to, sendMail: smtp.SendMail}
	if user != "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		n.auth = smtp.PlainAuth("", user, password, host)
	}
	return n
}

func (n *SMTPNotifier) OrderPlaced(_ context.Context, order models.Order) error {
	msg := "From: " + n.from + "\r\n" +
		"To: " + n.to + "\r\n" +
		"Subject: New order " + order.ID + "\r\n\r\n" +
		orderSummary(order)
	if err := n.sendMail(n.addr, n.auth, n.from, []string{n.to}, []byte(msg)); err != nil {
		return fmt.Errorf("send order mail: %w", err)
	}
	return nil
}

func orderSummary(order models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s for %s (%s)\r\n", order.ID, order.CustomerName, order.Phone)
	fmt.Fprintf(&b, "Address: %s\r\n\r\n", order.Address)
	for _, item := range order.Items {
		name := item.Product.Name
		if name == "" {
			name = item.ProductID
		}
		fmt.Fprintf(&b, "%d x %s @ %.2f\r\n", item.Quantity, name, item.Price)
	}
	fmt.Fprintf(&b, "\r\nTotal: %.2f\r\n", order.TotalAmount)
	return b.String()
}

// Package notify доставляет уведомления поставщикам и директорам.
// Доставка не влияет на исход операций: ошибки только логируются.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Message - уведомление для внешнего сервиса рассылки.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Notifier отправляет одно уведомление.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier пишет уведомления в лог, когда брокер не настроен.
type LogNotifier struct {
	Logger *slog.Logger
}

// Send записывает уведомление в лог.
func (n LogNotifier) Send(_ context.Context, msg Message) error {
	n.Logger.Info("notification", "to", msg.To, "subject", msg.Subject)
	return nil
}

// NATSNotifier публикует уведомления в subject брокера NATS.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
}

// NewNATSNotifier подключается к брокеру.
func NewNATSNotifier(url, subject string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url, nats.Name("procurement-service"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return &NATSNotifier{conn: conn, subject: subject}, nil
}

// Send публикует сообщение в формате JSON.
func (n *NATSNotifier) Send(_ context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return n.conn.Publish(n.subject, data)
}

// Close сбрасывает буфер и закрывает соединение.
func (n *NATSNotifier) Close() {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
}

// Dispatcher отправляет уведомления в фоне по принципу fire-and-forget.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewDispatcher создает новый экземпляр Dispatcher.
func NewDispatcher(notifier Notifier, logger *slog.Logger, timeout time.Duration) *Dispatcher {
	return &Dispatcher{notifier: notifier, logger: logger, timeout: timeout}
}

// Dispatch запускает отправку и сразу возвращает управление.
func (d *Dispatcher) Dispatch(msg Message) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.notifier.Send(ctx, msg); err != nil {
			d.logger.Warn("notification delivery failed", "to", msg.To, "subject", msg.Subject, "error", err)
		}
	}()
}

// Wait дожидается завершения отправленных уведомлений.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

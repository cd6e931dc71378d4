package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier публикует события заказов в kafka асинхронно: NotifyOrderEvent
// кладёт сообщение в буферизованный канал, отдельная горутина пишет в брокер.
// Переполненный буфер роняет сообщение, а не блокирует запрос.
type KafkaNotifier struct {
	log     *slog.Logger
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewKafkaNotifier(log *slog.Logger, brokers []string, topic string, buf int) *KafkaNotifier {
	return &KafkaNotifier{
		log: log,
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start запускает горутину-писателя. При отмене контекста дописывает остаток
// буфера и закрывает writer.
func (n *KafkaNotifier) Start(ctx context.Context) {
	go func() {
		defer close(n.closeCh)
		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case m := <-n.inbox:
						n.write(m)
					default:
						_ = n.w.Close()
						return
					}
				}
			case m := <-n.inbox:
				n.write(m)
			}
		}
	}()
}

func (n *KafkaNotifier) write(m kafka.Message) {
	if err := n.w.WriteMessages(context.Background(), m); err != nil {
		n.log.Error("failed to publish notification", slog.Any("error", err))
	}
}

// WaitClosed блокируется до завершения горутины-писателя.
func (n *KafkaNotifier) WaitClosed() { <-n.closeCh }

func (n *KafkaNotifier) NotifyOrderEvent(ctx context.Context, event OrderEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		n.log.Error("failed to marshal notification", slog.Any("error", err))
		return
	}
	msg := kafka.Message{
		Key:   []byte(event.OrderNo),
		Value: value,
		Time:  time.Now(),
	}
	select {
	case n.inbox <- msg:
	default:
		n.log.Warn("notification buffer full, event dropped",
			slog.String("event", event.Event),
			slog.String("orderNo", event.OrderNo))
	}
}

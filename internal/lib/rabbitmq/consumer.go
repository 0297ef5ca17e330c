package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/robolike/portal/internal/lib/sl"
)

// Acknowledger подтверждение доставки. Реализуется amqp.Delivery.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// requeueDelay пауза перед возвратом сообщения в очередь после ошибки.
var requeueDelay = 2 * time.Second

// HandleDelivery вызывает handler и подтверждает сообщение.
// После первой ошибки сообщение возвращается в очередь с задержкой requeueDelay.
// Повторная ошибка на уже переотправленном сообщении отбрасывает его.
func HandleDelivery(ctx context.Context, log *slog.Logger, d Acknowledger, body []byte,
	redelivered bool, handler func([]byte) error) {
	err := handler(body)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("failed to ack message", sl.Err(ackErr))
		}
		return
	}

	if redelivered {
		log.Error("handler failed on redelivered message, dropping", sl.Err(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
		return
	}

	log.Warn("handler failed, requeue", sl.Err(err), slog.Duration("delay", requeueDelay))
	timer := time.NewTimer(requeueDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	if nackErr := d.Nack(false, true); nackErr != nil {
		log.Error("failed to nack message", sl.Err(nackErr))
	}
}

// ConsumerMessage читает очередь до отмены ctx или закрытия канала.
// Одновременно обрабатывается не больше prefetch сообщений.
// Возвращается после завершения всех начатых обработчиков.
func ConsumerMessage(ctx context.Context, log *slog.Logger, ch *amqp.Channel, queueName string, handler func([]byte) error) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sem := make(chan struct{}, prefetch)
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case d, ok := <-delivery:
			if !ok {
				return nil
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer func() {
					<-sem
					wg.Done()
				}()
				HandleDelivery(ctx, log, d, d.Body, d.Redelivered, handler)
			}(d)
		case <-ctx.Done():
			return nil
		}
	}
}

// Package worker - консьюмер очереди воркфлоу.
// Исполняет раны по одному (prefetch=1), уважает flow-control заголовки
// сообщения и повторяет восстановимые сбои перепубликацией с инкрементом
// счетчика попыток. Задача с исчерпанным flow-окном не держит голову
// очереди: она откладывается в wait-очередь с TTL и возвращается к началу
// следующего окна, не задерживая раны других ключей. Исчерпанные и
// невосстановимые раны завершаются со статусом failed; исчерпанные
// дополнительно уходят в DLQ.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"after2am-server/internal/workflow"
)

// WorkflowHandler исполняет один ран воркфлоу.
type WorkflowHandler func(ctx context.Context, envelope workflow.TaskEnvelope) error

// Заголовки должны совпадать с публикующей стороной (workflow.Client).
const (
	headerFlowKey      = "x-flow-key"
	headerFlowRate     = "x-flow-rate"
	headerFlowPeriodMS = "x-flow-period-ms"
	headerAttempt      = "x-attempt"
)

// publishFunc публикует одно сообщение в default exchange по routing key.
type publishFunc func(ctx context.Context, routingKey string, msg amqp.Publishing) error

// Consumer слушает очередь воркфлоу и диспетчеризует раны по имени.
type Consumer struct {
	conn          *amqp.Connection
	store         workflow.RunStore
	pacer         workflow.Pacer
	queueName     string
	waitQueueName string
	dlxName       string
	dlqName       string
	prefetch      int
	maxRetry      int
	handlers      map[string]WorkflowHandler
	logger        *zap.Logger

	channel     *amqp.Channel
	publish     publishFunc
	stopChannel chan struct{}
	done        chan struct{}
}

// NewConsumer создает консьюмер воркфлоу.
func NewConsumer(
	conn *amqp.Connection,
	store workflow.RunStore,
	pacer workflow.Pacer,
	queueName, waitQueueName, dlxName, dlqName string,
	prefetch, maxRetry int,
	logger *zap.Logger,
) *Consumer {
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{
		conn:          conn,
		store:         store,
		pacer:         pacer,
		queueName:     queueName,
		waitQueueName: waitQueueName,
		dlxName:       dlxName,
		dlqName:       dlqName,
		prefetch:      prefetch,
		maxRetry:      maxRetry,
		handlers:      make(map[string]WorkflowHandler),
		logger:        logger.Named("WorkflowConsumer"),
		stopChannel:   make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Register привязывает обработчик к имени воркфлоу.
// Вызывается до Start, конкурентная регистрация не поддерживается.
func (c *Consumer) Register(workflowName string, handler WorkflowHandler) {
	c.handlers[workflowName] = handler
}

// Start объявляет топологию и запускает цикл потребления.
func (c *Consumer) Start(ctx context.Context) error {
	var err error
	c.channel, err = c.conn.Channel()
	if err != nil {
		return fmt.Errorf("consumer: не удалось открыть канал RabbitMQ: %w", err)
	}

	if err := c.declareTopology(); err != nil {
		_ = c.channel.Close()
		return err
	}

	c.publish = func(ctx context.Context, routingKey string, msg amqp.Publishing) error {
		return c.channel.PublishWithContext(ctx,
			"",         // exchange (default)
			routingKey, // routing key
			false,      // mandatory
			false,      // immediate
			msg)
	}

	if err := c.channel.Qos(c.prefetch, 0, false); err != nil {
		_ = c.channel.Close()
		return fmt.Errorf("consumer: не удалось установить QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.queueName,
		"workflow-consumer", // consumer tag
		false,               // auto-ack = false
		false,               // exclusive
		false,               // no-local
		false,               // no-wait
		nil,                 // args
	)
	if err != nil {
		_ = c.channel.Close()
		return fmt.Errorf("consumer: не удалось зарегистрировать консьюмера: %w", err)
	}

	c.logger.Info("Workflow consumer started",
		zap.String("queue", c.queueName),
		zap.Int("prefetch", c.prefetch))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Panic recovered in consumer goroutine", zap.Any("panic", r))
			}
			close(c.done)
			if c.channel != nil {
				_ = c.channel.Close()
			}
		}()

		for {
			select {
			case d, ok := <-msgs:
				if !ok {
					c.logger.Info("Delivery channel closed, consumer goroutine exiting")
					return
				}
				c.handleDelivery(ctx, d)
			case <-ctx.Done():
				c.logger.Info("Context cancelled, stopping consumer goroutine")
				return
			case <-c.stopChannel:
				c.logger.Info("Stop signal received, consumer goroutine exiting")
				return
			}
		}
	}()

	return nil
}

// declareTopology объявляет DLX, DLQ и основную очередь.
// Параметры основной очереди должны совпадать с публикующей стороной.
func (c *Consumer) declareTopology() error {
	if err := c.channel.ExchangeDeclare(
		c.dlxName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("consumer: не удалось объявить DLX '%s': %w", c.dlxName, err)
	}

	if _, err := c.channel.QueueDeclare(
		c.dlqName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("consumer: не удалось объявить DLQ '%s': %w", c.dlqName, err)
	}

	if err := c.channel.QueueBind(c.dlqName, "dlq", c.dlxName, false, nil); err != nil {
		return fmt.Errorf("consumer: не удалось привязать DLQ к DLX: %w", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    c.dlxName,
		"x-dead-letter-routing-key": "dlq",
	}
	if _, err := c.channel.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		args,
	); err != nil {
		return fmt.Errorf("consumer: не удалось объявить очередь '%s': %w", c.queueName, err)
	}

	// Wait-очередь без консьюмеров: отложенные задачи лежат здесь до
	// истечения per-message TTL и возвращаются в основную очередь.
	waitArgs := amqp.Table{
		"x-dead-letter-exchange":    "", // default exchange
		"x-dead-letter-routing-key": c.queueName,
	}
	if _, err := c.channel.QueueDeclare(
		c.waitQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		waitArgs,
	); err != nil {
		return fmt.Errorf("consumer: не удалось объявить wait-очередь '%s': %w", c.waitQueueName, err)
	}
	return nil
}

// handleDelivery обрабатывает одно сообщение очереди.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	var envelope workflow.TaskEnvelope
	if err := json.Unmarshal(d.Body, &envelope); err != nil {
		c.logger.Error("Failed to unmarshal task envelope, dead-lettering",
			zap.Error(err),
			zap.ByteString("body", d.Body))
		_ = d.Nack(false, false)
		return
	}

	log := c.logger.With(
		zap.String("workflow", envelope.Workflow),
		zap.String("runID", envelope.RunID.String()))

	flowKey, rate, period, attempt := parseFlowHeaders(d.Headers)

	// Flow control применяется ДО захвата рана. Исчерпанное окно не
	// блокирует голову очереди: задача уходит в wait-очередь до начала
	// следующего окна, раны других ключей продолжают обрабатываться.
	ok, retryAfter, err := c.pacer.Acquire(ctx, flowKey, rate, period)
	if err != nil {
		log.Warn("Flow pacing backend unavailable, requeueing", zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	if !ok {
		if pubErr := c.deferDelivery(ctx, d, retryAfter); pubErr != nil {
			log.Error("Failed to defer throttled task, requeueing original", zap.Error(pubErr))
			_ = d.Nack(false, true)
			return
		}
		deferralsTotal.WithLabelValues(flowKey).Inc()
		_ = d.Ack(false)
		log.Debug("Flow window exhausted, task deferred",
			zap.String("flowKey", flowKey),
			zap.Duration("retryAfter", retryAfter))
		return
	}

	handler, ok := c.handlers[envelope.Workflow]
	if !ok {
		log.Error("No handler registered for workflow, dead-lettering")
		_ = c.store.MarkFailed(ctx, envelope.RunID, "no handler registered")
		runsTotal.WithLabelValues(envelope.Workflow, "failed").Inc()
		_ = d.Nack(false, false)
		return
	}

	if err := c.store.MarkRunning(ctx, envelope.RunID, attempt); err != nil {
		log.Error("Failed to mark run as running, requeueing", zap.Error(err))
		_ = d.Nack(false, true)
		return
	}

	start := time.Now()
	err = handler(ctx, envelope)
	runDuration.WithLabelValues(envelope.Workflow).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		if markErr := c.store.MarkCompleted(ctx, envelope.RunID); markErr != nil {
			log.Error("Failed to mark run as completed", zap.Error(markErr))
		}
		runsTotal.WithLabelValues(envelope.Workflow, "completed").Inc()
		_ = d.Ack(false)
		log.Info("Workflow run completed", zap.Int("attempt", attempt))

	case workflow.IsNonRetryable(err):
		// Бизнес-терминальный исход: повтор бессмысленен, в DLQ не отправляем.
		if markErr := c.store.MarkFailed(ctx, envelope.RunID, err.Error()); markErr != nil {
			log.Error("Failed to mark run as failed", zap.Error(markErr))
		}
		runsTotal.WithLabelValues(envelope.Workflow, "failed").Inc()
		_ = d.Ack(false)
		log.Warn("Workflow run failed permanently", zap.Error(err))

	case attempt < c.maxRetry:
		retriesTotal.WithLabelValues(envelope.Workflow).Inc()
		if pubErr := c.republish(ctx, d, attempt+1); pubErr != nil {
			// Перепубликация не удалась: возвращаем оригинал брокеру.
			log.Error("Failed to republish for retry, requeueing original", zap.Error(pubErr))
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
		log.Warn("Workflow run failed, retry scheduled",
			zap.Int("attempt", attempt),
			zap.Int("maxRetry", c.maxRetry),
			zap.Error(err))

	default:
		if markErr := c.store.MarkFailed(ctx, envelope.RunID, err.Error()); markErr != nil {
			log.Error("Failed to mark run as failed", zap.Error(markErr))
		}
		runsTotal.WithLabelValues(envelope.Workflow, "failed").Inc()
		_ = d.Nack(false, false) // в DLQ
		log.Error("Workflow run failed after all retries, dead-lettering",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
}

// republish ставит сообщение обратно в очередь с инкрементом попытки.
func (c *Consumer) republish(ctx context.Context, d amqp.Delivery, nextAttempt int) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[headerAttempt] = int32(nextAttempt)

	return c.publish(ctx, c.queueName, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Body:         d.Body,
		Headers:      headers,
	})
}

// deferDelivery откладывает задачу в wait-очередь с TTL до следующего окна
// ее flow-ключа; по истечении TTL брокер вернет ее в основную очередь.
// TTL истекает в порядке очереди, перекос в пределах одного окна допустим.
func (c *Consumer) deferDelivery(ctx context.Context, d amqp.Delivery, retryAfter time.Duration) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}

	return c.publish(ctx, c.waitQueueName, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Body:         d.Body,
		Headers:      headers,
		Expiration:   fmt.Sprintf("%d", retryAfter.Milliseconds()),
	})
}

// Stop останавливает консьюмер и дожидается завершения горутины.
func (c *Consumer) Stop() {
	c.logger.Info("Stopping workflow consumer...")
	close(c.stopChannel)
	select {
	case <-c.done:
		c.logger.Info("Workflow consumer stopped")
	case <-time.After(5 * time.Second):
		c.logger.Warn("Timeout waiting for consumer goroutine to stop")
	}
}

// parseFlowHeaders извлекает flow-control параметры из заголовков сообщения.
// Отсутствующие или кривые заголовки трактуются как "без ограничений",
// кроме счетчика попыток: его минимум 1.
func parseFlowHeaders(headers amqp.Table) (key string, rate int, period time.Duration, attempt int) {
	if headers == nil {
		return "", 0, 0, 1
	}
	if v, ok := headers[headerFlowKey].(string); ok {
		key = v
	}
	rate = intHeader(headers[headerFlowRate])
	period = time.Duration(int64Header(headers[headerFlowPeriodMS])) * time.Millisecond
	attempt = intHeader(headers[headerAttempt])
	if attempt < 1 {
		attempt = 1
	}
	return key, rate, period, attempt
}

// AMQP-клиенты кодируют числа по-разному, принимаем все целочисленные типы.
func intHeader(v any) int {
	return int(int64Header(v))
}

func int64Header(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case int16:
		return int64(n)
	case int8:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

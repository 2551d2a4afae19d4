package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Заголовки сообщения, несущие flow-control параметры рана.
const (
	headerFlowKey      = "x-flow-key"
	headerFlowRate     = "x-flow-rate"
	headerFlowPeriodMS = "x-flow-period-ms"
	headerAttempt      = "x-attempt"
)

// Client запускает раны воркфлоу.
type Client interface {
	// Trigger создает ран и ставит его в очередь на исполнение.
	// Возвращает идентификатор созданного рана.
	Trigger(ctx context.Context, workflowName string, payload any, fc FlowControl) (uuid.UUID, error)
}

type amqpClient struct {
	channel   *amqp.Channel
	queueName string
	store     RunStore
	logger    *zap.Logger
}

// NewAMQPClient создает клиент запуска воркфлоу поверх RabbitMQ.
// Очередь объявляется durable с DLX: параметры должны совпадать с консьюмером.
func NewAMQPClient(conn *amqp.Connection, queueName, dlxName string, store RunStore, logger *zap.Logger) (Client, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("workflow client: не удалось открыть канал: %w", err)
	}
	args := amqp.Table{
		"x-dead-letter-exchange":    dlxName,
		"x-dead-letter-routing-key": "dlq",
	}
	if _, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		args,
	); err != nil {
		ch.Close()
		return nil, fmt.Errorf("workflow client: не удалось объявить очередь '%s': %w", queueName, err)
	}
	return &amqpClient{
		channel:   ch,
		queueName: queueName,
		store:     store,
		logger:    logger.Named("WorkflowClient"),
	}, nil
}

var _ Client = (*amqpClient)(nil)

// Trigger создает запись рана и публикует задачу в очередь.
func (c *amqpClient) Trigger(ctx context.Context, workflowName string, payload any, fc FlowControl) (uuid.UUID, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("ошибка сериализации payload воркфлоу %s: %w", workflowName, err)
	}

	run := &Run{
		ID:       uuid.New(),
		Workflow: workflowName,
		Payload:  raw,
		Status:   RunStatusPending,
	}
	if err := c.store.CreateRun(ctx, run); err != nil {
		return uuid.Nil, err
	}

	envelope := TaskEnvelope{RunID: run.ID, Workflow: workflowName, Payload: raw}
	body, err := json.Marshal(envelope)
	if err != nil {
		return uuid.Nil, fmt.Errorf("ошибка сериализации конверта задачи: %w", err)
	}

	err = c.channel.PublishWithContext(ctx,
		"",          // exchange (default)
		c.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    run.ID.String(),
			Body:         body,
			Headers: amqp.Table{
				headerFlowKey:      fc.Key,
				headerFlowRate:     int32(fc.Rate),
				headerFlowPeriodMS: fc.Period.Milliseconds(),
				headerAttempt:      int32(1),
			},
		})
	if err != nil {
		c.logger.Error("Failed to publish workflow task",
			zap.String("workflow", workflowName),
			zap.String("runID", run.ID.String()),
			zap.Error(err))
		return uuid.Nil, fmt.Errorf("ошибка публикации задачи воркфлоу %s: %w", workflowName, err)
	}

	c.logger.Info("Workflow run triggered",
		zap.String("workflow", workflowName),
		zap.String("runID", run.ID.String()),
		zap.String("flowKey", fc.Key))
	return run.ID, nil
}

package data

import (
	"context"
	"encoding/json"

	"github.com/kamayakoi/lomi.-sub008/internal/biz"
	"github.com/kamayakoi/lomi.-sub008/internal/conf"
	"github.com/kamayakoi/lomi.-sub008/internal/constants"

	"github.com/IBM/sarama"
	"github.com/go-kratos/kratos/v2/log"
)

// kafkaNotifier publishes notification events to Kafka. Delivery is
// fire-and-forget: the async producer retries internally and failures
// only surface in the error drain, never to the caller.
type kafkaNotifier struct {
	producer sarama.AsyncProducer
	topic    string
	log      *log.Helper
}

// NewKafkaNotifier creates the Kafka-backed notifier.
func NewKafkaNotifier(c *conf.Bootstrap, logger log.Logger) (biz.Notifier, func(), error) {
	helper := log.NewHelper(logger)

	config := sarama.NewConfig()
	config.Producer.Return.Successes = false
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewAsyncProducer(c.Kafka.Brokers, config)
	if err != nil {
		return nil, nil, err
	}

	topic := c.Kafka.Topic
	if topic == "" {
		topic = constants.DefaultNotificationTopic
	}

	n := &kafkaNotifier{
		producer: producer,
		topic:    topic,
		log:      helper,
	}
	go n.drainErrors()

	cleanup := func() {
		helper.Info("closing the kafka producer")
		producer.AsyncClose()
	}
	return n, cleanup, nil
}

func (n *kafkaNotifier) drainErrors() {
	for err := range n.producer.Errors() {
		n.log.Errorf("notification dispatch failed: %v", err.Err)
	}
}

func (n *kafkaNotifier) Notify(ctx context.Context, event *biz.NotificationEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.log.Errorf("failed to marshal notification %s for transaction %s: %v", event.Kind, event.TransactionID, err)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		// Key by transaction so events for one transaction stay ordered.
		Key:   sarama.StringEncoder(event.TransactionID),
		Value: sarama.ByteEncoder(payload),
	}
	select {
	case n.producer.Input() <- msg:
		n.log.Debugf("notification %s queued for transaction %s", event.Kind, event.TransactionID)
	case <-ctx.Done():
		n.log.Warnf("notification %s dropped for transaction %s: %v", event.Kind, event.TransactionID, ctx.Err())
	}
}

package lib

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// Kafka carries scheduled-watchdog firings and notification events in
// local development; production uses the EventBridge/SNS/SQS path.

func KafkaProduceMessage(clientId string, topic string, payload map[string]any) error {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
		"client.id":         clientId,
		"acks":              "all",
	})
	if err != nil {
		log.Printf("Error creating producer: %s\n", err.Error())
		return err
	}

	value, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error serializing payload: %s\n", err.Error())
		return err
	}

	err = p.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          value,
	}, nil)
	if err != nil {
		log.Printf("Error producing to %s: %s\n", topic, err.Error())
		return err
	}
	return nil
}

// KafkaConsumeTopic polls the topic and hands each message body to the
// handler on its own goroutine.
func KafkaConsumeTopic(groupId string, topic string, handler func(body string)) {
	master, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
		"group.id":          groupId,
		"auto.offset.reset": "smallest",
		"retry.backoff.ms":  100,
	})
	if err != nil {
		log.Printf("Error creating consumer: %s\n", err.Error())
		return
	}
	err = master.SubscribeTopics([]string{topic}, nil)
	if err != nil {
		log.Printf("Error subscribing to %s: %s\n", topic, err.Error())
		return
	}
	go func() {
		log.Printf("[%s] waiting for messages...\n", topic)
		run := true
		for run {
			ev := master.Poll(100)
			switch e := ev.(type) {
			case *kafka.Message:
				go handler(string(e.Value))
			case kafka.Error:
				log.Printf("[%s] consumer error: %v\n", topic, e)
				run = false
			}
		}
		master.Close()
	}()
}

func KafkaCreateTopics(topics ...string) error {
	a, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
	})
	if err != nil {
		log.Printf("Error on AdminClient: %s\n", err.Error())
		return err
	}
	defer a.Close()
	topicsDef := []kafka.TopicSpecification{}
	for _, topic := range topics {
		topicsDef = append(topicsDef, kafka.TopicSpecification{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
	}
	_, err = a.CreateTopics(context.Background(), topicsDef)
	if err != nil {
		log.Printf("Error creating topics: %s\n", err.Error())
		return err
	}
	return nil
}

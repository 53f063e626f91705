//go:build datagen_mutations
// +build datagen_mutations

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modelrepo/src/adapters/kafka/consumers"
	"modelrepo/src/infra/kafka"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/go-faker/faker/v4"
)

var (
	entityTypes = []string{"product", "brand", "category"}
	statuses    = []string{"draft", "published", "archived"}
	locales     = []string{"pt_BR", "en_US", "es_ES"}
)

// generateData creates realistic properties for an entity type. Products
// reference a brand and categories through {id, type} stubs.
func generateData(entityType string, maxID int64) map[string]any {
	data := map[string]any{
		"locale": locales[rand.Intn(len(locales))],
		"status": statuses[rand.Intn(len(statuses))],
	}

	switch entityType {
	case "product":
		data["name"] = gofakeit.ProductName()
		data["description"] = faker.Sentence()
		data["price"] = gofakeit.Price(1, 5000)
		data["sku"] = faker.UUIDDigit()
		data["brand"] = map[string]any{"id": rand.Int63n(maxID) + 1, "type": "brand"}

		categories := make([]map[string]any, rand.Intn(3))
		for i := range categories {
			categories[i] = map[string]any{"id": rand.Int63n(maxID) + 1, "type": "category"}
		}
		data["categories"] = categories
	case "brand":
		data["name"] = gofakeit.Company()
		data["website"] = faker.URL()
	default:
		data["name"] = gofakeit.ProductCategory()
		data["slug"] = faker.Word()
	}

	return data
}

// generateMutation returns mostly creates, some updates and a few deletes
// against ids up to maxID.
func generateMutation(maxID int64) consumers.KafkaMutationMessage {
	entityType := entityTypes[rand.Intn(len(entityTypes))]
	roll := rand.Float32()

	switch {
	case roll < 0.7:
		return consumers.KafkaMutationMessage{
			Action:     consumers.ActionCreate,
			EntityType: entityType,
			Data:       generateData(entityType, maxID),
		}
	case roll < 0.95:
		return consumers.KafkaMutationMessage{
			Action:     consumers.ActionUpdate,
			EntityType: entityType,
			ID:         rand.Int63n(maxID) + 1,
			Data:       generateData(entityType, maxID),
		}
	default:
		return consumers.KafkaMutationMessage{
			Action:     consumers.ActionDelete,
			EntityType: entityType,
			ID:         rand.Int63n(maxID) + 1,
		}
	}
}

func main() {
	totalMessages := flag.Int("count", 1000, "Total number of messages to generate. Use -1 for infinite.")
	batchSize := flag.Int("batch-size", 100, "Number of messages per batch")
	topic := flag.String("topic", "", "Kafka topic to send messages to (required)")
	brokers := flag.String("brokers", "", "Kafka brokers (comma-separated) (required)")
	groupID := flag.String("group-id", "datagen-mutations", "Kafka group ID")
	maxID := flag.Int64("max-id", 1000, "Highest entity id used by updates, deletes and references")
	delayMs := flag.Int("delay-ms", 100, "Delay in milliseconds between batches")
	flag.Parse()

	if *topic == "" {
		log.Fatal("The 'topic' flag is required")
	}
	if *brokers == "" {
		log.Fatal("The 'brokers' flag is required")
	}
	if *maxID < 1 {
		log.Fatal("The 'max-id' flag must be positive")
	}

	isInfinite := *totalMessages == -1
	log.Printf("Starting mutations datagen: count=%d batch-size=%d topic=%s", *totalMessages, *batchSize, *topic)

	kafkaClient, err := kafka.NewKafkaClient(*brokers, *groupID, *batchSize)
	if err != nil {
		log.Fatalf("Failed to create Kafka client: %v", err)
	}
	defer kafkaClient.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	messagesSent := 0
	startTime := time.Now()

	for isInfinite || messagesSent < *totalMessages {
		if ctx.Err() != nil {
			log.Println("Shutdown requested, stopping message generation")
			break
		}

		currentBatchSize := *batchSize
		if !isInfinite {
			currentBatchSize = min(currentBatchSize, *totalMessages-messagesSent)
		}

		kafkaMessages := make([]kafka.Message, 0, currentBatchSize)
		for i := 0; i < currentBatchSize; i++ {
			mutation := generateMutation(*maxID)

			msgBytes, err := json.Marshal(mutation)
			if err != nil {
				log.Printf("Failed to marshal message: %v", err)
				continue
			}

			kafkaMessages = append(kafkaMessages, kafka.Message{
				// Mesma entidade sempre na mesma partição
				Key:   fmt.Sprintf("%s:%v", mutation.EntityType, mutation.ID),
				Value: msgBytes,
			})
		}

		if err := kafkaClient.Producer(kafkaMessages, *topic); err != nil {
			log.Printf("Failed to send batch: %v", err)
			continue
		}

		messagesSent += len(kafkaMessages)

		if messagesSent%500 == 0 || (!isInfinite && messagesSent == *totalMessages) {
			rate := float64(messagesSent) / time.Since(startTime).Seconds()
			log.Printf("Sent %d messages (%.1f msg/sec)", messagesSent, rate)
		}

		if *delayMs > 0 && (isInfinite || messagesSent < *totalMessages) {
			time.Sleep(time.Duration(*delayMs) * time.Millisecond)
		}
	}

	elapsed := time.Since(startTime)
	log.Printf("Finished! Sent %d messages in %v (%.1f msg/sec)", messagesSent, elapsed, float64(messagesSent)/elapsed.Seconds())
}

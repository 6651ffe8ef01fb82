package events

import (
	"fmt"
	"os"
	"strconv"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	BootstrapServers string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
	Topic            string
	Acks             string
	LingerMS         int
}

// NewKafkaConfig reads Kafka configuration from environment variables.
// Publishing is off unless KAFKA_BOOTSTRAP_SERVERS is set.
func NewKafkaConfig() KafkaConfig {
	return KafkaConfig{
		BootstrapServers: getEnv("KAFKA_BOOTSTRAP_SERVERS", ""),
		SecurityProtocol: getEnv("KAFKA_SECURITY_PROTOCOL", "PLAINTEXT"),
		SASLMechanism:    getEnv("KAFKA_SASL_MECHANISM", "PLAIN"),
		SASLUsername:     getEnv("KAFKA_SASL_USERNAME", ""),
		SASLPassword:     getEnv("KAFKA_SASL_PASSWORD", ""),
		Topic:            getEnv("KAFKA_TOPIC", "room-occupancy"),
		Acks:             getEnv("KAFKA_ACKS", "all"),
		LingerMS:         getEnvInt("KAFKA_LINGER_MS", 5),
	}
}

// Enabled reports whether a broker is configured.
func (c KafkaConfig) Enabled() bool {
	return c.BootstrapServers != ""
}

// ConfigMap builds the librdkafka producer configuration.
func (c KafkaConfig) ConfigMap() (*kafka.ConfigMap, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	if c.Topic == "" {
		return nil, fmt.Errorf("events: topic must not be empty")
	}

	cm := &kafka.ConfigMap{
		"bootstrap.servers":   c.BootstrapServers,
		"security.protocol":   c.SecurityProtocol,
		"acks":                c.Acks,
		"linger.ms":           c.LingerMS,
		"enable.idempotence":  true,
		"request.timeout.ms":  30000,
		"delivery.timeout.ms": 120000,
	}
	if c.SASLUsername != "" {
		cm.SetKey("sasl.mechanism", c.SASLMechanism)
		cm.SetKey("sasl.username", c.SASLUsername)
		cm.SetKey("sasl.password", c.SASLPassword)
	}
	return cm, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

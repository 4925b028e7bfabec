package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/segmentio/kafka-go"

	"worklist-sentinel/common"
)

var errNoPartitions = errors.New("topic has no partitions")

func main() {
	broker := common.GetEnv("KAFKA_BROKER", "localhost:9092")
	topic := common.GetEnv("KAFKA_EVENTS_TOPIC", "sentinel.events")
	timeout := common.ParseDuration(common.GetEnv("KAFKA_CHECK_TIMEOUT", "5s"), 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to Kafka at %s: %v\n", broker, err)
		os.Exit(1)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(topic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read metadata for topic %s: %v\n", topic, err)
		os.Exit(1)
	}

	if err := describe(os.Stdout, broker, topic, partitions); err != nil {
		fmt.Fprintf(os.Stderr, "events topic %s unusable: %v\n", topic, err)
		os.Exit(1)
	}
}

// describe prints one line per partition of the events topic with its leader.
func describe(w io.Writer, broker, topic string, partitions []kafka.Partition) error {
	if len(partitions) == 0 {
		return errNoPartitions
	}
	fmt.Fprintf(w, "connected to Kafka at %s (topic %s, %d partitions)\n", broker, topic, len(partitions))
	for _, p := range partitions {
		fmt.Fprintf(w, "  partition=%d leader=%s:%d replicas=%d isr=%d\n",
			p.ID, p.Leader.Host, p.Leader.Port, len(p.Replicas), len(p.Isr))
	}
	return nil
}

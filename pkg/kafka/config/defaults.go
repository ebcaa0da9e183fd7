package kafka_config

import "time"

const (
	// Empty disables event publishing.
	DefaultKafkaBrokers = ""

	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerWriteTimeout = 5 * time.Second
	DefaultProducerRequireAcks  = -1 // all in-sync replicas
	DefaultProducerCompression  = "snappy"
	DefaultProducerAsync        = false
)

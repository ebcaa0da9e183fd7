package kafka

import (
	"errors"
	"fmt"
)

var (
	ErrProducerClosed = errors.New("kafka producer is closed")

	ErrEmptyKey = errors.New("message key cannot be empty")

	ErrEmptyValue = errors.New("message value cannot be empty")
)

// KafkaError wraps broker errors with a short description.
type KafkaError struct {
	Message string
	Err     error
}

func (e *KafkaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *KafkaError) Unwrap() error {
	return e.Err
}

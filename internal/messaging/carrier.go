package messaging

import (
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

var _ propagation.TextMapCarrier = (*MessageCarrier)(nil)

// MessageCarrier exposes Kafka headers to OTel propagators. Set replaces an
// existing header instead of appending a duplicate.
type MessageCarrier struct {
	msg *kafka.Message
}

func NewMessageCarrier(msg *kafka.Message) *MessageCarrier {
	return &MessageCarrier{msg: msg}
}

func (c *MessageCarrier) Get(key string) string {
	value, _ := headerValue(c.msg, key)
	return value
}

func (c *MessageCarrier) Set(key, value string) {
	if i := headerIndex(c.msg, key); i >= 0 {
		c.msg.Headers[i].Value = []byte(value)
		return
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *MessageCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// headerValue reports the first header named key and whether it was present.
func headerValue(msg *kafka.Message, key string) (string, bool) {
	if i := headerIndex(msg, key); i >= 0 {
		return string(msg.Headers[i].Value), true
	}
	return "", false
}

func headerIndex(msg *kafka.Message, key string) int {
	for i, h := range msg.Headers {
		if h.Key == key {
			return i
		}
	}
	return -1
}

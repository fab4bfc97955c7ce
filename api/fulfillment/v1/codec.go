// Package fulfillmentv1 описывает gRPC API сервиса fulfillment: сообщения,
// дескриптор сервиса и JSON-кодек, через который они передаются.
package fulfillmentv1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// CodecName — content-subtype вызовов FulfillmentService (application/grpc+json).
const CodecName = "json"

// Codec сериализует сообщения API в JSON. Protobuf-сообщения (например, health checks)
// кодируются через protojson, чтобы один кодек обслуживал оба вида.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return protojson.Marshal(msg)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	if msg, ok := v.(proto.Message); ok {
		return protojson.Unmarshal(data, msg)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

func (Codec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(Codec{})
}

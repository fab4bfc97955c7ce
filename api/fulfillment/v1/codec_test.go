package fulfillmentv1

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestCodec_RegisteredUnderJSONSubtype(t *testing.T) {
	codec := encoding.GetCodec(CodecName)
	require.NotNil(t, codec)
	require.Equal(t, CodecName, codec.Name())
}

func TestCodec_KeepsDecimalPrecision(t *testing.T) {
	codec := Codec{}
	in := &CreateProductRequest{Name: "Wings", Price: decimal.RequireFromString("12.345"), Quantity: 3}

	data, err := codec.Marshal(in)
	require.NoError(t, err)
	require.Contains(t, string(data), `"price":"12.345"`)

	var out CreateProductRequest
	require.NoError(t, codec.Unmarshal(data, &out))
	require.True(t, in.Price.Equal(out.Price))
	require.Equal(t, int32(3), out.Quantity)
}

func TestCodec_ProtoMessagesUseProtojson(t *testing.T) {
	codec := Codec{}
	data, err := codec.Marshal(&healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING})
	require.NoError(t, err)
	require.Contains(t, string(data), "SERVING")

	var out healthpb.HealthCheckResponse
	require.NoError(t, codec.Unmarshal(data, &out))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, out.GetStatus())
}

func TestCodec_UnmarshalRejectsGarbage(t *testing.T) {
	var out OrderResponse
	require.Error(t, Codec{}.Unmarshal([]byte("{not json"), &out))
}

func TestFullMethod(t *testing.T) {
	require.Equal(t, "/fulfillment.v1.FulfillmentService/CreateOrder", FullMethod(MethodCreateOrder))
	require.Len(t, ServiceDesc.Methods, 16)
}

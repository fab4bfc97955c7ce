package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

type restockerStub struct {
	calls []RestockMessage
	err   error
}

func (r *restockerStub) RestockProduct(_ context.Context, productID int64, quantity int) (domain.Product, error) {
	r.calls = append(r.calls, RestockMessage{ProductID: productID, Quantity: quantity})
	if r.err != nil {
		return domain.Product{}, r.err
	}
	return domain.Product{ID: productID, Quantity: quantity, Status: domain.ProductStatusInStock}, nil
}

type restockRecorderStub struct {
	results []string
}

func (r *restockRecorderStub) RecordRestockMessage(result string) {
	r.results = append(r.results, result)
}

func restockMessage(value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: TopicRestock, Value: []byte(value)}
}

func TestRestockHandler(t *testing.T) {
	logger := log.WithField("test", "restock")

	t.Run("applies restock", func(t *testing.T) {
		restocker := &restockerStub{}
		recorder := &restockRecorderStub{}
		handler := NewRestockHandler(restocker, recorder, logger)

		require.NoError(t, handler(context.Background(), restockMessage(`{"product_id":3,"quantity":20}`)))
		require.Equal(t, []RestockMessage{{ProductID: 3, Quantity: 20}}, restocker.calls)
		require.Equal(t, []string{"ok"}, recorder.results)
	})

	t.Run("malformed message is permanent", func(t *testing.T) {
		restocker := &restockerStub{}
		recorder := &restockRecorderStub{}
		handler := NewRestockHandler(restocker, recorder, logger)

		err := handler(context.Background(), restockMessage(`{"product_id":3,"quantity":0}`))
		require.True(t, IsPermanent(err))
		require.Empty(t, restocker.calls)
		require.Equal(t, []string{"invalid"}, recorder.results)
	})

	t.Run("unknown product is permanent", func(t *testing.T) {
		restocker := &restockerStub{err: domain.NotFoundf("product %d not found", 99)}
		recorder := &restockRecorderStub{}
		handler := NewRestockHandler(restocker, recorder, logger)

		err := handler(context.Background(), restockMessage(`{"product_id":99,"quantity":1}`))
		require.True(t, IsPermanent(err))
		require.ErrorIs(t, err, domain.ErrNotFound)
		require.Equal(t, []string{"rejected"}, recorder.results)
	})

	t.Run("lock timeout is retried", func(t *testing.T) {
		restocker := &restockerStub{err: domain.NewError(domain.ErrLockTimeout, "busy")}
		handler := NewRestockHandler(restocker, nil, logger)

		err := handler(context.Background(), restockMessage(`{"product_id":1,"quantity":1}`))
		require.Error(t, err)
		require.False(t, IsPermanent(err))
	})

	t.Run("infrastructure error is retried", func(t *testing.T) {
		restocker := &restockerStub{err: errors.New("connection reset")}
		recorder := &restockRecorderStub{}
		handler := NewRestockHandler(restocker, recorder, logger)

		err := handler(context.Background(), restockMessage(`{"product_id":1,"quantity":1}`))
		require.Error(t, err)
		require.False(t, IsPermanent(err))
		require.Equal(t, []string{"error"}, recorder.results)
	})
}

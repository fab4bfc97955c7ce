package kafka

import (
	"context"
	"errors"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// Restocker пополняет остаток товара.
type Restocker interface {
	RestockProduct(ctx context.Context, productID int64, quantity int) (domain.Product, error)
}

// RestockRecorder учитывает результат обработки сообщений о пополнении.
type RestockRecorder interface {
	RecordRestockMessage(result string)
}

// NewRestockHandler возвращает обработчик топика пополнений.
// Некорректные сообщения и неизвестные товары не повторяются и сразу уходят в DLQ.
func NewRestockHandler(restocker Restocker, metrics RestockRecorder, logger *log.Entry) MessageHandler {
	if logger == nil {
		logger = log.WithField("component", "restock-consumer")
	}
	record := func(result string) {
		if metrics != nil {
			metrics.RecordRestockMessage(result)
		}
	}

	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		restock, err := ParseRestockMessage(message)
		if err != nil {
			record("invalid")
			return Permanent(err)
		}

		product, err := restocker.RestockProduct(ctx, restock.ProductID, restock.Quantity)
		if err != nil {
			if domain.IsBusiness(err) && !errors.Is(err, domain.ErrLockTimeout) {
				record("rejected")
				return Permanent(err)
			}
			record("error")
			return err
		}

		record("ok")
		logger.WithFields(log.Fields{
			"product_id": product.ID,
			"added":      restock.Quantity,
			"quantity":   product.Quantity,
			"status":     product.Status,
		}).Info("product restocked from kafka")
		return nil
	}
}

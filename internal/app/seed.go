package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/orders"
)

// DemoCustomerEmail — владелец демо-заказов; используется нагрузочным тестом.
const DemoCustomerEmail = "demo@fulfillment.local"

var demoCatalog = []orders.ProductInput{
	{Name: "Whole chicken", Description: "Free-range, 1.6 kg", Price: decimal.RequireFromString("89.90"), Quantity: 200, Unit: "pcs"},
	{Name: "Chicken wings", Description: "Marinated", Price: decimal.RequireFromString("59.00"), Quantity: 500, Unit: "kg"},
	{Name: "Chicken breast", Description: "Skinless fillet", Price: decimal.RequireFromString("129.00"), Quantity: 300, Unit: "kg"},
	{Name: "Chicken thighs", Description: "Bone-in", Price: decimal.RequireFromString("74.50"), Quantity: 8, Unit: "kg"},
}

// seedDemoData заводит клиента, адрес и каталог, если каталог пуст.
// Повторный запуск на заполненном хранилище ничего не меняет.
func seedDemoData(ctx context.Context, store domain.Store, svc *orders.Service, logger *log.Entry) error {
	existing, err := store.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	if len(existing) > 0 {
		logger.WithField("products", len(existing)).Debug("catalog is not empty, skipping demo seed")
		return nil
	}

	var customer domain.Customer
	var address domain.Address
	err = store.InTx(ctx, func(tx domain.Tx) error {
		var err error
		customer, err = tx.CreateCustomer(ctx, domain.Customer{Name: "Demo Customer", Email: DemoCustomerEmail, PhoneNumber: "+4700000000"})
		if err != nil {
			return err
		}
		address, err = tx.CreateAddress(ctx, domain.Address{
			CustomerID: customer.ID,
			Street:     "Demo street 1",
			ZipCode:    "0150",
			City:       "Oslo",
			Country:    "Norway",
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("seed customer: %w", err)
	}

	if _, err := svc.CreateProducts(ctx, demoCatalog); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	logger.WithFields(log.Fields{
		"customer_id": customer.ID,
		"address_id":  address.ID,
		"products":    len(demoCatalog),
	}).Info("demo data seeded")
	return nil
}

package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// ProductInput — параметры нового товара.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Quantity    int
	Unit        string
}

func (in ProductInput) validate() (string, error) {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return "", domain.InvalidInputf("product name is required")
	case in.Price.IsNegative():
		return "", domain.InvalidInputf("price must be non-negative")
	case in.Quantity < 0:
		return "", domain.InvalidInputf("stock quantity must be non-negative")
	}
	if err := domain.CheckPriceScale(in.Price); err != nil {
		return "", err
	}
	return name, nil
}

// CreateProduct заводит товар; статус выводится из начального остатка.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (product domain.Product, err error) {
	started := time.Now()
	defer func() {
		s.observe("create_product", started, err, log.Fields{"product_name": in.Name, "product_id": product.ID})
	}()

	if _, err := in.validate(); err != nil {
		return domain.Product{}, err
	}

	err = s.store.InTx(ctx, func(tx domain.Tx) error {
		product, err = s.insertProduct(ctx, tx, in)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// CreateProducts заводит пачку товаров в одной транзакции: либо все, либо ни одного.
// Повтор имени внутри пачки отклоняется так же, как конфликт с каталогом.
func (s *Service) CreateProducts(ctx context.Context, inputs []ProductInput) (products []domain.Product, err error) {
	started := time.Now()
	defer func() {
		s.observe("create_products", started, err, log.Fields{"requested": len(inputs), "created": len(products)})
	}()

	if len(inputs) == 0 {
		return nil, domain.InvalidInputf("at least one product is required")
	}
	seen := make(map[string]struct{}, len(inputs))
	for i, in := range inputs {
		name, err := in.validate()
		if err != nil {
			return nil, fmt.Errorf("product #%d: %w", i+1, err)
		}
		key := domain.NormalizeProductName(name)
		if _, dup := seen[key]; dup {
			return nil, domain.NewError(domain.ErrConflict, "product '%s' appears more than once in the batch", name)
		}
		seen[key] = struct{}{}
	}

	created := make([]domain.Product, 0, len(inputs))
	err = s.store.InTx(ctx, func(tx domain.Tx) error {
		for _, in := range inputs {
			product, err := s.insertProduct(ctx, tx, in)
			if err != nil {
				return err
			}
			created = append(created, product)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	products = created
	return products, nil
}

func (s *Service) insertProduct(ctx context.Context, tx domain.Tx, in ProductInput) (domain.Product, error) {
	now := s.now().UTC()
	created, err := tx.CreateProduct(ctx, domain.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Quantity:    in.Quantity,
		Status:      s.ledger.StatusFor(in.Quantity),
		Unit:        in.Unit,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return domain.Product{}, err
	}

	msg, err := domain.NewOutboxMessage(domain.AggregateProduct, created.ID, domain.EventProductCreated, domain.ProductEvent{
		ProductID:  created.ID,
		Name:       created.Name,
		Quantity:   created.Quantity,
		Status:     created.Status,
		OccurredAt: now,
	})
	if err != nil {
		return domain.Product{}, err
	}
	if err := tx.Enqueue(ctx, msg); err != nil {
		return domain.Product{}, err
	}
	return created, nil
}

// UpdateProductPrice меняет цену товара. Уже оформленные позиции хранят свою цену.
func (s *Service) UpdateProductPrice(ctx context.Context, name string, price decimal.Decimal) (product domain.Product, err error) {
	started := time.Now()
	defer func() {
		s.observe("update_product_price", started, err, log.Fields{"product_name": name, "price": price.String()})
	}()

	if !price.IsPositive() {
		return domain.Product{}, domain.InvalidInputf("price must be greater than zero")
	}
	if err := domain.CheckPriceScale(price); err != nil {
		return domain.Product{}, err
	}

	err = s.store.InTx(ctx, func(tx domain.Tx) error {
		found, err := tx.GetProductByName(ctx, name)
		if err != nil {
			return err
		}
		locked, err := tx.GetProductForUpdate(ctx, found.ID)
		if err != nil {
			return err
		}
		locked.Price = price
		locked.UpdatedAt = s.now().UTC()
		if err := tx.SaveProduct(ctx, locked); err != nil {
			return err
		}
		product = locked
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// RestockProduct пополняет остаток товара.
func (s *Service) RestockProduct(ctx context.Context, productID int64, quantity int) (product domain.Product, err error) {
	started := time.Now()
	defer func() {
		s.observe("restock_product", started, err, log.Fields{"product_id": productID, "requested": quantity})
	}()

	err = s.store.InTx(ctx, func(tx domain.Tx) error {
		product, err = s.ledger.Release(ctx, tx, productID, quantity)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// SetProductQuantity выставляет абсолютный остаток (результат инвентаризации).
func (s *Service) SetProductQuantity(ctx context.Context, productID int64, quantity int) (product domain.Product, err error) {
	started := time.Now()
	defer func() {
		s.observe("set_product_quantity", started, err, log.Fields{"product_id": productID, "requested": quantity})
	}()

	err = s.store.InTx(ctx, func(tx domain.Tx) error {
		product, err = s.ledger.Adjust(ctx, tx, productID, quantity)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// GetProduct возвращает товар по id.
func (s *Service) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	return s.store.GetProduct(ctx, productID)
}

// ListProducts возвращает каталог, упорядоченный по id.
func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.store.ListProducts(ctx)
}

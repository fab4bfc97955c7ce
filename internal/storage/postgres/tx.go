package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// tx — domain.Tx поверх открытой SQL-транзакции.
type tx struct {
	reader
	tx *sql.Tx
}

func (t *tx) LockProducts(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rows, err := t.tx.QueryContext(ctx, `SELECT id FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, sorted)
	if err != nil {
		return mapError(fmt.Errorf("lock products: %w", err))
	}
	defer rows.Close()
	for rows.Next() {
		// строки только блокируются
	}
	if err := rows.Err(); err != nil {
		return mapError(fmt.Errorf("lock products: %w", err))
	}
	return nil
}

func (t *tx) GetProductForUpdate(ctx context.Context, id int64) (domain.Product, error) {
	p, err := t.getProduct(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
	return p, mapError(err)
}

func (t *tx) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = product.CreatedAt

	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO products (name, description, price, quantity, status, unit, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`,
		product.Name, product.Description, product.Price, product.Quantity,
		string(product.Status), product.Unit, product.CreatedAt, product.UpdatedAt,
	).Scan(&product.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Product{}, domain.NewError(domain.ErrConflict, "product with name '%s' already exists", product.Name)
		}
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return product, nil
}

func (t *tx) SaveProduct(ctx context.Context, product domain.Product) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET name = $1,
		    description = $2,
		    price = $3,
		    quantity = $4,
		    status = $5,
		    unit = $6,
		    updated_at = $7
		WHERE id = $8
	`,
		product.Name, product.Description, product.Price, product.Quantity,
		string(product.Status), product.Unit, time.Now().UTC(), product.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewError(domain.ErrConflict, "product with name '%s' already exists", product.Name)
		}
		return mapError(fmt.Errorf("update product: %w", err))
	}
	return expectAffected(res, domain.NotFoundf("product %d not found", product.ID))
}

func (t *tx) GetOrderForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	order, err := t.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	return order, mapError(err)
}

func (t *tx) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	created := order.Clone()
	now := time.Now().UTC()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = created.CreatedAt

	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO orders (customer_id, address_id, order_date, total_sum, shipping_charge, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`,
		created.CustomerID, created.AddressID, created.Date, created.TotalSum, created.ShippingCharge,
		string(created.Status), created.CreatedAt, created.UpdatedAt,
	).Scan(&created.ID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for i := range created.Lines {
		created.Lines[i].OrderID = created.ID
		line, err := t.InsertLine(ctx, created.Lines[i])
		if err != nil {
			return domain.Order{}, err
		}
		created.Lines[i] = line
	}
	return created, nil
}

func (t *tx) SaveOrder(ctx context.Context, order domain.Order) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE orders
		SET total_sum = $1,
		    shipping_charge = $2,
		    status = $3,
		    updated_at = $4
		WHERE id = $5
	`, order.TotalSum, order.ShippingCharge, string(order.Status), time.Now().UTC(), order.ID)
	if err != nil {
		return mapError(fmt.Errorf("update order: %w", err))
	}
	return expectAffected(res, domain.NotFoundf("order %d not found", order.ID))
}

func (t *tx) DeleteOrder(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM order_lines WHERE order_id = $1`, id); err != nil {
		return mapError(fmt.Errorf("delete order lines: %w", err))
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return mapError(fmt.Errorf("delete order: %w", err))
	}
	return expectAffected(res, domain.NotFoundf("order %d not found", id))
}

func (t *tx) InsertLine(ctx context.Context, line domain.OrderLine) (domain.OrderLine, error) {
	if line.CreatedAt.IsZero() {
		line.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO order_lines (order_id, product_id, quantity, unit_price, created_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, line.OrderID, line.ProductID, line.Quantity, line.UnitPrice, line.CreatedAt).Scan(&line.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.OrderLine{}, domain.NewError(domain.ErrInvalidState, "product %d already exists in order %d", line.ProductID, line.OrderID)
		}
		return domain.OrderLine{}, mapError(fmt.Errorf("insert order line: %w", err))
	}
	return line, nil
}

func (t *tx) UpdateLine(ctx context.Context, line domain.OrderLine) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE order_lines
		SET quantity = $1
		WHERE id = $2 AND order_id = $3
	`, line.Quantity, line.ID, line.OrderID)
	if err != nil {
		return mapError(fmt.Errorf("update order line: %w", err))
	}
	return expectAffected(res, domain.NotFoundf("line %d not found in order %d", line.ID, line.OrderID))
}

func (t *tx) DeleteLine(ctx context.Context, line domain.OrderLine) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM order_lines WHERE id = $1 AND order_id = $2`, line.ID, line.OrderID)
	if err != nil {
		return mapError(fmt.Errorf("delete order line: %w", err))
	}
	return expectAffected(res, domain.NotFoundf("line %d not found in order %d", line.ID, line.OrderID))
}

func (t *tx) CreateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO customers (name, email, phone_number, created_at)
		VALUES ($1,$2,$3,$4)
		RETURNING id
	`, customer.Name, customer.Email, customer.PhoneNumber, customer.CreatedAt).Scan(&customer.ID)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	return customer, nil
}

func (t *tx) CreateAddress(ctx context.Context, address domain.Address) (domain.Address, error) {
	if address.CreatedAt.IsZero() {
		address.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO addresses (customer_id, apartment_number, street, zip_code, city, country, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`,
		address.CustomerID, address.ApartmentNumber, address.Street, address.ZipCode,
		address.City, address.Country, address.CreatedAt,
	).Scan(&address.ID)
	if err != nil {
		return domain.Address{}, fmt.Errorf("insert address: %w", err)
	}
	return address, nil
}

func (t *tx) Enqueue(ctx context.Context, msg domain.OutboxMessage) error {
	if msg.ID == "" {
		return errors.New("outbox message id is required")
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,'pending',0,$6,$6)
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue outbox message: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

var _ domain.Tx = (*tx)(nil)

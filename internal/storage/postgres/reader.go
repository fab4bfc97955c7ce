package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// queryer — общее подмножество *sql.DB и *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner — общее подмножество *sql.Row и *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const (
	productColumns = `id, name, description, price, quantity, status, unit, created_at, updated_at`
	orderColumns   = `id, customer_id, address_id, order_date, total_sum, shipping_charge, status, created_at, updated_at`
	lineColumns    = `id, order_id, product_id, quantity, unit_price, created_at`
)

// reader реализует domain.Reader поверх пула или открытой транзакции.
type reader struct {
	q queryer
}

func (r reader) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	var c domain.Customer
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, email, phone_number, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.PhoneNumber, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.NotFoundf("customer %d not found", id)
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return c, nil
}

func (r reader) GetAddress(ctx context.Context, id int64) (domain.Address, error) {
	var a domain.Address
	err := r.q.QueryRowContext(ctx, `
		SELECT id, customer_id, apartment_number, street, zip_code, city, country, created_at
		FROM addresses
		WHERE id = $1
	`, id).Scan(&a.ID, &a.CustomerID, &a.ApartmentNumber, &a.Street, &a.ZipCode, &a.City, &a.Country, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Address{}, domain.NotFoundf("address %d not found", id)
		}
		return domain.Address{}, fmt.Errorf("select address: %w", err)
	}
	return a, nil
}

func (r reader) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	return r.getProduct(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

func (r reader) GetProductByName(ctx context.Context, name string) (domain.Product, error) {
	p, err := r.getProduct(ctx, `SELECT `+productColumns+` FROM products WHERE LOWER(TRIM(name)) = $1`, domain.NormalizeProductName(name))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Product{}, domain.NotFoundf("product '%s' not found", name)
	}
	return p, err
}

func (r reader) getProduct(ctx context.Context, query string, arg any) (domain.Product, error) {
	p, err := scanProduct(r.q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.NotFoundf("product %v not found", arg)
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

func (r reader) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return collectProducts(rows)
}

func (r reader) ProductsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	result := make(map[int64]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := r.q.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select products by ids: %w", err)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		result[p.ID] = p
	}
	return result, nil
}

func (r reader) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r reader) getOrder(ctx context.Context, query string, id int64) (domain.Order, error) {
	order, err := scanOrder(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.NotFoundf("order %d not found", id)
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	orders := []domain.Order{order}
	if err := r.attachLines(ctx, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

func (r reader) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return r.listOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id`)
}

func (r reader) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error) {
	return r.listOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY id`, customerID)
}

func (r reader) listOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachLines загружает позиции всех заказов одним запросом.
func (r reader) attachLines(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	index := make(map[int64]int, len(orders))
	for i, order := range orders {
		ids = append(ids, order.ID)
		index[order.ID] = i
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT `+lineColumns+`
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		i := index[line.OrderID]
		orders[i].Lines = append(orders[i].Lines, line)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order lines: %w", err)
	}
	return nil
}

func scanProduct(row scanner) (domain.Product, error) {
	var (
		p      domain.Product
		status string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity, &status, &p.Unit, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Product{}, err
	}
	p.Status = domain.ProductStatus(status)
	return p, nil
}

func collectProducts(rows *sql.Rows) ([]domain.Product, error) {
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

func scanOrder(row scanner) (domain.Order, error) {
	var (
		o      domain.Order
		status string
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &o.AddressID, &o.Date, &o.TotalSum, &o.ShippingCharge, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func scanLine(row scanner) (domain.OrderLine, error) {
	var l domain.OrderLine
	if err := row.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.CreatedAt); err != nil {
		return domain.OrderLine{}, err
	}
	return l, nil
}

var _ domain.Reader = reader{}

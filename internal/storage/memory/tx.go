package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// tx копит изменения поверх зафиксированного состояния Store.
// Чтения внутри транзакции видят её собственные изменения.
type tx struct {
	store *Store

	held      map[string]struct{}
	heldOrder []string

	customers     map[int64]domain.Customer
	addresses     map[int64]domain.Address
	products      map[int64]domain.Product
	newProducts   map[int64]struct{}
	orders        map[int64]domain.Order
	lines         map[int64]domain.OrderLine
	newLines      map[int64][]int64
	deletedLines  map[int64]int64
	deletedOrders map[int64]struct{}
	outbox        []domain.OutboxMessage
}

func newTx(s *Store) *tx {
	return &tx{
		store:         s,
		held:          make(map[string]struct{}),
		customers:     make(map[int64]domain.Customer),
		addresses:     make(map[int64]domain.Address),
		products:      make(map[int64]domain.Product),
		newProducts:   make(map[int64]struct{}),
		orders:        make(map[int64]domain.Order),
		lines:         make(map[int64]domain.OrderLine),
		newLines:      make(map[int64][]int64),
		deletedLines:  make(map[int64]int64),
		deletedOrders: make(map[int64]struct{}),
	}
}

func productKey(id int64) string { return fmt.Sprintf("product:%d", id) }
func orderKey(id int64) string   { return fmt.Sprintf("order:%d", id) }

// lock захватывает блокировку строки; повторный захват в той же транзакции не блокирует.
func (t *tx) lock(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	if err := t.store.locks.acquire(ctx, key, t.store.lockTimeout); err != nil {
		return err
	}
	t.held[key] = struct{}{}
	t.heldOrder = append(t.heldOrder, key)
	return nil
}

func (t *tx) releaseLocks() {
	for i := len(t.heldOrder) - 1; i >= 0; i-- {
		t.store.locks.release(t.heldOrder[i])
	}
	t.heldOrder = nil
	t.held = nil
}

func (t *tx) now() time.Time {
	return t.store.now().UTC()
}

// --- чтение ---

func (t *tx) GetCustomer(_ context.Context, id int64) (domain.Customer, error) {
	if c, ok := t.customers[id]; ok {
		return c, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	c, ok := t.store.customers[id]
	if !ok {
		return domain.Customer{}, domain.NotFoundf("customer %d not found", id)
	}
	return c, nil
}

func (t *tx) GetAddress(_ context.Context, id int64) (domain.Address, error) {
	if a, ok := t.addresses[id]; ok {
		return a, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	a, ok := t.store.addresses[id]
	if !ok {
		return domain.Address{}, domain.NotFoundf("address %d not found", id)
	}
	return a, nil
}

func (t *tx) product(id int64) (domain.Product, bool) {
	if p, ok := t.products[id]; ok {
		return p, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	p, ok := t.store.products[id]
	return p, ok
}

func (t *tx) GetProduct(_ context.Context, id int64) (domain.Product, error) {
	p, ok := t.product(id)
	if !ok {
		return domain.Product{}, domain.NotFoundf("product %d not found", id)
	}
	return p, nil
}

func (t *tx) GetProductByName(_ context.Context, name string) (domain.Product, error) {
	key := domain.NormalizeProductName(name)
	for _, p := range t.products {
		if domain.NormalizeProductName(p.Name) == key {
			return p, nil
		}
	}

	t.store.mu.RLock()
	id, ok := t.store.productNames[key]
	t.store.mu.RUnlock()
	if ok {
		if p, found := t.product(id); found {
			return p, nil
		}
	}
	return domain.Product{}, domain.NotFoundf("product '%s' not found", name)
}

func (t *tx) ListProducts(_ context.Context) ([]domain.Product, error) {
	t.store.mu.RLock()
	ids := make([]int64, 0, len(t.store.products)+len(t.newProducts))
	for id := range t.store.products {
		ids = append(ids, id)
	}
	t.store.mu.RUnlock()
	for id := range t.newProducts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := t.product(id); ok {
			result = append(result, p)
		}
	}
	return result, nil
}

func (t *tx) ProductsByIDs(_ context.Context, ids []int64) (map[int64]domain.Product, error) {
	result := make(map[int64]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.product(id); ok {
			result[id] = p
		}
	}
	return result, nil
}

func (t *tx) assembleOrder(id int64) (domain.Order, bool) {
	if _, deleted := t.deletedOrders[id]; deleted {
		return domain.Order{}, false
	}

	header, staged := t.orders[id]
	t.store.mu.RLock()
	if !staged {
		var ok bool
		header, ok = t.store.orders[id]
		if !ok {
			t.store.mu.RUnlock()
			return domain.Order{}, false
		}
	}
	lineIDs := append([]int64(nil), t.store.orderLines[id]...)
	committed := make(map[int64]domain.OrderLine, len(lineIDs))
	for _, lineID := range lineIDs {
		committed[lineID] = t.store.lines[lineID]
	}
	t.store.mu.RUnlock()

	lineIDs = append(lineIDs, t.newLines[id]...)
	order := header
	order.Lines = make([]domain.OrderLine, 0, len(lineIDs))
	for _, lineID := range lineIDs {
		if _, deleted := t.deletedLines[lineID]; deleted {
			continue
		}
		line, ok := t.lines[lineID]
		if !ok {
			line = committed[lineID]
		}
		order.Lines = append(order.Lines, line)
	}
	sort.Slice(order.Lines, func(i, j int) bool { return order.Lines[i].ID < order.Lines[j].ID })
	return order, true
}

func (t *tx) GetOrder(_ context.Context, id int64) (domain.Order, error) {
	order, ok := t.assembleOrder(id)
	if !ok {
		return domain.Order{}, domain.NotFoundf("order %d not found", id)
	}
	return order, nil
}

func (t *tx) orderIDs() []int64 {
	t.store.mu.RLock()
	ids := make([]int64, 0, len(t.store.orders)+len(t.orders))
	for id := range t.store.orders {
		ids = append(ids, id)
	}
	t.store.mu.RUnlock()
	for id := range t.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	unique := ids[:0]
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		unique = append(unique, id)
	}
	return unique
}

func (t *tx) ListOrders(_ context.Context) ([]domain.Order, error) {
	ids := t.orderIDs()
	result := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		if order, ok := t.assembleOrder(id); ok {
			result = append(result, order)
		}
	}
	return result, nil
}

func (t *tx) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error) {
	all, err := t.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Order, 0)
	for _, order := range all {
		if order.CustomerID == customerID {
			result = append(result, order)
		}
	}
	return result, nil
}

// --- запись ---

func (t *tx) LockProducts(ctx context.Context, ids ...int64) error {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, id := range sorted {
		if err := t.lock(ctx, productKey(id)); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) GetProductForUpdate(ctx context.Context, id int64) (domain.Product, error) {
	if err := t.lock(ctx, productKey(id)); err != nil {
		return domain.Product{}, err
	}
	return t.GetProduct(ctx, id)
}

func (t *tx) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if _, err := t.GetProductByName(ctx, product.Name); err == nil {
		return domain.Product{}, domain.NewError(domain.ErrConflict, "product with name '%s' already exists", product.Name)
	}

	product.ID = t.store.productSeq.Add(1)
	now := t.now()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	if err := t.lock(ctx, productKey(product.ID)); err != nil {
		return domain.Product{}, err
	}
	t.products[product.ID] = product
	t.newProducts[product.ID] = struct{}{}
	return product, nil
}

func (t *tx) SaveProduct(ctx context.Context, product domain.Product) error {
	if err := t.lock(ctx, productKey(product.ID)); err != nil {
		return err
	}
	if _, ok := t.product(product.ID); !ok {
		return domain.NotFoundf("product %d not found", product.ID)
	}
	t.products[product.ID] = product
	return nil
}

func (t *tx) GetOrderForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	if err := t.lock(ctx, orderKey(id)); err != nil {
		return domain.Order{}, err
	}
	return t.GetOrder(ctx, id)
}

func (t *tx) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	created := order.Clone()
	created.ID = t.store.orderSeq.Add(1)
	now := t.now()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now
	if err := t.lock(ctx, orderKey(created.ID)); err != nil {
		return domain.Order{}, err
	}

	for i := range created.Lines {
		line := &created.Lines[i]
		line.ID = t.store.lineSeq.Add(1)
		line.OrderID = created.ID
		if line.CreatedAt.IsZero() {
			line.CreatedAt = now
		}
		t.lines[line.ID] = *line
		t.newLines[created.ID] = append(t.newLines[created.ID], line.ID)
	}

	header := created
	header.Lines = nil
	t.orders[created.ID] = header
	return created, nil
}

func (t *tx) SaveOrder(ctx context.Context, order domain.Order) error {
	if err := t.lock(ctx, orderKey(order.ID)); err != nil {
		return err
	}
	if _, ok := t.assembleOrder(order.ID); !ok {
		return domain.NotFoundf("order %d not found", order.ID)
	}
	header := order
	header.Lines = nil
	header.UpdatedAt = t.now()
	t.orders[order.ID] = header
	return nil
}

func (t *tx) DeleteOrder(ctx context.Context, id int64) error {
	if err := t.lock(ctx, orderKey(id)); err != nil {
		return err
	}
	order, ok := t.assembleOrder(id)
	if !ok {
		return domain.NotFoundf("order %d not found", id)
	}
	for _, line := range order.Lines {
		t.deletedLines[line.ID] = id
		delete(t.lines, line.ID)
	}
	delete(t.orders, id)
	t.deletedOrders[id] = struct{}{}
	return nil
}

func (t *tx) InsertLine(ctx context.Context, line domain.OrderLine) (domain.OrderLine, error) {
	if err := t.lock(ctx, orderKey(line.OrderID)); err != nil {
		return domain.OrderLine{}, err
	}
	if _, ok := t.assembleOrder(line.OrderID); !ok {
		return domain.OrderLine{}, domain.NotFoundf("order %d not found", line.OrderID)
	}
	line.ID = t.store.lineSeq.Add(1)
	if line.CreatedAt.IsZero() {
		line.CreatedAt = t.now()
	}
	t.lines[line.ID] = line
	t.newLines[line.OrderID] = append(t.newLines[line.OrderID], line.ID)
	return line, nil
}

func (t *tx) UpdateLine(ctx context.Context, line domain.OrderLine) error {
	if err := t.lock(ctx, orderKey(line.OrderID)); err != nil {
		return err
	}
	order, ok := t.assembleOrder(line.OrderID)
	if !ok {
		return domain.NotFoundf("order %d not found", line.OrderID)
	}
	if _, ok := findLine(order, line.ID); !ok {
		return domain.NotFoundf("line %d not found in order %d", line.ID, line.OrderID)
	}
	t.lines[line.ID] = line
	return nil
}

func (t *tx) DeleteLine(ctx context.Context, line domain.OrderLine) error {
	if err := t.lock(ctx, orderKey(line.OrderID)); err != nil {
		return err
	}
	order, ok := t.assembleOrder(line.OrderID)
	if !ok {
		return domain.NotFoundf("order %d not found", line.OrderID)
	}
	if _, ok := findLine(order, line.ID); !ok {
		return domain.NotFoundf("line %d not found in order %d", line.ID, line.OrderID)
	}
	delete(t.lines, line.ID)
	t.deletedLines[line.ID] = line.OrderID
	return nil
}

func (t *tx) CreateCustomer(_ context.Context, customer domain.Customer) (domain.Customer, error) {
	customer.ID = t.store.customerSeq.Add(1)
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = t.now()
	}
	t.customers[customer.ID] = customer
	return customer, nil
}

func (t *tx) CreateAddress(_ context.Context, address domain.Address) (domain.Address, error) {
	address.ID = t.store.addressSeq.Add(1)
	if address.CreatedAt.IsZero() {
		address.CreatedAt = t.now()
	}
	t.addresses[address.ID] = address
	return address, nil
}

func (t *tx) Enqueue(_ context.Context, msg domain.OutboxMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = t.now()
	}
	t.outbox = append(t.outbox, msg)
	return nil
}

func findLine(order domain.Order, lineID int64) (domain.OrderLine, bool) {
	for _, line := range order.Lines {
		if line.ID == lineID {
			return line, true
		}
	}
	return domain.OrderLine{}, false
}

// commit применяет изменения под эксклюзивной блокировкой хранилища.
func (t *tx) commit() error {
	s := t.store
	s.mu.Lock()

	for id := range t.newProducts {
		key := domain.NormalizeProductName(t.products[id].Name)
		if other, ok := s.productNames[key]; ok && other != id {
			s.mu.Unlock()
			return domain.NewError(domain.ErrConflict, "product with name '%s' already exists", t.products[id].Name)
		}
	}

	for id, c := range t.customers {
		s.customers[id] = c
	}
	for id, a := range t.addresses {
		s.addresses[id] = a
	}
	for id, p := range t.products {
		if old, ok := s.products[id]; ok {
			delete(s.productNames, domain.NormalizeProductName(old.Name))
		}
		s.products[id] = p
		s.productNames[domain.NormalizeProductName(p.Name)] = id
	}
	for id, o := range t.orders {
		s.orders[id] = o
	}
	for id, l := range t.lines {
		s.lines[id] = l
	}
	for orderID, ids := range t.newLines {
		s.orderLines[orderID] = append(s.orderLines[orderID], ids...)
	}
	for lineID, orderID := range t.deletedLines {
		delete(s.lines, lineID)
		s.orderLines[orderID] = without(s.orderLines[orderID], lineID)
	}
	for id := range t.deletedOrders {
		for _, lineID := range s.orderLines[id] {
			delete(s.lines, lineID)
		}
		delete(s.orderLines, id)
		delete(s.orders, id)
	}
	s.mu.Unlock()

	if len(t.outbox) > 0 {
		s.outbox.append(t.outbox...)
	}
	return nil
}

func without(ids []int64, target int64) []int64 {
	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != target {
			result = append(result, id)
		}
	}
	return result
}

var _ domain.Tx = (*tx)(nil)

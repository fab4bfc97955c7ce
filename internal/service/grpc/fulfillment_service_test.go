package grpcsvc_test

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	fulfillmentv1 "github.com/vladislavdragonenkov/fulfillment/api/fulfillment/v1"
	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	grpcsvc "github.com/vladislavdragonenkov/fulfillment/internal/service/grpc"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/inventory"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/orders"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/pricing"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
)

const (
	bufSize    = 1024 * 1024
	ownerEmail = "ola@example.com"
)

var idemCounter atomic.Int64

func idemCtx(key string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "idempotency-key", key)
}

func freshIdemCtx() context.Context {
	return idemCtx(fmt.Sprintf("key-%d", idemCounter.Add(1)))
}

type testEnv struct {
	client   *fulfillmentv1.FulfillmentServiceClient
	store    *memory.Store
	customer domain.Customer
	address  domain.Address
}

func newTestServer(t *testing.T, opts ...memory.Option) *testEnv {
	t.Helper()

	listener := bufconn.Listen(bufSize)
	logger := loggerForTests()
	store := memory.NewStore(opts...)
	ledger := inventory.NewLedger(inventory.DefaultPolicy(), logger)
	svc := orders.NewService(store, ledger, pricing.NewCalculator(pricing.DefaultConfig()), logger)
	service := grpcsvc.NewFulfillmentService(svc, memory.NewIdempotencyRepository(), logger)

	env := &testEnv{store: store}
	ctx := context.Background()
	require.NoError(t, store.InTx(ctx, func(tx domain.Tx) error {
		var err error
		env.customer, err = tx.CreateCustomer(ctx, domain.Customer{Name: "Ola", Email: ownerEmail, PhoneNumber: "+4790000000"})
		if err != nil {
			return err
		}
		env.address, err = tx.CreateAddress(ctx, domain.Address{CustomerID: env.customer.ID, Street: "Karl Johans gate 1", ZipCode: "0154", City: "Oslo", Country: "Norway"})
		return err
	}))

	server := grpc.NewServer()
	fulfillmentv1.RegisterFulfillmentServiceServer(server, service)

	go func() {
		if err := server.Serve(listener); err != nil {
			logger.WithError(err).Error("grpc serve failed")
		}
	}()

	dialer := func(context.Context, string) (net.Conn, error) {
		return listener.Dial()
	}

	conn, err := grpc.NewClient("passthrough:///bufnet", grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})

	env.client = fulfillmentv1.NewFulfillmentServiceClient(conn)
	return env
}

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: false, DisableTimestamp: true})
	logger.SetLevel(logrus.PanicLevel)
	return logger.WithField("component", "test")
}

func (e *testEnv) product(t *testing.T, name, price string, qty int32) fulfillmentv1.Product {
	t.Helper()
	resp, err := e.client.CreateProduct(context.Background(), &fulfillmentv1.CreateProductRequest{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Quantity: qty,
		Unit:     "pcs",
	})
	require.NoError(t, err)
	return resp.Product
}

func (e *testEnv) order(t *testing.T, items ...fulfillmentv1.LineItem) fulfillmentv1.Order {
	t.Helper()
	resp, err := e.client.CreateOrder(freshIdemCtx(), &fulfillmentv1.CreateOrderRequest{
		CustomerID: e.customer.ID,
		AddressID:  e.address.ID,
		Items:      items,
	})
	require.NoError(t, err)
	return resp.Order
}

func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok, "expected grpc status, got %v", err)
	require.Equal(t, code, st.Code(), st.Message())
}

func TestFulfillmentService_CreateOrderFlow(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()

	wings := env.product(t, "Chicken wings", "10.00", 20)
	breast := env.product(t, "Chicken breast", "25.50", 5)

	order := env.order(t,
		fulfillmentv1.LineItem{ProductID: wings.ID, Quantity: 2},
		fulfillmentv1.LineItem{ProductID: breast.ID, Quantity: 1},
	)
	require.Equal(t, string(domain.OrderStatusConfirmed), order.Status)
	require.Len(t, order.Lines, 2)
	require.True(t, decimal.RequireFromString("45.50").Equal(order.TotalSum), order.TotalSum.String())
	require.Len(t, order.Date, len("2006-01-02"))

	got, err := env.client.GetProduct(ctx, &fulfillmentv1.GetProductRequest{ProductID: breast.ID})
	require.NoError(t, err)
	require.Equal(t, int32(4), got.Product.Quantity)
	require.Equal(t, string(domain.ProductStatusPendingRestock), got.Product.Status)

	fetched, err := env.client.GetOrder(ctx, &fulfillmentv1.GetOrderRequest{OrderID: order.ID})
	require.NoError(t, err)
	require.Equal(t, order.ID, fetched.Order.ID)
	require.True(t, order.TotalSum.Equal(fetched.Order.TotalSum))

	list, err := env.client.ListCustomerOrders(ctx, &fulfillmentv1.ListCustomerOrdersRequest{CustomerID: env.customer.ID})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
}

func TestFulfillmentService_CreateOrderRequiresIdempotencyKey(t *testing.T) {
	env := newTestServer(t)
	wings := env.product(t, "Wings", "10.00", 20)

	_, err := env.client.CreateOrder(context.Background(), &fulfillmentv1.CreateOrderRequest{
		CustomerID: env.customer.ID,
		AddressID:  env.address.ID,
		Items:      []fulfillmentv1.LineItem{{ProductID: wings.ID, Quantity: 1}},
	})
	requireCode(t, err, codes.InvalidArgument)
}

func TestFulfillmentService_CreateOrderReplaysCachedResponse(t *testing.T) {
	env := newTestServer(t)
	wings := env.product(t, "Wings", "10.00", 20)

	req := &fulfillmentv1.CreateOrderRequest{
		CustomerID: env.customer.ID,
		AddressID:  env.address.ID,
		Items:      []fulfillmentv1.LineItem{{ProductID: wings.ID, Quantity: 3}},
	}
	first, err := env.client.CreateOrder(idemCtx("order-1"), req)
	require.NoError(t, err)
	second, err := env.client.CreateOrder(idemCtx("order-1"), req)
	require.NoError(t, err)
	require.Equal(t, first.Order.ID, second.Order.ID)

	got, err := env.client.GetProduct(context.Background(), &fulfillmentv1.GetProductRequest{ProductID: wings.ID})
	require.NoError(t, err)
	require.Equal(t, int32(17), got.Product.Quantity)

	req.Items[0].Quantity = 4
	_, err = env.client.CreateOrder(idemCtx("order-1"), req)
	requireCode(t, err, codes.AlreadyExists)
}

func TestFulfillmentService_CachedFailureIsReplayed(t *testing.T) {
	env := newTestServer(t)
	wings := env.product(t, "Wings", "10.00", 1)

	req := &fulfillmentv1.CreateOrderRequest{
		CustomerID: env.customer.ID,
		AddressID:  env.address.ID,
		Items:      []fulfillmentv1.LineItem{{ProductID: wings.ID, Quantity: 5}},
	}
	_, err := env.client.CreateOrder(idemCtx("too-many"), req)
	requireCode(t, err, codes.FailedPrecondition)

	_, err = env.client.RestockProduct(idemCtx("restock-1"), &fulfillmentv1.RestockProductRequest{ProductID: wings.ID, Quantity: 10})
	require.NoError(t, err)

	_, err = env.client.CreateOrder(idemCtx("too-many"), req)
	requireCode(t, err, codes.FailedPrecondition)
}

func TestFulfillmentService_LockTimeoutCanBeRetriedWithSameKey(t *testing.T) {
	env := newTestServer(t, memory.WithLockTimeout(50*time.Millisecond))
	wings := env.product(t, "Wings", "10.00", 20)
	ctx := context.Background()

	locked := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = env.store.InTx(ctx, func(tx domain.Tx) error {
			if err := tx.LockProducts(ctx, wings.ID); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	req := &fulfillmentv1.CreateOrderRequest{
		CustomerID: env.customer.ID,
		AddressID:  env.address.ID,
		Items:      []fulfillmentv1.LineItem{{ProductID: wings.ID, Quantity: 4}},
	}
	_, err := env.client.CreateOrder(idemCtx("busy-wings"), req)
	requireCode(t, err, codes.Aborted)

	close(release)
	wg.Wait()

	resp, err := env.client.CreateOrder(idemCtx("busy-wings"), req)
	require.NoError(t, err)
	require.Equal(t, string(domain.OrderStatusConfirmed), resp.Order.Status)

	got, err := env.client.GetProduct(ctx, &fulfillmentv1.GetProductRequest{ProductID: wings.ID})
	require.NoError(t, err)
	require.Equal(t, int32(16), got.Product.Quantity)

	replay, err := env.client.CreateOrder(idemCtx("busy-wings"), req)
	require.NoError(t, err)
	require.Equal(t, resp.Order.ID, replay.Order.ID)
}

func TestFulfillmentService_CreateProductsBatch(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()

	resp, err := env.client.CreateProducts(ctx, &fulfillmentv1.CreateProductsRequest{Products: []fulfillmentv1.CreateProductRequest{
		{Name: "Wings", Price: decimal.RequireFromString("59.00"), Quantity: 40, Unit: "kg"},
		{Name: "Breast", Price: decimal.RequireFromString("129.00"), Quantity: 2, Unit: "kg"},
	}})
	require.NoError(t, err)
	require.Len(t, resp.Products, 2)
	require.Equal(t, string(domain.ProductStatusPendingRestock), resp.Products[1].Status)

	_, err = env.client.CreateProducts(ctx, &fulfillmentv1.CreateProductsRequest{Products: []fulfillmentv1.CreateProductRequest{
		{Name: "Thighs", Price: decimal.NewFromInt(70), Quantity: 1},
		{Name: "WINGS", Price: decimal.NewFromInt(1), Quantity: 1},
	}})
	requireCode(t, err, codes.AlreadyExists)

	_, err = env.client.CreateProduct(ctx, &fulfillmentv1.CreateProductRequest{Name: "Liver", Price: decimal.RequireFromString("0.333")})
	requireCode(t, err, codes.InvalidArgument)

	list, err := env.client.ListProducts(ctx, &fulfillmentv1.ListProductsRequest{})
	require.NoError(t, err)
	require.Len(t, list.Products, 2)
}

func TestFulfillmentService_ErrorCodes(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()
	wings := env.product(t, "Wings", "10.00", 3)
	order := env.order(t, fulfillmentv1.LineItem{ProductID: wings.ID, Quantity: 1})

	_, err := env.client.GetProduct(ctx, &fulfillmentv1.GetProductRequest{ProductID: 999})
	requireCode(t, err, codes.NotFound)

	_, err = env.client.CreateProduct(ctx, &fulfillmentv1.CreateProductRequest{Name: "  wings ", Price: decimal.NewFromInt(1), Quantity: 1})
	requireCode(t, err, codes.AlreadyExists)

	_, err = env.client.CreateProduct(ctx, &fulfillmentv1.CreateProductRequest{Name: "", Price: decimal.NewFromInt(1)})
	requireCode(t, err, codes.InvalidArgument)

	_, err = env.client.ListOrderLines(ctx, &fulfillmentv1.ListOrderLinesRequest{OrderID: order.ID, CustomerEmail: "intruder@example.com"})
	requireCode(t, err, codes.PermissionDenied)

	_, err = env.client.AddOrderLine(ctx, &fulfillmentv1.AddOrderLineRequest{OrderID: order.ID, ProductID: wings.ID, Quantity: 1, CustomerEmail: ownerEmail})
	requireCode(t, err, codes.FailedPrecondition)

	_, err = env.client.UpdateOrderStatus(ctx, &fulfillmentv1.UpdateOrderStatusRequest{OrderID: order.ID, Status: "lost"})
	requireCode(t, err, codes.InvalidArgument)

	_, err = env.client.UpdateOrderStatus(ctx, &fulfillmentv1.UpdateOrderStatusRequest{OrderID: order.ID, Status: "shipped"})
	require.NoError(t, err)

	_, err = env.client.DeleteOrder(ctx, &fulfillmentv1.DeleteOrderRequest{OrderID: order.ID})
	requireCode(t, err, codes.FailedPrecondition)
}

func TestFulfillmentService_LineMutations(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()
	wings := env.product(t, "Wings", "10.00", 20)
	thighs := env.product(t, "Thighs", "8.00", 20)
	order := env.order(t, fulfillmentv1.LineItem{ProductID: wings.ID, Quantity: 2})

	added, err := env.client.AddOrderLine(ctx, &fulfillmentv1.AddOrderLineRequest{
		OrderID: order.ID, ProductID: thighs.ID, Quantity: 3, CustomerEmail: ownerEmail,
	})
	require.NoError(t, err)
	require.Equal(t, "Thighs", added.Line.ProductName)
	require.True(t, decimal.RequireFromString("24").Equal(added.Line.TotalPrice))

	updated, err := env.client.UpdateOrderLine(ctx, &fulfillmentv1.UpdateOrderLineRequest{
		OrderID: order.ID, ProductName: "wings", Quantity: 5, CustomerEmail: ownerEmail,
	})
	require.NoError(t, err)
	require.Equal(t, int32(5), updated.Line.Quantity)

	_, err = env.client.DeleteOrderLine(ctx, &fulfillmentv1.DeleteOrderLineRequest{
		OrderID: order.ID, ProductID: thighs.ID, CustomerEmail: ownerEmail,
	})
	require.NoError(t, err)

	lines, err := env.client.ListOrderLines(ctx, &fulfillmentv1.ListOrderLinesRequest{OrderID: order.ID, CustomerEmail: ownerEmail})
	require.NoError(t, err)
	require.Len(t, lines.Lines, 1)

	stock, err := env.client.ListProducts(ctx, &fulfillmentv1.ListProductsRequest{})
	require.NoError(t, err)
	require.Len(t, stock.Products, 2)
	require.Equal(t, int32(15), stock.Products[0].Quantity)
	require.Equal(t, int32(20), stock.Products[1].Quantity)

	deleted, err := env.client.DeleteOrder(ctx, &fulfillmentv1.DeleteOrderRequest{OrderID: order.ID})
	require.NoError(t, err)
	require.Equal(t, order.ID, deleted.OrderID)

	got, err := env.client.GetProduct(ctx, &fulfillmentv1.GetProductRequest{ProductID: wings.ID})
	require.NoError(t, err)
	require.Equal(t, int32(20), got.Product.Quantity)
}

func TestFulfillmentService_PriceAndQuantityUpdates(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()
	wings := env.product(t, "Wings", "10.00", 20)
	order := env.order(t, fulfillmentv1.LineItem{ProductID: wings.ID, Quantity: 1})

	priced, err := env.client.UpdateProductPrice(ctx, &fulfillmentv1.UpdateProductPriceRequest{Name: "WINGS", Price: decimal.RequireFromString("12.00")})
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("12").Equal(priced.Product.Price))

	fetched, err := env.client.GetOrder(ctx, &fulfillmentv1.GetOrderRequest{OrderID: order.ID})
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("10").Equal(fetched.Order.Lines[0].UnitPrice))

	set, err := env.client.SetProductQuantity(ctx, &fulfillmentv1.SetProductQuantityRequest{ProductID: wings.ID, Quantity: 0})
	require.NoError(t, err)
	require.Equal(t, string(domain.ProductStatusOutOfStock), set.Product.Status)

	_, err = env.client.RestockProduct(ctx, &fulfillmentv1.RestockProductRequest{ProductID: wings.ID, Quantity: 5})
	requireCode(t, err, codes.InvalidArgument)
}

func TestFulfillmentService_ConcurrentOrdersDoNotOversell(t *testing.T) {
	env := newTestServer(t)
	wings := env.product(t, "Wings", "10.00", 10)

	const buyers = 8
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.client.CreateOrder(freshIdemCtx(), &fulfillmentv1.CreateOrderRequest{
				CustomerID: env.customer.ID,
				AddressID:  env.address.ID,
				Items:      []fulfillmentv1.LineItem{{ProductID: wings.ID, Quantity: 3}},
			})
			if err == nil {
				succeeded.Add(1)
				return
			}
			code := status.Code(err)
			if code != codes.FailedPrecondition && code != codes.Aborted {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := env.client.GetProduct(context.Background(), &fulfillmentv1.GetProductRequest{ProductID: wings.ID})
	require.NoError(t, err)
	require.Equal(t, int32(10-3*succeeded.Load()), got.Product.Quantity)
	require.GreaterOrEqual(t, got.Product.Quantity, int32(0))
}

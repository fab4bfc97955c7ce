package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	fulfillmentv1 "github.com/vladislavdragonenkov/fulfillment/api/fulfillment/v1"
	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	grpcsvc "github.com/vladislavdragonenkov/fulfillment/internal/service/grpc"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/inventory"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/orders"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/pricing"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
)

type fakeOrderClient struct {
	createFn     func(context.Context, *fulfillmentv1.CreateOrderRequest, ...grpc.CallOption) (*fulfillmentv1.OrderResponse, error)
	updateFn     func(context.Context, *fulfillmentv1.UpdateOrderStatusRequest, ...grpc.CallOption) (*fulfillmentv1.OrderResponse, error)
	deleteFn     func(context.Context, *fulfillmentv1.DeleteOrderRequest, ...grpc.CallOption) (*fulfillmentv1.DeleteOrderResponse, error)
	getProductFn func(context.Context, *fulfillmentv1.GetProductRequest, ...grpc.CallOption) (*fulfillmentv1.ProductResponse, error)
}

var _ orderClient = (*fakeOrderClient)(nil)
var _ orderClient = (*fulfillmentv1.FulfillmentServiceClient)(nil)

func (f *fakeOrderClient) CreateOrder(ctx context.Context, req *fulfillmentv1.CreateOrderRequest, opts ...grpc.CallOption) (*fulfillmentv1.OrderResponse, error) {
	if f.createFn == nil {
		return nil, errors.New("unexpected CreateOrder call")
	}
	return f.createFn(ctx, req, opts...)
}

func (f *fakeOrderClient) UpdateOrderStatus(ctx context.Context, req *fulfillmentv1.UpdateOrderStatusRequest, opts ...grpc.CallOption) (*fulfillmentv1.OrderResponse, error) {
	if f.updateFn == nil {
		return nil, errors.New("unexpected UpdateOrderStatus call")
	}
	return f.updateFn(ctx, req, opts...)
}

func (f *fakeOrderClient) DeleteOrder(ctx context.Context, req *fulfillmentv1.DeleteOrderRequest, opts ...grpc.CallOption) (*fulfillmentv1.DeleteOrderResponse, error) {
	if f.deleteFn == nil {
		return nil, errors.New("unexpected DeleteOrder call")
	}
	return f.deleteFn(ctx, req, opts...)
}

func (f *fakeOrderClient) GetProduct(ctx context.Context, req *fulfillmentv1.GetProductRequest, opts ...grpc.CallOption) (*fulfillmentv1.ProductResponse, error) {
	if f.getProductFn == nil {
		return nil, errors.New("unexpected GetProduct call")
	}
	return f.getProductFn(ctx, req, opts...)
}

func withCLIArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine

	os.Args = append([]string{"loadtest"}, args...)
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flag.CommandLine = fs

	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    loadMode
		wantErr string
	}{
		{name: "create", input: "create", want: modeCreate},
		{name: "create-ship", input: " create-ship ", want: modeCreateShip},
		{name: "create-delete", input: "create-delete", want: modeCreateDelete},
		{name: "unsupported", input: "create-pay", wantErr: "unsupported mode"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseMode(tc.input)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("unexpected mode: got %q want %q", got, tc.want)
			}
		})
	}
}

func TestParseConfig(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		withCLIArgs(t, []string{
			"-addr=127.0.0.1:50051",
			"-mode=create-ship",
			"-total=12",
			"-concurrency=3",
			"-connections=2",
			"-timeout=2s",
			"-delete-rate=10",
			"-customer-id=7",
			"-address-id=8",
			"-product-id=9",
			"-quantity=2",
			"-verify-stock=false",
			"-output=/tmp/out.json",
		}, func() {
			cfg, err := parseConfig()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !cfg.totalSet {
				t.Fatalf("expected totalSet=true")
			}
			if cfg.duration != 0 {
				t.Fatalf("expected zero duration, got %s", cfg.duration)
			}
			if cfg.mode != modeCreateShip {
				t.Fatalf("unexpected mode: %s", cfg.mode)
			}
			if cfg.total != 12 || cfg.concurrency != 3 || cfg.connections != 2 {
				t.Fatalf("unexpected numeric config: %+v", cfg)
			}
			if cfg.customerID != 7 || cfg.addressID != 8 || cfg.productID != 9 || cfg.quantity != 2 {
				t.Fatalf("unexpected order config: %+v", cfg)
			}
			if cfg.verifyStock {
				t.Fatalf("expected verifyStock=false")
			}
			if cfg.timeout != 2*time.Second {
				t.Fatalf("unexpected timeout: %s", cfg.timeout)
			}
		})
	})

	t.Run("duration mode", func(t *testing.T) {
		withCLIArgs(t, []string{
			"-duration=3s",
			"-concurrency=2",
			"-connections=1",
		}, func() {
			cfg, err := parseConfig()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.duration != 3*time.Second {
				t.Fatalf("unexpected duration: %s", cfg.duration)
			}
			if cfg.totalSet {
				t.Fatalf("expected totalSet=false when -total was not provided")
			}
			if !cfg.verifyStock {
				t.Fatalf("expected verifyStock to default to true")
			}
		})
	})

	t.Run("validation errors", func(t *testing.T) {
		tests := []struct {
			name    string
			args    []string
			wantErr string
		}{
			{name: "invalid duration", args: []string{"-duration=bad"}, wantErr: "parse duration"},
			{name: "negative duration", args: []string{"-duration=-1s"}, wantErr: "duration must be >= 0"},
			{name: "invalid delete rate", args: []string{"-delete-rate=101"}, wantErr: "delete-rate must be between 0 and 100"},
			{name: "empty total", args: []string{"-duration=0s", "-total=0"}, wantErr: "total must be > 0"},
			{name: "zero product", args: []string{"-product-id=0"}, wantErr: "must be > 0"},
			{name: "zero quantity", args: []string{"-quantity=0"}, wantErr: "quantity must be > 0"},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				withCLIArgs(t, tc.args, func() {
					_, err := parseConfig()
					if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
						t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
					}
				})
			})
		}
	})
}

func TestDispatchJobs(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{total: 5})

		var got []int
		for v := range jobs {
			got = append(got, v)
		}
		if !slices.Equal(got, []int{0, 1, 2, 3, 4}) {
			t.Fatalf("unexpected jobs sequence: %v", got)
		}
	})

	t.Run("duration mode", func(t *testing.T) {
		jobs := make(chan int, 32)
		done := make(chan struct{})
		go func() {
			dispatchJobs(jobs, config{duration: 20 * time.Millisecond})
			close(done)
		}()

		count := 0
		for range jobs {
			count++
		}
		<-done
		if count == 0 {
			t.Fatalf("expected non-zero jobs for duration mode")
		}
	})

	t.Run("duration with explicit max total", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{duration: time.Second, total: 3, totalSet: true})
		count := 0
		for range jobs {
			count++
		}
		if count != 3 {
			t.Fatalf("expected 3 jobs, got %d", count)
		}
	})
}

func TestCollectorAndReport(t *testing.T) {
	c := newCollector()
	c.record(scenarioMethod, 10*time.Millisecond, codes.OK)
	c.record(scenarioMethod, 12*time.Millisecond, codes.OK)
	c.reject()
	c.record(scenarioMethod, 20*time.Millisecond, codes.Internal)
	c.record(fulfillmentv1.MethodCreateOrder, 15*time.Millisecond, codes.OK)
	c.reserve(3)
	c.reserve(-1)

	snap, ok := c.snapshot(scenarioMethod)
	if !ok {
		t.Fatalf("scenario snapshot missing")
	}
	if snap.Calls != 3 || snap.Success != 2 || snap.Failed != 1 {
		t.Fatalf("unexpected scenario snapshot: %+v", snap)
	}
	if snap.Codes[codes.OK.String()] != 2 || snap.Codes[codes.Internal.String()] != 1 {
		t.Fatalf("unexpected codes: %+v", snap.Codes)
	}

	r := c.buildReport(time.Now(), 2*time.Second)
	if r.TotalScenarios != 3 || r.SuccessScenarios != 1 || r.RejectedScenarios != 1 || r.FailedScenarios != 1 {
		t.Fatalf("unexpected report totals: %+v", r)
	}
	if r.RPS <= 0 {
		t.Fatalf("expected positive rps, got %f", r.RPS)
	}
	if _, ok := r.Methods[fulfillmentv1.MethodCreateOrder]; !ok {
		t.Fatalf("expected CreateOrder stats in report")
	}
	if got := c.reservedTotal(); got != 2 {
		t.Fatalf("unexpected reserved total: %d", got)
	}
}

func TestBuildStockReport(t *testing.T) {
	ok := buildStockReport(1, 10, 4, 6)
	if !ok.Consistent || ok.Expected != 6 {
		t.Fatalf("expected consistent stock report, got %+v", ok)
	}

	oversold := buildStockReport(1, 10, 4, 5)
	if oversold.Consistent {
		t.Fatalf("expected inconsistent stock report, got %+v", oversold)
	}

	negative := buildStockReport(1, 2, 3, -1)
	if negative.Consistent {
		t.Fatalf("negative stock must never be consistent, got %+v", negative)
	}
}

func TestUtilityFunctions(t *testing.T) {
	if got := grpcCode(nil); got != codes.OK {
		t.Fatalf("grpcCode(nil) = %s, want OK", got)
	}
	if got := grpcCode(status.Error(codes.Unavailable, "down")); got != codes.Unavailable {
		t.Fatalf("unexpected grpc code: %s", got)
	}

	if got := ratio(1, 4); got != 0.25 {
		t.Fatalf("ratio mismatch: %f", got)
	}
	if got := ratio(1, 0); got != 0 {
		t.Fatalf("ratio with zero total must be 0, got %f", got)
	}

	values := []float64{10, 20, 30, 40}
	summary := buildLatencySummary(values)
	if summary.P50 <= 0 || summary.P95 <= 0 || summary.Max != 40 {
		t.Fatalf("unexpected latency summary: %+v", summary)
	}
	if p := percentile(values, 95); p <= 0 {
		t.Fatalf("unexpected percentile: %f", p)
	}

	if shouldDeleteScenario(5, 0) || !shouldDeleteScenario(5, 100) || !shouldDeleteScenario(105, 10) || shouldDeleteScenario(15, 10) {
		t.Fatalf("unexpected delete sampling")
	}

	if got := runTarget(config{total: 50}); got != "count:50" {
		t.Fatalf("unexpected run target: %s", got)
	}
	if got := runTarget(config{duration: 2 * time.Second}); got != "duration:2s" {
		t.Fatalf("unexpected duration run target: %s", got)
	}
	if got := runTarget(config{duration: 2 * time.Second, total: 10, totalSet: true}); got != "duration:2s,max-total:10" {
		t.Fatalf("unexpected capped duration run target: %s", got)
	}
}

func TestWriteJSONReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	sample := report{TotalScenarios: 2, SuccessScenarios: 2, Stock: buildStockReport(1, 5, 2, 3)}
	if err := writeJSONReport(path, sample); err != nil {
		t.Fatalf("writeJSONReport error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}

	var decoded report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.TotalScenarios != 2 || decoded.SuccessScenarios != 2 {
		t.Fatalf("unexpected decoded report: %+v", decoded)
	}
	if decoded.Stock == nil || !decoded.Stock.Consistent {
		t.Fatalf("expected stock section in report: %+v", decoded.Stock)
	}

	if err := writeJSONReport("../escape.json", sample); err == nil {
		t.Fatalf("expected error for path outside current directory")
	}
}

func TestRunScenarioModes(t *testing.T) {
	baseCfg := config{
		timeout:    time.Second,
		customerID: 1,
		addressID:  2,
		productID:  3,
		quantity:   2,
	}

	created := func(t *testing.T, wantKeyPrefix string) func(context.Context, *fulfillmentv1.CreateOrderRequest, ...grpc.CallOption) (*fulfillmentv1.OrderResponse, error) {
		return func(ctx context.Context, req *fulfillmentv1.CreateOrderRequest, _ ...grpc.CallOption) (*fulfillmentv1.OrderResponse, error) {
			mustHaveIdempotencyKeyPrefix(t, ctx, wantKeyPrefix)
			if req.CustomerID != 1 || req.AddressID != 2 || len(req.Items) != 1 || req.Items[0].ProductID != 3 || req.Items[0].Quantity != 2 {
				t.Fatalf("unexpected create request: %+v", req)
			}
			return &fulfillmentv1.OrderResponse{Order: fulfillmentv1.Order{ID: 42}}, nil
		}
	}

	t.Run("create keeps reservation", func(t *testing.T) {
		c := newCollector()
		cfg := baseCfg
		cfg.mode = modeCreate
		client := &fakeOrderClient{createFn: created(t, "lt-create-run-1-1")}

		if err := runScenario(client, cfg, 1, "run-1", c); err != nil {
			t.Fatalf("runScenario failed: %v", err)
		}
		if got := c.reservedTotal(); got != 2 {
			t.Fatalf("expected 2 reserved, got %d", got)
		}
	})

	t.Run("create-ship updates status", func(t *testing.T) {
		c := newCollector()
		cfg := baseCfg
		cfg.mode = modeCreateShip
		var shipped bool
		client := &fakeOrderClient{
			createFn: created(t, "lt-create-run-2-4"),
			updateFn: func(_ context.Context, req *fulfillmentv1.UpdateOrderStatusRequest, _ ...grpc.CallOption) (*fulfillmentv1.OrderResponse, error) {
				if req.OrderID != 42 || req.Status != "SHIPPED" {
					t.Fatalf("unexpected status request: %+v", req)
				}
				shipped = true
				return &fulfillmentv1.OrderResponse{Order: fulfillmentv1.Order{ID: 42, Status: "SHIPPED"}}, nil
			},
		}

		if err := runScenario(client, cfg, 4, "run-2", c); err != nil {
			t.Fatalf("runScenario failed: %v", err)
		}
		if !shipped {
			t.Fatalf("expected UpdateOrderStatus call")
		}
		if got := c.reservedTotal(); got != 2 {
			t.Fatalf("shipped order keeps its stock, got %d", got)
		}
	})

	t.Run("create-delete returns stock", func(t *testing.T) {
		c := newCollector()
		cfg := baseCfg
		cfg.mode = modeCreateDelete
		client := &fakeOrderClient{
			createFn: created(t, "lt-create-run-3-0"),
			deleteFn: func(_ context.Context, req *fulfillmentv1.DeleteOrderRequest, _ ...grpc.CallOption) (*fulfillmentv1.DeleteOrderResponse, error) {
				return &fulfillmentv1.DeleteOrderResponse{OrderID: req.OrderID}, nil
			},
		}

		if err := runScenario(client, cfg, 0, "run-3", c); err != nil {
			t.Fatalf("runScenario failed: %v", err)
		}
		if got := c.reservedTotal(); got != 0 {
			t.Fatalf("deleted order must release stock, got %d", got)
		}
		if _, ok := c.snapshot(fulfillmentv1.MethodDeleteOrder); !ok {
			t.Fatalf("DeleteOrder metric missing")
		}
	})

	t.Run("sold out is a rejection", func(t *testing.T) {
		c := newCollector()
		cfg := baseCfg
		cfg.mode = modeCreate
		client := &fakeOrderClient{
			createFn: func(context.Context, *fulfillmentv1.CreateOrderRequest, ...grpc.CallOption) (*fulfillmentv1.OrderResponse, error) {
				return nil, status.Error(codes.FailedPrecondition, "out of stock")
			},
		}

		if err := runScenario(client, cfg, 5, "run-4", c); err != nil {
			t.Fatalf("rejection must not fail the scenario: %v", err)
		}
		r := c.buildReport(time.Now(), time.Second)
		if r.RejectedScenarios != 1 || r.FailedScenarios != 0 || r.SuccessScenarios != 0 {
			t.Fatalf("unexpected report: %+v", r)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		c := newCollector()
		cfg := baseCfg
		cfg.mode = modeCreate
		client := &fakeOrderClient{
			createFn: func(context.Context, *fulfillmentv1.CreateOrderRequest, ...grpc.CallOption) (*fulfillmentv1.OrderResponse, error) {
				return nil, status.Error(codes.Unavailable, "create unavailable")
			},
		}
		if err := runScenario(client, cfg, 6, "run-5", c); status.Code(err) != codes.Unavailable {
			t.Fatalf("expected Unavailable error, got %v", err)
		}
	})

	t.Run("empty order id", func(t *testing.T) {
		c := newCollector()
		cfg := baseCfg
		cfg.mode = modeCreate
		client := &fakeOrderClient{
			createFn: func(context.Context, *fulfillmentv1.CreateOrderRequest, ...grpc.CallOption) (*fulfillmentv1.OrderResponse, error) {
				return &fulfillmentv1.OrderResponse{}, nil
			},
		}
		if err := runScenario(client, cfg, 7, "run-6", c); err == nil || !strings.Contains(err.Error(), "empty order id") {
			t.Fatalf("expected empty id error, got %v", err)
		}
	})
}

func TestPrintReport(t *testing.T) {
	r := report{
		TotalScenarios:   2,
		SuccessScenarios: 2,
		Methods: map[string]methodReport{
			scenarioMethod: {Calls: 2, Success: 2},
			"CreateOrder":  {Calls: 2, Success: 2},
		},
		Stock: buildStockReport(1, 10, 2, 8),
	}

	out := captureStdout(t, func() {
		printReport(r, config{mode: modeCreate, total: 2})
	})

	if !strings.Contains(out, "Load test summary") {
		t.Fatalf("expected summary header, got: %s", out)
	}
	if !strings.Contains(out, "CreateOrder") {
		t.Fatalf("expected method section, got: %s", out)
	}
	if !strings.Contains(out, "consistent=true") {
		t.Fatalf("expected stock section, got: %s", out)
	}
}

// startFulfillmentServer поднимает настоящий сервис поверх memory-хранилища
// с одним клиентом, адресом и товаром с заданным остатком.
func startFulfillmentServer(t *testing.T, stock int) (addr string, productID int64) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	entry := logger.WithField("component", "loadtest-test")

	store := memory.NewStore()
	svc := orders.NewService(store, inventory.NewLedger(inventory.DefaultPolicy(), entry), pricing.NewCalculator(pricing.DefaultConfig()), entry)

	ctx := context.Background()
	if err := store.InTx(ctx, func(tx domain.Tx) error {
		customer, err := tx.CreateCustomer(ctx, domain.Customer{Name: "Load", Email: "load@example.com"})
		if err != nil {
			return err
		}
		_, err = tx.CreateAddress(ctx, domain.Address{CustomerID: customer.ID, Street: "Storgata 1", ZipCode: "0155", City: "Oslo", Country: "Norway"})
		return err
	}); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	product, err := svc.CreateProduct(ctx, orders.ProductInput{Name: "Chicken breast", Price: decimal.NewFromInt(120), Quantity: stock, Unit: "kg"})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := grpc.NewServer()
	fulfillmentv1.RegisterFulfillmentServiceServer(srv, grpcsvc.NewFulfillmentService(svc, memory.NewIdempotencyRepository(), entry))
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	return lis.Addr().String(), product.ID
}

func TestMainSmokeDoesNotOversell(t *testing.T) {
	addr, productID := startFulfillmentServer(t, 3)

	dir := t.TempDir()
	outPath := filepath.Join(dir, "main-report.json")

	withCLIArgs(t, []string{
		"-addr=" + addr,
		"-mode=create",
		"-total=8",
		"-concurrency=4",
		"-connections=2",
		"-timeout=2s",
		"-customer-id=1",
		"-address-id=1",
		"-product-id=" + strconv.FormatInt(productID, 10),
		"-output=" + outPath,
	}, func() {
		main()
	})

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("expected report file from main: %v", err)
	}
	var decoded report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.SuccessScenarios != 3 || decoded.RejectedScenarios != 5 {
		t.Fatalf("expected 3 orders and 5 rejections, got %+v", decoded)
	}
	if decoded.Stock == nil || !decoded.Stock.Consistent || decoded.Stock.Final != 0 {
		t.Fatalf("unexpected stock section: %+v", decoded.Stock)
	}
}

func TestExecuteCreateDeleteRestoresStock(t *testing.T) {
	addr, productID := startFulfillmentServer(t, 10)

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	cfg := config{
		total:       6,
		concurrency: 3,
		timeout:     2 * time.Second,
		mode:        modeCreateDelete,
		customerID:  1,
		addressID:   1,
		productID:   productID,
		quantity:    2,
		verifyStock: true,
	}
	result, err := execute(cfg, []orderClient{fulfillmentv1.NewFulfillmentServiceClient(conn)})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.FailedScenarios != 0 {
		t.Fatalf("unexpected failures: %+v", result.Methods)
	}
	if result.Stock == nil || !result.Stock.Consistent || result.Stock.Final != 10 {
		t.Fatalf("deleting every order must restore stock: %+v", result.Stock)
	}
}

func TestExecuteWithoutClients(t *testing.T) {
	if _, err := execute(config{total: 1, concurrency: 1}, nil); err == nil {
		t.Fatalf("expected error without clients")
	}
}

func mustHaveIdempotencyKeyPrefix(t *testing.T, ctx context.Context, wantPrefix string) {
	t.Helper()

	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatalf("missing outgoing metadata")
	}
	values := md.Get(idempotencyHeader)
	if len(values) != 1 || !strings.HasPrefix(values[0], wantPrefix) {
		t.Fatalf("unexpected idempotency key: got=%v want prefix %q", values, wantPrefix)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = oldStdout

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read captured output: %v", err)
	}
	_ = r.Close()

	return string(data)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	fulfillmentv1 "github.com/vladislavdragonenkov/fulfillment/api/fulfillment/v1"
)

const (
	idempotencyHeader = "idempotency-key"
	scenarioMethod    = "scenario"
)

type loadMode string

const (
	modeCreate       loadMode = "create"
	modeCreateShip   loadMode = "create-ship"
	modeCreateDelete loadMode = "create-delete"
)

// orderClient — подмножество API, которым пользуется нагрузочный тест.
type orderClient interface {
	CreateOrder(ctx context.Context, in *fulfillmentv1.CreateOrderRequest, opts ...grpc.CallOption) (*fulfillmentv1.OrderResponse, error)
	UpdateOrderStatus(ctx context.Context, in *fulfillmentv1.UpdateOrderStatusRequest, opts ...grpc.CallOption) (*fulfillmentv1.OrderResponse, error)
	DeleteOrder(ctx context.Context, in *fulfillmentv1.DeleteOrderRequest, opts ...grpc.CallOption) (*fulfillmentv1.DeleteOrderResponse, error)
	GetProduct(ctx context.Context, in *fulfillmentv1.GetProductRequest, opts ...grpc.CallOption) (*fulfillmentv1.ProductResponse, error)
}

type config struct {
	addr        string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	deleteRate  int
	customerID  int64
	addressID   int64
	productID   int64
	quantity    int
	verifyStock bool
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type stockReport struct {
	ProductID  int64 `json:"product_id"`
	Initial    int64 `json:"initial"`
	Reserved   int64 `json:"reserved"`
	Expected   int64 `json:"expected"`
	Final      int64 `json:"final"`
	Consistent bool  `json:"consistent"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	RejectedScenarios int64                   `json:"rejected_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
	Stock             *stockReport            `json:"stock,omitempty"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu       sync.Mutex
	methods  map[string]*methodStats
	rejected int64
	reserved int64
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
	}
}

func (c *collector) record(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{
			codes: make(map[string]int64),
		}
		c.methods[method] = stats
	}

	stats.calls++
	if code == codes.OK {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[code.String()]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

// reject учитывает заказ, отклонённый из-за нехватки товара. Это ожидаемый
// исход под нагрузкой, а не ошибка сценария.
func (c *collector) reject() {
	atomic.AddInt64(&c.rejected, 1)
}

// reserve двигает счётчик товара, удерживаемого живыми заказами.
func (c *collector) reserve(delta int64) {
	atomic.AddInt64(&c.reserved, delta)
}

func (c *collector) reservedTotal() int64 {
	return atomic.LoadInt64(&c.reserved)
}

func (c *collector) snapshot(name string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[name]
	if !ok {
		return methodReport{}, false
	}
	return stats.report(), true
}

func (s *methodStats) report() methodReport {
	codesCopy := make(map[string]int64, len(s.codes))
	for code, count := range s.codes {
		codesCopy[code] = count
	}
	return methodReport{
		Calls:     s.calls,
		Success:   s.success,
		Failed:    s.failed,
		ErrorRate: ratio(s.failed, s.calls),
		Codes:     codesCopy,
		LatencyMs: buildLatencySummary(s.latencies),
	}
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:         startedAt.UTC(),
		DurationSeconds:   duration.Seconds(),
		RejectedScenarios: atomic.LoadInt64(&c.rejected),
		Methods:           make(map[string]methodReport, len(c.methods)),
	}

	if scenarioStats := c.methods[scenarioMethod]; scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success - result.RejectedScenarios
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		result.Methods[name] = stats.report()
	}

	return result
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string
	var timeoutValue string
	var durationValue string

	flag.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m, 15m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.IntVar(&cfg.connections, "connections", 20, "number of gRPC client connections")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-RPC timeout")
	flag.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-ship | create-delete")
	flag.IntVar(&cfg.deleteRate, "delete-rate", 0, "delete probability in percent for create mode (0..100)")
	flag.Int64Var(&cfg.customerID, "customer-id", 1, "customer placing the orders")
	flag.Int64Var(&cfg.addressID, "address-id", 1, "delivery address of the orders")
	flag.Int64Var(&cfg.productID, "product-id", 1, "product ordered by every scenario")
	flag.IntVar(&cfg.quantity, "quantity", 1, "quantity ordered by every scenario")
	flag.BoolVar(&cfg.verifyStock, "verify-stock", true, "compare final stock with initial stock minus reserved quantity")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	switch {
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.deleteRate < 0 || cfg.deleteRate > 100:
		return cfg, errors.New("delete-rate must be between 0 and 100")
	case cfg.customerID <= 0 || cfg.addressID <= 0 || cfg.productID <= 0:
		return cfg, errors.New("customer-id, address-id and product-id must be > 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("quantity must be > 0")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeCreate:
		return modeCreate, nil
	case modeCreateShip:
		return modeCreateShip, nil
	case modeCreateDelete:
		return modeCreateDelete, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]orderClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, fulfillmentv1.NewFulfillmentServiceClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	result, err := execute(cfg, clients)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test aborted: %v\n", err)
		os.Exit(1)
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 || (result.Stock != nil && !result.Stock.Consistent) {
		os.Exit(1)
	}
}

// execute прогоняет сценарии и, если включено, сверяет остаток товара до и после.
func execute(cfg config, clients []orderClient) (report, error) {
	if len(clients) == 0 {
		return report{}, errors.New("no clients")
	}

	var initial int64
	if cfg.verifyStock {
		qty, err := fetchStock(clients[0], cfg.timeout, cfg.productID)
		if err != nil {
			return report{}, fmt.Errorf("read initial stock: %w", err)
		}
		initial = qty
	}

	startedAt := time.Now()
	runID := uuid.NewString()
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		client := clients[workerID%len(clients)]
		go func(cli orderClient) {
			defer wg.Done()
			for id := range jobs {
				_ = runScenario(cli, cfg, id, runID, col)
			}
		}(client)
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))

	if cfg.verifyStock {
		final, err := fetchStock(clients[0], cfg.timeout, cfg.productID)
		if err != nil {
			return result, fmt.Errorf("read final stock: %w", err)
		}
		result.Stock = buildStockReport(cfg.productID, initial, col.reservedTotal(), final)
	}
	return result, nil
}

func buildStockReport(productID, initial, reserved, final int64) *stockReport {
	expected := initial - reserved
	return &stockReport{
		ProductID:  productID,
		Initial:    initial,
		Reserved:   reserved,
		Expected:   expected,
		Final:      final,
		Consistent: final == expected && final >= 0,
	}
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

func runScenario(
	client orderClient,
	cfg config,
	index int,
	runID string,
	col *collector,
) error {
	scenarioStart := time.Now()
	scenarioCode := codes.OK
	defer func() {
		col.record(scenarioMethod, time.Since(scenarioStart), scenarioCode)
	}()

	createReq := &fulfillmentv1.CreateOrderRequest{
		CustomerID: cfg.customerID,
		AddressID:  cfg.addressID,
		Items: []fulfillmentv1.LineItem{
			{ProductID: cfg.productID, Quantity: int32(cfg.quantity)},
		},
	}

	createKey := fmt.Sprintf("lt-create-%s-%d", runID, index)
	orderResp, err := callCreateOrder(client, cfg.timeout, createReq, createKey, col)
	if err != nil {
		if grpcCode(err) == codes.FailedPrecondition {
			col.reject()
			return nil
		}
		scenarioCode = grpcCode(err)
		return err
	}
	orderID := orderResp.Order.ID
	if orderID == 0 {
		scenarioCode = codes.Internal
		return errors.New("create response returned empty order id")
	}
	col.reserve(int64(cfg.quantity))

	switch {
	case cfg.mode == modeCreateShip:
		if err := callShipOrder(client, cfg.timeout, orderID, col); err != nil {
			scenarioCode = grpcCode(err)
			return err
		}
	case cfg.mode == modeCreateDelete || (cfg.mode == modeCreate && shouldDeleteScenario(index, cfg.deleteRate)):
		if err := callDeleteOrder(client, cfg.timeout, orderID, col); err != nil {
			scenarioCode = grpcCode(err)
			return err
		}
		col.reserve(-int64(cfg.quantity))
	}

	return nil
}

func callCreateOrder(
	client orderClient,
	timeout time.Duration,
	req *fulfillmentv1.CreateOrderRequest,
	key string,
	col *collector,
) (*fulfillmentv1.OrderResponse, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, idempotencyHeader, key)

	resp, err := client.CreateOrder(ctx, req)
	col.record(fulfillmentv1.MethodCreateOrder, time.Since(start), grpcCode(err))
	return resp, err
}

func callShipOrder(client orderClient, timeout time.Duration, orderID int64, col *collector) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := client.UpdateOrderStatus(ctx, &fulfillmentv1.UpdateOrderStatusRequest{OrderID: orderID, Status: "SHIPPED"})
	col.record(fulfillmentv1.MethodUpdateOrderStatus, time.Since(start), grpcCode(err))
	return err
}

func callDeleteOrder(client orderClient, timeout time.Duration, orderID int64, col *collector) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := client.DeleteOrder(ctx, &fulfillmentv1.DeleteOrderRequest{OrderID: orderID})
	col.record(fulfillmentv1.MethodDeleteOrder, time.Since(start), grpcCode(err))
	return err
}

func fetchStock(client orderClient, timeout time.Duration, productID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := client.GetProduct(ctx, &fulfillmentv1.GetProductRequest{ProductID: productID})
	if err != nil {
		return 0, err
	}
	return int64(resp.Product.Quantity), nil
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

func shouldDeleteScenario(index, deleteRate int) bool {
	if deleteRate <= 0 {
		return false
	}
	if deleteRate >= 100 {
		return true
	}
	return index%100 < deleteRate
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s run=%s total=%d success=%d rejected=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.RejectedScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Printf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == scenarioMethod {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		fmt.Printf(
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}

	if stock := result.Stock; stock != nil {
		fmt.Printf("stock product=%d initial=%d reserved=%d expected=%d final=%d consistent=%t\n",
			stock.ProductID, stock.Initial, stock.Reserved, stock.Expected, stock.Final, stock.Consistent)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}

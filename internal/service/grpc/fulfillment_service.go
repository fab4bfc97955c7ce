package grpcsvc

import (
	"context"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	fulfillmentv1 "github.com/vladislavdragonenkov/fulfillment/api/fulfillment/v1"
	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/orders"
)

// FulfillmentService реализует gRPC API поверх сервиса заказов.
type FulfillmentService struct {
	fulfillmentv1.UnimplementedFulfillmentServiceServer

	orders   *orders.Service
	idemRepo domain.IdempotencyRepository
	logger   *log.Entry
}

var _ fulfillmentv1.FulfillmentServiceServer = (*FulfillmentService)(nil)

// NewFulfillmentService конструирует сервис. idemRepo может быть nil:
// тогда idempotency-key не проверяется.
func NewFulfillmentService(svc *orders.Service, idemRepo domain.IdempotencyRepository, logger *log.Entry) *FulfillmentService {
	if logger == nil {
		logger = log.New().WithField("component", "fulfillment-grpc")
	}
	return &FulfillmentService{
		orders:   svc,
		idemRepo: idemRepo,
		logger:   logger,
	}
}

// CreateProduct заводит товар в каталоге.
func (s *FulfillmentService) CreateProduct(ctx context.Context, req *fulfillmentv1.CreateProductRequest) (*fulfillmentv1.ProductResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	product, err := s.orders.CreateProduct(ctx, orders.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    int(req.Quantity),
		Unit:        req.Unit,
	})
	if err != nil {
		return nil, s.toStatus(fulfillmentv1.MethodCreateProduct, err)
	}
	return &fulfillmentv1.ProductResponse{Product: toAPIProduct(product)}, nil
}

// CreateProducts заводит пачку товаров атомарно.
func (s *FulfillmentService) CreateProducts(ctx context.Context, req *fulfillmentv1.CreateProductsRequest) (*fulfillmentv1.ListProductsResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	inputs := make([]orders.ProductInput, 0, len(req.Products))
	for _, p := range req.Products {
		inputs = append(inputs, orders.ProductInput{
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Quantity:    int(p.Quantity),
			Unit:        p.Unit,
		})
	}
	products, err := s.orders.CreateProducts(ctx, inputs)
	if err != nil {
		return nil, s.toStatus(fulfillmentv1.MethodCreateProducts, err)
	}
	resp := &fulfillmentv1.ListProductsResponse{Products: make([]fulfillmentv1.Product, 0, len(products))}
	for _, product := range products {
		resp.Products = append(resp.Products, toAPIProduct(product))
	}
	return resp, nil
}

// UpdateProductPrice меняет цену товара по имени.
func (s *FulfillmentService) UpdateProductPrice(ctx context.Context, req *fulfillmentv1.UpdateProductPriceRequest) (*fulfillmentv1.ProductResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	product, err := s.orders.UpdateProductPrice(ctx, req.Name, req.Price)
	if err != nil {
		return nil, s.toStatus(fulfillmentv1.MethodUpdateProductPrice, err)
	}
	return &fulfillmentv1.ProductResponse{Product: toAPIProduct(product)}, nil
}

// RestockProduct пополняет остаток. Требует idempotency-key: повтор поставки
// не должен удваивать остаток.
func (s *FulfillmentService) RestockProduct(ctx context.Context, req *fulfillmentv1.RestockProductRequest) (*fulfillmentv1.ProductResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	return withIdempotency(s, ctx, fulfillmentv1.MethodRestockProduct, req,
		func(ctx context.Context) (*fulfillmentv1.ProductResponse, error) {
			product, err := s.orders.RestockProduct(ctx, req.ProductID, int(req.Quantity))
			if err != nil {
				return nil, s.toStatus(fulfillmentv1.MethodRestockProduct, err)
			}
			return &fulfillmentv1.ProductResponse{Product: toAPIProduct(product)}, nil
		},
	)
}

// SetProductQuantity выставляет абсолютный остаток.
func (s *FulfillmentService) SetProductQuantity(ctx context.Context, req *fulfillmentv1.SetProductQuantityRequest) (*fulfillmentv1.ProductResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	product, err := s.orders.SetProductQuantity(ctx, req.ProductID, int(req.Quantity))
	if err != nil {
		return nil, s.toStatus(fulfillmentv1.MethodSetProductQuantity, err)
	}
	return &fulfillmentv1.ProductResponse{Product: toAPIProduct(product)}, nil
}

func (s *FulfillmentService) GetProduct(ctx context.Context, req *fulfillmentv1.GetProductRequest) (*fulfillmentv1.ProductResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	product, err := s.orders.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, s.toStatus(fulfillmentv1.MethodGetProduct, err)
	}
	return &fulfillmentv1.ProductResponse{Product: toAPIProduct(product)}, nil
}

func (s *FulfillmentService) ListProducts(ctx context.Context, _ *fulfillmentv1.ListProductsRequest) (*fulfillmentv1.ListProductsResponse, error) {
	products, err := s.orders.ListProducts(ctx)
	if err != nil {
		return nil, s.toStatus(fulfillmentv1.MethodListProducts, err)
	}
	resp := &fulfillmentv1.ListProductsResponse{Products: make([]fulfillmentv1.Product, 0, len(products))}
	for _, product := range products {
		resp.Products = append(resp.Products, toAPIProduct(product))
	}
	return resp, nil
}

// CreateOrder оформляет заказ. Требует idempotency-key.
func (s *FulfillmentService) CreateOrder(ctx context.Context, req *fulfillmentv1.CreateOrderRequest) (*fulfillmentv1.OrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	return withIdempotency(s, ctx, fulfillmentv1.MethodCreateOrder, req,
		func(ctx context.Context) (*fulfillmentv1.OrderResponse, error) {
			in := orders.CreateOrderInput{
				CustomerID: req.CustomerID,
				AddressID:  req.AddressID,
				Lines:      make([]orders.LineInput, 0, len(req.Items)),
			}
			for _, item := range req.Items {
				in.Lines = append(in.Lines, orders.LineInput{ProductID: item.ProductID, Quantity: int(item.Quantity)})
			}
			view, err := s.orders.CreateOrder(ctx, in)
			if err != nil {
				return nil, s.toStatus(fulfillmentv1.MethodCreateOrder, err)
			}
			return &fulfillmentv1.OrderResponse{Order: toAPIOrder(view)}, nil
		},
	)
}

func (s *FulfillmentService) AddOrderLine(ctx context.Context, req *fulfillmentv1.AddOrderLineRequest) (*fulfillmentv1.OrderLineResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	line, err := s.orders.AddLine(ctx, orders.AddLineInput{
		OrderID:       req.OrderID,
		ProductID:     req.ProductID,
		Quantity:      int(req.Quantity),
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		return nil, s.toStatus(fulfillmentv1.MethodAddOrderLine, err)
	}
	return &fulfillmentv1.OrderLineResponse{Line: toAPILine(line)}, nil
}

func (s *FulfillmentService) UpdateOrderLine(ctx context.Context, req *fulfillmentv1.UpdateOrderLineRequest) (*fulfillmentv1.OrderLineResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	line, err := s.orders.UpdateLineQuantity(ctx, orders.UpdateLineInput{
		OrderID:       req.OrderID,
		ProductName:   req.ProductName,
		Quantity:      int(req.Quantity),
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		return nil, s.toStatus(fulfillmentv1.MethodUpdateOrderLine, err)
	}
	return &fulfillmentv1.OrderLineResponse{Line: toAPILine(line)}, nil
}

func (s *FulfillmentService) DeleteOrderLine(ctx context.Context, req *fulfillmentv1.DeleteOrderLineRequest) (*fulfillmentv1.OrderLineResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	line, err := s.orders.DeleteLine(ctx, orders.DeleteLineInput{
		OrderID:       req.OrderID,
		ProductID:     req.ProductID,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		return nil, s.toStatus(fulfillmentv1.MethodDeleteOrderLine, err)
	}
	return &fulfillmentv1.OrderLineResponse{Line: toAPILine(line)}, nil
}

func (s *FulfillmentService) ListOrderLines(ctx context.Context, req *fulfillmentv1.ListOrderLinesRequest) (*fulfillmentv1.ListOrderLinesResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	lines, err := s.orders.ListOrderLines(ctx, req.OrderID, req.CustomerEmail)
	if err != nil {
		return nil, s.toStatus(fulfillmentv1.MethodListOrderLines, err)
	}
	resp := &fulfillmentv1.ListOrderLinesResponse{Lines: make([]fulfillmentv1.OrderLine, 0, len(lines))}
	for _, line := range lines {
		resp.Lines = append(resp.Lines, toAPILine(line))
	}
	return resp, nil
}

// UpdateOrderStatus принимает статус без учёта регистра.
func (s *FulfillmentService) UpdateOrderStatus(ctx context.Context, req *fulfillmentv1.UpdateOrderStatusRequest) (*fulfillmentv1.OrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	orderStatus, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, s.toStatus(fulfillmentv1.MethodUpdateOrderStatus, err)
	}
	view, err := s.orders.UpdateStatus(ctx, req.OrderID, orderStatus)
	if err != nil {
		return nil, s.toStatus(fulfillmentv1.MethodUpdateOrderStatus, err)
	}
	return &fulfillmentv1.OrderResponse{Order: toAPIOrder(view)}, nil
}

func (s *FulfillmentService) DeleteOrder(ctx context.Context, req *fulfillmentv1.DeleteOrderRequest) (*fulfillmentv1.DeleteOrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if err := s.orders.DeleteOrder(ctx, req.OrderID); err != nil {
		return nil, s.toStatus(fulfillmentv1.MethodDeleteOrder, err)
	}
	return &fulfillmentv1.DeleteOrderResponse{OrderID: req.OrderID}, nil
}

func (s *FulfillmentService) GetOrder(ctx context.Context, req *fulfillmentv1.GetOrderRequest) (*fulfillmentv1.OrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	view, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, s.toStatus(fulfillmentv1.MethodGetOrder, err)
	}
	return &fulfillmentv1.OrderResponse{Order: toAPIOrder(view)}, nil
}

func (s *FulfillmentService) ListOrders(ctx context.Context, _ *fulfillmentv1.ListOrdersRequest) (*fulfillmentv1.ListOrdersResponse, error) {
	views, err := s.orders.ListOrders(ctx)
	if err != nil {
		return nil, s.toStatus(fulfillmentv1.MethodListOrders, err)
	}
	return toAPIOrders(views), nil
}

func (s *FulfillmentService) ListCustomerOrders(ctx context.Context, req *fulfillmentv1.ListCustomerOrdersRequest) (*fulfillmentv1.ListOrdersResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	views, err := s.orders.ListCustomerOrders(ctx, req.CustomerID)
	if err != nil {
		return nil, s.toStatus(fulfillmentv1.MethodListCustomerOrders, err)
	}
	return toAPIOrders(views), nil
}

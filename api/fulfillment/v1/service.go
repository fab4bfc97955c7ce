package fulfillmentv1

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName — полное имя gRPC-сервиса.
const ServiceName = "fulfillment.v1.FulfillmentService"

// Имена методов FulfillmentService.
const (
	MethodCreateProduct      = "CreateProduct"
	MethodCreateProducts     = "CreateProducts"
	MethodUpdateProductPrice = "UpdateProductPrice"
	MethodRestockProduct     = "RestockProduct"
	MethodSetProductQuantity = "SetProductQuantity"
	MethodGetProduct         = "GetProduct"
	MethodListProducts       = "ListProducts"
	MethodCreateOrder        = "CreateOrder"
	MethodAddOrderLine       = "AddOrderLine"
	MethodUpdateOrderLine    = "UpdateOrderLine"
	MethodDeleteOrderLine    = "DeleteOrderLine"
	MethodListOrderLines     = "ListOrderLines"
	MethodUpdateOrderStatus  = "UpdateOrderStatus"
	MethodDeleteOrder        = "DeleteOrder"
	MethodGetOrder           = "GetOrder"
	MethodListOrders         = "ListOrders"
	MethodListCustomerOrders = "ListCustomerOrders"
)

// FullMethod возвращает полное имя метода в формате /service/method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// FulfillmentServiceServer — серверная сторона API.
type FulfillmentServiceServer interface {
	CreateProduct(context.Context, *CreateProductRequest) (*ProductResponse, error)
	CreateProducts(context.Context, *CreateProductsRequest) (*ListProductsResponse, error)
	UpdateProductPrice(context.Context, *UpdateProductPriceRequest) (*ProductResponse, error)
	RestockProduct(context.Context, *RestockProductRequest) (*ProductResponse, error)
	SetProductQuantity(context.Context, *SetProductQuantityRequest) (*ProductResponse, error)
	GetProduct(context.Context, *GetProductRequest) (*ProductResponse, error)
	ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error)
	CreateOrder(context.Context, *CreateOrderRequest) (*OrderResponse, error)
	AddOrderLine(context.Context, *AddOrderLineRequest) (*OrderLineResponse, error)
	UpdateOrderLine(context.Context, *UpdateOrderLineRequest) (*OrderLineResponse, error)
	DeleteOrderLine(context.Context, *DeleteOrderLineRequest) (*OrderLineResponse, error)
	ListOrderLines(context.Context, *ListOrderLinesRequest) (*ListOrderLinesResponse, error)
	UpdateOrderStatus(context.Context, *UpdateOrderStatusRequest) (*OrderResponse, error)
	DeleteOrder(context.Context, *DeleteOrderRequest) (*DeleteOrderResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*OrderResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
	ListCustomerOrders(context.Context, *ListCustomerOrdersRequest) (*ListOrdersResponse, error)
}

// RegisterFulfillmentServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterFulfillmentServiceServer(s grpc.ServiceRegistrar, srv FulfillmentServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc описывает unary-методы сервиса для grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FulfillmentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodCreateProduct, Handler: unaryHandler(MethodCreateProduct, FulfillmentServiceServer.CreateProduct)},
		{MethodName: MethodCreateProducts, Handler: unaryHandler(MethodCreateProducts, FulfillmentServiceServer.CreateProducts)},
		{MethodName: MethodUpdateProductPrice, Handler: unaryHandler(MethodUpdateProductPrice, FulfillmentServiceServer.UpdateProductPrice)},
		{MethodName: MethodRestockProduct, Handler: unaryHandler(MethodRestockProduct, FulfillmentServiceServer.RestockProduct)},
		{MethodName: MethodSetProductQuantity, Handler: unaryHandler(MethodSetProductQuantity, FulfillmentServiceServer.SetProductQuantity)},
		{MethodName: MethodGetProduct, Handler: unaryHandler(MethodGetProduct, FulfillmentServiceServer.GetProduct)},
		{MethodName: MethodListProducts, Handler: unaryHandler(MethodListProducts, FulfillmentServiceServer.ListProducts)},
		{MethodName: MethodCreateOrder, Handler: unaryHandler(MethodCreateOrder, FulfillmentServiceServer.CreateOrder)},
		{MethodName: MethodAddOrderLine, Handler: unaryHandler(MethodAddOrderLine, FulfillmentServiceServer.AddOrderLine)},
		{MethodName: MethodUpdateOrderLine, Handler: unaryHandler(MethodUpdateOrderLine, FulfillmentServiceServer.UpdateOrderLine)},
		{MethodName: MethodDeleteOrderLine, Handler: unaryHandler(MethodDeleteOrderLine, FulfillmentServiceServer.DeleteOrderLine)},
		{MethodName: MethodListOrderLines, Handler: unaryHandler(MethodListOrderLines, FulfillmentServiceServer.ListOrderLines)},
		{MethodName: MethodUpdateOrderStatus, Handler: unaryHandler(MethodUpdateOrderStatus, FulfillmentServiceServer.UpdateOrderStatus)},
		{MethodName: MethodDeleteOrder, Handler: unaryHandler(MethodDeleteOrder, FulfillmentServiceServer.DeleteOrder)},
		{MethodName: MethodGetOrder, Handler: unaryHandler(MethodGetOrder, FulfillmentServiceServer.GetOrder)},
		{MethodName: MethodListOrders, Handler: unaryHandler(MethodListOrders, FulfillmentServiceServer.ListOrders)},
		{MethodName: MethodListCustomerOrders, Handler: unaryHandler(MethodListCustomerOrders, FulfillmentServiceServer.ListCustomerOrders)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fulfillment/v1/fulfillment.json",
}

func unaryHandler[Req, Resp any](
	method string,
	call func(FulfillmentServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(FulfillmentServiceServer)
		if interceptor == nil {
			return call(server, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(server, ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// FulfillmentServiceClient — клиент API. Все вызовы идут с content-subtype json.
type FulfillmentServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewFulfillmentServiceClient создаёт клиента поверх соединения.
func NewFulfillmentServiceClient(cc grpc.ClientConnInterface) *FulfillmentServiceClient {
	return &FulfillmentServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	callOpts := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, callOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FulfillmentServiceClient) CreateProduct(ctx context.Context, in *CreateProductRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, MethodCreateProduct, in, opts)
}

func (c *FulfillmentServiceClient) CreateProducts(ctx context.Context, in *CreateProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error) {
	return invoke[ListProductsResponse](ctx, c.cc, MethodCreateProducts, in, opts)
}

func (c *FulfillmentServiceClient) UpdateProductPrice(ctx context.Context, in *UpdateProductPriceRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, MethodUpdateProductPrice, in, opts)
}

func (c *FulfillmentServiceClient) RestockProduct(ctx context.Context, in *RestockProductRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, MethodRestockProduct, in, opts)
}

func (c *FulfillmentServiceClient) SetProductQuantity(ctx context.Context, in *SetProductQuantityRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, MethodSetProductQuantity, in, opts)
}

func (c *FulfillmentServiceClient) GetProduct(ctx context.Context, in *GetProductRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, MethodGetProduct, in, opts)
}

func (c *FulfillmentServiceClient) ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error) {
	return invoke[ListProductsResponse](ctx, c.cc, MethodListProducts, in, opts)
}

func (c *FulfillmentServiceClient) CreateOrder(ctx context.Context, in *CreateOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, MethodCreateOrder, in, opts)
}

func (c *FulfillmentServiceClient) AddOrderLine(ctx context.Context, in *AddOrderLineRequest, opts ...grpc.CallOption) (*OrderLineResponse, error) {
	return invoke[OrderLineResponse](ctx, c.cc, MethodAddOrderLine, in, opts)
}

func (c *FulfillmentServiceClient) UpdateOrderLine(ctx context.Context, in *UpdateOrderLineRequest, opts ...grpc.CallOption) (*OrderLineResponse, error) {
	return invoke[OrderLineResponse](ctx, c.cc, MethodUpdateOrderLine, in, opts)
}

func (c *FulfillmentServiceClient) DeleteOrderLine(ctx context.Context, in *DeleteOrderLineRequest, opts ...grpc.CallOption) (*OrderLineResponse, error) {
	return invoke[OrderLineResponse](ctx, c.cc, MethodDeleteOrderLine, in, opts)
}

func (c *FulfillmentServiceClient) ListOrderLines(ctx context.Context, in *ListOrderLinesRequest, opts ...grpc.CallOption) (*ListOrderLinesResponse, error) {
	return invoke[ListOrderLinesResponse](ctx, c.cc, MethodListOrderLines, in, opts)
}

func (c *FulfillmentServiceClient) UpdateOrderStatus(ctx context.Context, in *UpdateOrderStatusRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, MethodUpdateOrderStatus, in, opts)
}

func (c *FulfillmentServiceClient) DeleteOrder(ctx context.Context, in *DeleteOrderRequest, opts ...grpc.CallOption) (*DeleteOrderResponse, error) {
	return invoke[DeleteOrderResponse](ctx, c.cc, MethodDeleteOrder, in, opts)
}

func (c *FulfillmentServiceClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, MethodGetOrder, in, opts)
}

func (c *FulfillmentServiceClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	return invoke[ListOrdersResponse](ctx, c.cc, MethodListOrders, in, opts)
}

func (c *FulfillmentServiceClient) ListCustomerOrders(ctx context.Context, in *ListCustomerOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	return invoke[ListOrdersResponse](ctx, c.cc, MethodListCustomerOrders, in, opts)
}

package fulfillmentv1

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnimplementedFulfillmentServiceServer отвечает Unimplemented на все методы.
// Встраивается в реализации, чтобы новые методы не ломали сборку.
type UnimplementedFulfillmentServiceServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedFulfillmentServiceServer) CreateProduct(context.Context, *CreateProductRequest) (*ProductResponse, error) {
	return nil, unimplemented(MethodCreateProduct)
}

func (UnimplementedFulfillmentServiceServer) CreateProducts(context.Context, *CreateProductsRequest) (*ListProductsResponse, error) {
	return nil, unimplemented(MethodCreateProducts)
}

func (UnimplementedFulfillmentServiceServer) UpdateProductPrice(context.Context, *UpdateProductPriceRequest) (*ProductResponse, error) {
	return nil, unimplemented(MethodUpdateProductPrice)
}

func (UnimplementedFulfillmentServiceServer) RestockProduct(context.Context, *RestockProductRequest) (*ProductResponse, error) {
	return nil, unimplemented(MethodRestockProduct)
}

func (UnimplementedFulfillmentServiceServer) SetProductQuantity(context.Context, *SetProductQuantityRequest) (*ProductResponse, error) {
	return nil, unimplemented(MethodSetProductQuantity)
}

func (UnimplementedFulfillmentServiceServer) GetProduct(context.Context, *GetProductRequest) (*ProductResponse, error) {
	return nil, unimplemented(MethodGetProduct)
}

func (UnimplementedFulfillmentServiceServer) ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error) {
	return nil, unimplemented(MethodListProducts)
}

func (UnimplementedFulfillmentServiceServer) CreateOrder(context.Context, *CreateOrderRequest) (*OrderResponse, error) {
	return nil, unimplemented(MethodCreateOrder)
}

func (UnimplementedFulfillmentServiceServer) AddOrderLine(context.Context, *AddOrderLineRequest) (*OrderLineResponse, error) {
	return nil, unimplemented(MethodAddOrderLine)
}

func (UnimplementedFulfillmentServiceServer) UpdateOrderLine(context.Context, *UpdateOrderLineRequest) (*OrderLineResponse, error) {
	return nil, unimplemented(MethodUpdateOrderLine)
}

func (UnimplementedFulfillmentServiceServer) DeleteOrderLine(context.Context, *DeleteOrderLineRequest) (*OrderLineResponse, error) {
	return nil, unimplemented(MethodDeleteOrderLine)
}

func (UnimplementedFulfillmentServiceServer) ListOrderLines(context.Context, *ListOrderLinesRequest) (*ListOrderLinesResponse, error) {
	return nil, unimplemented(MethodListOrderLines)
}

func (UnimplementedFulfillmentServiceServer) UpdateOrderStatus(context.Context, *UpdateOrderStatusRequest) (*OrderResponse, error) {
	return nil, unimplemented(MethodUpdateOrderStatus)
}

func (UnimplementedFulfillmentServiceServer) DeleteOrder(context.Context, *DeleteOrderRequest) (*DeleteOrderResponse, error) {
	return nil, unimplemented(MethodDeleteOrder)
}

func (UnimplementedFulfillmentServiceServer) GetOrder(context.Context, *GetOrderRequest) (*OrderResponse, error) {
	return nil, unimplemented(MethodGetOrder)
}

func (UnimplementedFulfillmentServiceServer) ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error) {
	return nil, unimplemented(MethodListOrders)
}

func (UnimplementedFulfillmentServiceServer) ListCustomerOrders(context.Context, *ListCustomerOrdersRequest) (*ListOrdersResponse, error) {
	return nil, unimplemented(MethodListCustomerOrders)
}

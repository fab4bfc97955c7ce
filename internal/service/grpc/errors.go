package grpcsvc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// codeFor сопоставляет категорию доменной ошибки с gRPC-кодом.
func codeFor(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, domain.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrForbidden):
		return codes.PermissionDenied
	case errors.Is(err, domain.ErrInvalidInput):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrInsufficientStock):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrConflict):
		return codes.AlreadyExists
	case errors.Is(err, domain.ErrLockTimeout):
		return codes.Aborted
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// toStatus переводит ошибку сервиса в gRPC status. Бизнес-ошибки отдаются
// клиенту как есть, внутренние скрываются за общим сообщением.
func (s *FulfillmentService) toStatus(method string, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codeFor(err)
	if code == codes.Internal {
		s.logger.WithError(err).WithField("method", method).Error("request failed")
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}

package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/searchtrace/internal/types"
)

// Error mapping for graph service handlers.
// Auth errors mapped in auth package interceptor.
// Missing nodes and edges map to NOT_FOUND.
// Malformed requests and bad values map to INVALID_ARGUMENT.
// Context timeouts map to DEADLINE_EXCEEDED.
// Everything else is INTERNAL.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, types.ErrNodeNotFound), errors.Is(err, types.ErrEdgeNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrInvalidValue),
		errors.Is(err, types.ErrPropertyTypeMismatch),
		errors.Is(err, types.ErrInvalidPropertyName):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

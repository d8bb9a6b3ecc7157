package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/sweetbre/internal/core/db"
	"github.com/solatis/sweetbre/internal/types"
)

// Engine errors map to status codes here; auth errors map in the auth
// interceptor. Malformed requests are InvalidArgument at the call site.
func runStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, types.ErrUnknownRuleset), errors.Is(err, db.ErrRunNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrNoProject):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, types.ErrHalted) && ctx.Err() != nil:
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return status.Error(codes.DeadlineExceeded, err.Error())
		}
		return status.Error(codes.Canceled, err.Error())
	}
	// A run stopped by a rule error under stop-on-error.
	return status.Error(codes.Aborted, err.Error())
}

func storageStatus(err error) error {
	if errors.Is(err, db.ErrRunNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	return status.Errorf(codes.Unavailable, "storage: %v", err)
}

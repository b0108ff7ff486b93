package handler

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
)

// grpcCode maps a service error onto the status code clients see.
func grpcCode(err error) codes.Code {
	if errors.Is(err, service.ErrDuplicateRequest) {
		return codes.AlreadyExists
	}
	switch domain.KindOf(err) {
	case domain.KindAuthorization:
		return codes.PermissionDenied
	case domain.KindLifecycle:
		return codes.FailedPrecondition
	case domain.KindReference:
		return codes.NotFound
	case domain.KindAccounting, domain.KindValidation:
		return codes.InvalidArgument
	case domain.KindPayment:
		return codes.Aborted
	default:
		return codes.Internal
	}
}

func httpStatus(err error) int {
	switch grpcCode(err) {
	case codes.AlreadyExists, codes.FailedPrecondition:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Aborted:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal failures from clients.
func publicMessage(err error) string {
	if grpcCode(err) == codes.Internal {
		return "internal error"
	}
	return err.Error()
}

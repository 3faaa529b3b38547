package auth

import (
	"context"
	"fmt"

	"github.com/genricoloni/medialib/internal/domain"
	"go.uber.org/zap"
)

// Static answers every check with a fixed status
type Static struct {
	status domain.AuthorizationStatus
}

// Grant authorizes every caller
func Grant() *Static {
	return &Static{status: domain.AuthorizationAuthorized}
}

// Deny refuses every caller
func Deny() *Static {
	return &Static{status: domain.AuthorizationDenied}
}

func (s *Static) Status(context.Context) (domain.AuthorizationStatus, error) {
	return s.status, nil
}

func (s *Static) Request(context.Context) (domain.AuthorizationStatus, error) {
	return s.status, nil
}

// Kinds accepted by New
const (
	KindPolkit = "polkit"
	KindGrant  = "grant"
	KindDeny   = "deny"
)

// New builds the authorizer named by kind
func New(logger *zap.Logger, kind, action string) (domain.Authorizer, error) {
	switch kind {
	case KindPolkit:
		return NewPolkit(logger, action)
	case KindGrant, "":
		return Grant(), nil
	case KindDeny:
		return Deny(), nil
	default:
		return nil, fmt.Errorf("unknown authorizer %q", kind)
	}
}

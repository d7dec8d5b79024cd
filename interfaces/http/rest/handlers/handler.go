package handlers

import (
	"context"
	"net/http"

	"relmap/application/session"
	"relmap/pkg/auth"
	"relmap/pkg/common"
	pkgerrors "relmap/pkg/errors"
	"relmap/pkg/utils"

	"go.uber.org/zap"
)

// Sessions resolves the working session of a principal
type Sessions interface {
	Get(ctx context.Context, ownerID string) (*session.Session, error)
}

// base carries what every handler needs to resolve a session and report errors
type base struct {
	sessions Sessions
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

func newBase(sessions Sessions, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) base {
	return base{sessions: sessions, errors: errorHandler, logger: logger}
}

// session returns the caller's session, writing the error response when it cannot
func (b base) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		b.errors.Handle(w, r, pkgerrors.NewAuthRequiredError(""))
		return nil, false
	}

	s, err := b.sessions.Get(r.Context(), principal.UserID)
	if err != nil {
		b.errors.Handle(w, r, err)
		return nil, false
	}
	return s, true
}

// decode parses and validates a JSON body, writing the error response on failure
func (b base) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := common.ParseJSONBody(w, r, v); err != nil {
		b.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body").WithCause(err))
		return false
	}
	if err := utils.ValidateStruct(v); err != nil {
		b.errors.Handle(w, r, err)
		return false
	}
	return true
}

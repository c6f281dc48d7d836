package api

import (
	"errors"

	"github.com/filecoin-project/go-jsonrpc"
)

const (
	EDealRequestNotFound = iota + jsonrpc.FirstUserCode
)

var (
	RPCErrors = jsonrpc.NewErrors()

	// ErrDealRequestNotFound signals that no deal request has the given id.
	ErrDealRequestNotFound = &errDealRequestNotFound{}

	_ error = (*errDealRequestNotFound)(nil)
)

func init() {
	RPCErrors.Register(EDealRequestNotFound, new(*errDealRequestNotFound))
}

type errDealRequestNotFound struct{}

func (errDealRequestNotFound) Error() string { return "deal request not found" }

// IsDealRequestNotFound reports whether err, possibly decoded from an RPC
// response, is ErrDealRequestNotFound.
func IsDealRequestNotFound(err error) bool {
	var target *errDealRequestNotFound
	return errors.As(err, &target)
}

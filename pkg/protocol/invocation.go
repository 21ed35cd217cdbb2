package protocol

import (
	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/jsonvalue"
	"github.com/openfroyo/detyped/pkg/resource"
)

// SignatureLookup resolves the parameters of the operation op at addr.
type SignatureLookup func(addr resource.Address, op string) ([]resource.ParameterInfo, error)

// EncodeInvocation converts inv to a request, encoding parameters against sig.
func EncodeInvocation(id string, inv *resource.ManagementInvocation, sig []resource.ParameterInfo) (*InvocationRequest, error) {
	params, err := jsonvalue.EncodeParams(inv.Params, sig)
	if err != nil {
		return nil, err
	}
	return &InvocationRequest{
		ID:        id,
		Address:   inv.Address.String(),
		Operation: inv.OperationID,
		Params:    params,
	}, nil
}

// DecodeInvocation parses the address of req, resolves its signature through
// lookup and decodes the parameters without coercion.
func DecodeInvocation(req *InvocationRequest, lookup SignatureLookup) (*resource.ManagementInvocation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	addr, err := resource.ParseAddress(req.Address)
	if err != nil {
		return nil, err
	}
	sig, err := lookup(addr, req.Operation)
	if err != nil {
		return nil, err
	}
	params, err := jsonvalue.DecodeParams(req.Params, sig)
	if err != nil {
		if fe, ok := faults.As(err); ok {
			return nil, fe.WithAddress(addr.String()).WithOperation(req.Operation)
		}
		return nil, err
	}
	return resource.NewInvocation(addr, req.Operation, params)
}

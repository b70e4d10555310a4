package rpc

import (
	"encoding/json"
	"net/http"
	"strings"

	"peerlend/core/types"
	"peerlend/crypto"
)

func parseAddressParam(raw json.RawMessage, field string) ([20]byte, *RPCError) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return [20]byte{}, invalidParams(field+" must be a string", err.Error())
	}
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, invalidParams("invalid "+field, err.Error())
	}
	return addr.Raw(), nil
}

func requireParams(req *RPCRequest, n int) *RPCError {
	if len(req.Params) < n {
		return invalidParams("missing parameters", map[string]int{"expected": n, "got": len(req.Params)})
	}
	return nil
}

func (s *Server) handleSendTransaction(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	if err := requireParams(req, 1); err != nil {
		return nil, err
	}
	var tx types.Transaction
	if err := json.Unmarshal(req.Params[0], &tx); err != nil {
		return nil, invalidParams("invalid transaction format", err.Error())
	}
	receipt, err := s.node.ApplyTransaction(r.Context(), &tx)
	if err != nil {
		return nil, toRPCError(err)
	}
	return receipt, nil
}

func (s *Server) handleGetLoan(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	if err := requireParams(req, 1); err != nil {
		return nil, err
	}
	id, rpcErr := parseAddressParam(req.Params[0], "loanId")
	if rpcErr != nil {
		return nil, rpcErr
	}
	loan, err := s.node.Loan(id)
	if err != nil {
		return nil, toRPCError(err)
	}
	return loanResult(loan), nil
}

func (s *Server) handleGetLoansByLender(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	if err := requireParams(req, 1); err != nil {
		return nil, err
	}
	lender, rpcErr := parseAddressParam(req.Params[0], "lender")
	if rpcErr != nil {
		return nil, rpcErr
	}
	loans, err := s.node.LoansByLender(lender)
	if err != nil {
		return nil, toRPCError(err)
	}
	out := make([]LoanResult, 0, len(loans))
	for _, loan := range loans {
		out = append(out, loanResult(loan))
	}
	return out, nil
}

func (s *Server) handleGetConfig(_ *http.Request, _ *RPCRequest) (interface{}, *RPCError) {
	cfg, err := s.node.LendingConfig()
	if err != nil {
		return nil, toRPCError(err)
	}
	return configResult(cfg), nil
}

func (s *Server) handleGetNonce(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	if err := requireParams(req, 1); err != nil {
		return nil, err
	}
	addr, rpcErr := parseAddressParam(req.Params[0], "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	nonce, err := s.node.Nonce(addr)
	if err != nil {
		return nil, toRPCError(err)
	}
	return NonceResult{Address: formatAddr(addr), Nonce: nonce}, nil
}

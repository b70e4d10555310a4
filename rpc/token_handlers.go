package rpc

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"peerlend/native/token"
	"peerlend/observability/logging"
)

func parseAssetParam(raw json.RawMessage) (string, *RPCError) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", invalidParams("asset must be a string", err.Error())
	}
	asset, err := token.NormalizeAsset(value)
	if err != nil {
		return "", invalidParams("invalid asset", err.Error())
	}
	return asset, nil
}

func (s *Server) handleGetBalance(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	if err := requireParams(req, 2); err != nil {
		return nil, err
	}
	owner, rpcErr := parseAddressParam(req.Params[0], "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	asset, rpcErr := parseAssetParam(req.Params[1])
	if rpcErr != nil {
		return nil, rpcErr
	}
	vault, ok, err := s.node.Vault(owner, asset)
	if err != nil {
		return nil, toRPCError(err)
	}
	return balanceResult(owner, asset, vault, ok), nil
}

func (s *Server) handleListTokens(_ *http.Request, _ *RPCRequest) (interface{}, *RPCError) {
	tokens, err := s.node.Tokens()
	if err != nil {
		return nil, toRPCError(err)
	}
	return tokens, nil
}

// handleFaucet mints devnet funds. Params: [address, asset, amount].
func (s *Server) handleFaucet(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	subject, err := s.cfg.Faucet.Authorize(r)
	if err != nil {
		return nil, &RPCError{Code: codeUnauthorized, Message: "faucet authorization failed", Data: err.Error()}
	}
	if rpcErr := requireParams(req, 3); rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := parseAddressParam(req.Params[0], "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	asset, rpcErr := parseAssetParam(req.Params[1])
	if rpcErr != nil {
		return nil, rpcErr
	}
	var amount uint64
	if err := json.Unmarshal(req.Params[2], &amount); err != nil {
		return nil, invalidParams("amount must be an unsigned integer", err.Error())
	}
	receipt, err := s.node.Faucet(r.Context(), to, asset, amount)
	if err != nil {
		return nil, toRPCError(err)
	}
	s.logger.Info("faucet request served",
		logging.MaskField("subject", subject),
		slog.String("request_id", RequestIDFromContext(r.Context())))
	return receipt, nil
}

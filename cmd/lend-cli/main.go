package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"peerlend/config"
)

const (
	keystorePassEnv = "LEND_KEYSTORE_PASS"
	faucetTokenEnv  = "LEND_FAUCET_TOKEN"
)

var (
	rpcEndpoint = defaultRPCEndpoint() // overridden by RPC_URL or --rpc
	chainID     = defaultChainID()     // overridden by LEND_CHAIN_ID or --chain-id
	rpcCall     = callRPC
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(args) < 1 {
		fmt.Fprintln(stderr, usage())
		return 1
	}

	rest := args[1:]
	switch args[0] {
	case "keygen":
		return runKeygen(rest, stdout, stderr)
	case "address":
		return runAddress(rest, stdout, stderr)
	case "create-loan":
		return runCreateLoan(rest, stdout, stderr)
	case "borrow":
		return runBorrow(rest, stdout, stderr)
	case "cancel":
		return runCancel(rest, stdout, stderr)
	case "repay":
		return runRepay(rest, stdout, stderr)
	case "transfer":
		return runTransfer(rest, stdout, stderr)
	case "configure":
		return runConfigure(rest, stdout, stderr)
	case "propose-authority":
		return runProposeAuthority(rest, stdout, stderr)
	case "accept-authority":
		return runAcceptAuthority(rest, stdout, stderr)
	case "get-loan":
		return runGetLoan(rest, stdout, stderr)
	case "loans":
		return runLoansByLender(rest, stdout, stderr)
	case "balance":
		return runBalance(rest, stdout, stderr)
	case "config":
		return runQuery("lend_getConfig", nil, stdout, stderr)
	case "tokens":
		return runQuery("token_listTokens", nil, stdout, stderr)
	case "faucet":
		return runFaucet(rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.Join([]string{
		"Usage: lend-cli [--rpc <url>] [--chain-id <id>] <command> [flags]",
		"",
		"Keys:",
		"  keygen --out <keystore>",
		"  address --key <keystore>",
		"Lending:",
		"  create-loan --key <keystore> --loan-asset <sym> --collateral-asset <sym> --amount <n> --interest <n> --duration-days <n> --collateral <n> [--seed <hex>]",
		"  borrow --key <keystore> --loan <id> --collateral <n>",
		"  cancel --key <keystore> --loan <id>",
		"  repay --key <keystore> --loan <id>",
		"  transfer --key <keystore> --to <addr> --asset <sym> --amount <n>",
		"Administration:",
		"  configure --key <keystore> --team <addr> --lend-fee <n> --borrow-fee <n> --expiry-days <n>",
		"  propose-authority --key <keystore> --new <addr>",
		"  accept-authority --key <keystore>",
		"Queries:",
		"  get-loan <id>",
		"  loans <lender>",
		"  balance <addr> <asset>",
		"  config",
		"  tokens",
		"  faucet --to <addr> --asset <sym> --amount <n>   (bearer token from " + faucetTokenEnv + ")",
	}, "\n")
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://localhost" + config.DefaultRPCAddress
}

func defaultChainID() uint64 {
	if v := strings.TrimSpace(os.Getenv("LEND_CHAIN_ID")); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return config.DefaultChainID
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		name, value, inline := strings.Cut(args[i], "=")
		if name != "--rpc" && name != "--chain-id" {
			out = append(out, args[i])
			continue
		}
		if !inline {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for %s", name)
			}
			value = args[i+1]
			i++
		}
		switch name {
		case "--rpc":
			rpcEndpoint = strings.TrimSpace(value)
		case "--chain-id":
			parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
			if err != nil || parsed == 0 {
				return nil, fmt.Errorf("--chain-id must be a positive integer")
			}
			chainID = parsed
		}
	}
	return out, nil
}

func doRPCRequest(payload []byte, bearer string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(bearer); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	return resp, nil
}

func callRPC(method string, params []interface{}, bearer string) (json.RawMessage, *rpcError, error) {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, nil, err
	}
	resp, err := doRPCRequest(body, bearer)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode RPC response (HTTP %d): %w", resp.StatusCode, err)
	}
	return rpcResp.Result, rpcResp.Error, nil
}

func printError(w io.Writer, msg string) int {
	fmt.Fprintf(w, "Error: %s\n", msg)
	return 1
}

func handleRPCError(w io.Writer, err *rpcError) int {
	if err == nil {
		return 0
	}
	if len(err.Data) > 0 {
		var ledger struct {
			Name string `json:"name"`
			Code uint32 `json:"code"`
		}
		if json.Unmarshal(err.Data, &ledger) == nil && ledger.Name != "" {
			fmt.Fprintf(w, "RPC error %d: %s (%s/%d)\n", err.Code, err.Message, ledger.Name, ledger.Code)
			return 1
		}
	}
	fmt.Fprintf(w, "RPC error %d: %s\n", err.Code, err.Message)
	return 1
}

func writeRPCResult(w io.Writer, result json.RawMessage) {
	if len(result) == 0 {
		fmt.Fprintln(w, "null")
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		_, _ = w.Write(result)
		fmt.Fprintln(w)
		return
	}
	pretty.WriteByte('\n')
	_, _ = pretty.WriteTo(w)
}

func runQuery(method string, params []interface{}, stdout, stderr io.Writer) int {
	result, rpcErr, err := rpcCall(method, params, "")
	if err != nil {
		fmt.Fprintf(stderr, "RPC call failed: %v\n", err)
		return 1
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

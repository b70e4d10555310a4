package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

func runGetLoan(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		return printError(stderr, "usage: get-loan <id>")
	}
	if err := validateAddress("loan id", args[0]); err != nil {
		return printError(stderr, err.Error())
	}
	return runQuery("lend_getLoan", []interface{}{strings.TrimSpace(args[0])}, stdout, stderr)
}

func runLoansByLender(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		return printError(stderr, "usage: loans <lender>")
	}
	if err := validateAddress("lender", args[0]); err != nil {
		return printError(stderr, err.Error())
	}
	return runQuery("lend_getLoansByLender", []interface{}{strings.TrimSpace(args[0])}, stdout, stderr)
}

func runBalance(args []string, stdout, stderr io.Writer) int {
	if len(args) != 2 {
		return printError(stderr, "usage: balance <addr> <asset>")
	}
	if err := validateAddress("address", args[0]); err != nil {
		return printError(stderr, err.Error())
	}
	return runQuery("token_getBalance", []interface{}{strings.TrimSpace(args[0]), strings.TrimSpace(args[1])}, stdout, stderr)
}

func runFaucet(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("faucet", stderr)
	var (
		to, asset string
		amount    uint64
	)
	fs.StringVar(&to, "to", "", "recipient address")
	fs.StringVar(&asset, "asset", "", "asset symbol")
	fs.Uint64Var(&amount, "amount", 0, "amount in base units")
	if !parseFlags(fs, args, stderr, "to", "asset", "amount") {
		return 1
	}
	if err := validateAddress("--to", to); err != nil {
		return printError(stderr, err.Error())
	}
	token := strings.TrimSpace(os.Getenv(faucetTokenEnv))
	if token == "" {
		return printError(stderr, fmt.Sprintf("faucet requires a bearer token in %s", faucetTokenEnv))
	}
	result, rpcErr, err := rpcCall("token_faucet", []interface{}{strings.TrimSpace(to), strings.TrimSpace(asset), amount}, token)
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

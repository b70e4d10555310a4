package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"peerlend/cmd/internal/passphrase"
	"peerlend/crypto"
)

var (
	loadSigner         = loadKeystoreSigner
	newPassphrase      = func() (string, error) { return passphrase.NewConfirmingSource(keystorePassEnv).Get() }
	existingPassphrase = func() (string, error) { return passphrase.NewSource(keystorePassEnv).Get() }
)

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage())
	}
	return fs
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	var out string
	fs.StringVar(&out, "out", "", "path of the keystore file to create")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return printError(stderr, "--out is required")
	}
	if _, err := os.Stat(out); err == nil {
		return printError(stderr, fmt.Sprintf("%s already exists; refusing to overwrite", out))
	}

	pass, err := newPassphrase()
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := crypto.SaveToKeystore(out, key, pass); err != nil {
		return printError(stderr, fmt.Sprintf("write keystore: %v", err))
	}
	fmt.Fprintf(stdout, "Keystore written to %s\n", out)
	fmt.Fprintf(stdout, "Address: %s\n", key.PubKey().Address().String())
	return 0
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("address", stderr)
	var keyPath string
	fs.StringVar(&keyPath, "key", "", "keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(keyPath) == "" {
		return printError(stderr, "--key is required")
	}
	addr, err := crypto.KeystoreAddress(keyPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintln(stdout, addr.String())
	return 0
}

func loadKeystoreSigner(path string) (*crypto.PrivateKey, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("--key is required")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("keystore %s not found. run lend-cli keygen first", path)
		}
		return nil, err
	}
	pass, err := existingPassphrase()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore %s: %w", path, err)
	}
	return key, nil
}

// clad-cli is a command-line front end for the wallet core: account
// management against the local keystore and ad-hoc RPC calls against a
// Substrate node.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/clad-sovereign/clad-mobile/config"
	"github.com/clad-sovereign/clad-mobile/internal/accounts"
	"github.com/clad-sovereign/clad-mobile/internal/keyring"
	"github.com/clad-sovereign/clad-mobile/internal/keystore"
	"github.com/clad-sovereign/clad-mobile/internal/log"
	"github.com/clad-sovereign/clad-mobile/internal/noderpc"
	"github.com/clad-sovereign/clad-mobile/internal/storage"
	"github.com/clad-sovereign/clad-mobile/pkg/ss58"
	"github.com/clad-sovereign/clad-mobile/pkg/types"
	"golang.org/x/term"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	dataDir := config.DefaultDataDir()
	network := string(config.Polkadot)
	endpoint := ""

	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--datadir" && len(args) > 1:
			dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			dataDir = args[0][len("--datadir="):]
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			network = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			network = args[0][len("--network="):]
			args = args[1:]
		case args[0] == "--endpoint" && len(args) > 1:
			endpoint = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--endpoint="):
			endpoint = args[0][len("--endpoint="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg := config.Default(config.NetworkType(network))
	cfg.DataDir = dataDir
	if endpoint != "" {
		cfg.Node.Endpoint = endpoint
	}
	if values, err := config.LoadFile(cfg.ConfigFile()); err == nil {
		if err := config.ApplyFileConfig(cfg, values); err != nil {
			fatal("apply config file: %v", err)
		}
	}
	if err := config.Validate(cfg); err != nil {
		fatal("invalid config: %v", err)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "wallet":
		cmdWallet(cfg, cmdArgs)
	case "address":
		cmdAddress(cfg, cmdArgs)
	case "mnemonic":
		cmdMnemonic(cmdArgs)
	case "node":
		cmdNode(cfg, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: clad-cli [global flags] <command> [flags]

Global flags:
  --datadir <path>    Data directory (default: ~/.clad)
  --network <net>     polkadot (default), kusama, or dev
  --endpoint <url>    Node WebSocket endpoint (overrides config)

Commands:
  wallet new --label <l> [--type sr25519|ed25519|ecdsa] [--path //hard/soft] [--words 12|24]
                                  Create an account from a fresh mnemonic
  wallet import --label <l> [--type <t>] [--path <p>]
                                  Import an account from a mnemonic (prompted)
  wallet list                     List stored accounts
  wallet delete --address <addr>  Delete an account and its sealed key

  address encode <pubkey-hex> [--prefix <n>]
                                  Encode a public key as an SS58 address
  address decode <address>        Decode an SS58 address
  address check <address>         Check address validity

  mnemonic new [--words 12|24]    Generate a mnemonic
  mnemonic check "word1 ..."      Validate a mnemonic

  node info                       Connect and show chain metadata/properties
  node call <method> [json-param ...]
                                  Issue a raw RPC call
  node watch-heads                Stream new chain heads (Ctrl-C to stop)
`)
}

// ── wallet ──────────────────────────────────────────────────────────────

func cmdWallet(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal("Usage: clad-cli wallet <new|import|list|delete> [flags]")
	}

	switch args[0] {
	case "new":
		cmdWalletNew(cfg, args[1:])
	case "import":
		cmdWalletImport(cfg, args[1:])
	case "list":
		cmdWalletList(cfg)
	case "delete":
		cmdWalletDelete(cfg, args[1:])
	default:
		fatal("Unknown wallet command: %s\nUsage: clad-cli wallet <new|import|list|delete> [flags]", args[0])
	}
}

func cmdWalletNew(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("wallet new", flag.ExitOnError)
	label := fs.String("label", "", "Account label")
	keyType := fs.String("type", string(types.KeyTypeSR25519), "Key scheme: sr25519, ed25519, or ecdsa")
	path := fs.String("path", "", "Derivation path, e.g. //polkadot//0")
	words := fs.Int("words", 12, "Mnemonic length: 12 or 24")
	fs.Parse(args)

	if *label == "" {
		fatal("Usage: clad-cli wallet new --label <label>")
	}

	wc := keyring.Words12
	if *words == 24 {
		wc = keyring.Words24
	} else if *words != 12 {
		fatal("--words must be 12 or 24")
	}

	mnemonic, err := keyring.GenerateMnemonic(wc)
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}

	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", mnemonic)

	createAccount(cfg, *label, mnemonic, types.KeyType(*keyType), *path)
}

func cmdWalletImport(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("wallet import", flag.ExitOnError)
	label := fs.String("label", "", "Account label")
	keyType := fs.String("type", string(types.KeyTypeSR25519), "Key scheme: sr25519, ed25519, or ecdsa")
	path := fs.String("path", "", "Derivation path, e.g. //polkadot//0")
	fs.Parse(args)

	if *label == "" {
		fatal("Usage: clad-cli wallet import --label <label>")
	}

	// The mnemonic is secret material; read it like a password, not from argv.
	phrase, err := readPassword("Enter mnemonic: ")
	if err != nil {
		fatal("read mnemonic: %v", err)
	}
	mnemonic := strings.TrimSpace(string(phrase))

	if res := keyring.ValidateMnemonic(mnemonic); !res.Valid {
		fatal("invalid mnemonic: %s", res.Reason)
	}

	createAccount(cfg, *label, mnemonic, types.KeyType(*keyType), *path)
}

// createAccount derives the keypair, seals it, and records the account.
// The sealed key is written first; if recording the account fails, the key
// file is removed again so the two stores stay consistent.
func createAccount(cfg *config.Config, label, mnemonic string, keyType types.KeyType, path string) {
	kp, err := keyring.KeypairFromMnemonic(mnemonic, "", keyType, path)
	if err != nil {
		fatal("derive keypair: %v", err)
	}
	defer kp.Clear()

	addr, err := kp.Address(cfg.Network.AddressPrefix())
	if err != nil {
		fatal("encode address: %v", err)
	}

	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}

	ks, err := keystore.NewStore(cfg.KeystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}
	if err := ks.Save(addr, kp, password); err != nil {
		fatal("store key: %v", err)
	}

	db, err := storage.NewBadger(cfg.AccountsDir())
	if err != nil {
		ks.Delete(addr)
		fatal("open accounts db: %v", err)
	}
	defer db.Close()

	if _, err := accounts.NewRepository(db).Create(label, addr, keyType); err != nil {
		ks.Delete(addr)
		fatal("record account: %v", err)
	}

	fmt.Printf("Account created: %s\n", label)
	fmt.Printf("Address: %s\n", addr)
}

func cmdWalletList(cfg *config.Config) {
	db, err := storage.NewBadger(cfg.AccountsDir())
	if err != nil {
		fatal("open accounts db: %v", err)
	}
	defer db.Close()

	all, err := accounts.NewRepository(db).All()
	if err != nil {
		fatal("list accounts: %v", err)
	}
	if len(all) == 0 {
		fmt.Println("No accounts found.")
		return
	}
	for _, a := range all {
		fmt.Printf("%-20s %-10s %s\n", a.Label, a.KeyType, a.Address)
	}
}

func cmdWalletDelete(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("wallet delete", flag.ExitOnError)
	address := fs.String("address", "", "Account address")
	fs.Parse(args)

	if *address == "" {
		fatal("Usage: clad-cli wallet delete --address <address>")
	}

	db, err := storage.NewBadger(cfg.AccountsDir())
	if err != nil {
		fatal("open accounts db: %v", err)
	}
	defer db.Close()

	if err := accounts.NewRepository(db).Delete(*address); err != nil {
		fatal("delete account: %v", err)
	}

	ks, err := keystore.NewStore(cfg.KeystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}
	if err := ks.Delete(*address); err != nil && err != keystore.ErrNotFound {
		fatal("delete key: %v", err)
	}

	fmt.Printf("Account deleted: %s\n", *address)
}

// ── address ─────────────────────────────────────────────────────────────

func cmdAddress(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal("Usage: clad-cli address <encode|decode|check> [flags]")
	}

	switch args[0] {
	case "encode":
		cmdAddressEncode(cfg, args[1:])
	case "decode":
		cmdAddressDecode(args[1:])
	case "check":
		cmdAddressCheck(args[1:])
	default:
		fatal("Unknown address command: %s", args[0])
	}
}

func cmdAddressEncode(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal("Usage: clad-cli address encode <pubkey-hex> [--prefix <n>]")
	}
	pub, err := hex.DecodeString(strings.TrimPrefix(args[0], "0x"))
	if err != nil {
		fatal("invalid public key hex: %v", err)
	}

	prefix := cfg.Network.AddressPrefix()
	if len(args) >= 3 && args[1] == "--prefix" {
		n, err := strconv.ParseUint(args[2], 10, 16)
		if err != nil || n > uint64(ss58.MaxPrefix) {
			fatal("invalid prefix %q", args[2])
		}
		prefix = ss58.NetworkPrefix(n)
	}

	addr, err := ss58.Encode(pub, prefix)
	if err != nil {
		fatal("encode: %v", err)
	}
	fmt.Println(addr)
}

func cmdAddressDecode(args []string) {
	if len(args) < 1 {
		fatal("Usage: clad-cli address decode <address>")
	}
	pub, prefix, err := ss58.Decode(args[0])
	if err != nil {
		fatal("decode: %v", err)
	}
	fmt.Printf("Prefix:     %d\n", prefix)
	fmt.Printf("Public key: 0x%s\n", hex.EncodeToString(pub))
}

func cmdAddressCheck(args []string) {
	if len(args) < 1 {
		fatal("Usage: clad-cli address check <address>")
	}
	if ss58.IsValid(args[0]) {
		fmt.Println("valid")
		return
	}
	fmt.Println("invalid")
	os.Exit(1)
}

// ── mnemonic ────────────────────────────────────────────────────────────

func cmdMnemonic(args []string) {
	if len(args) < 1 {
		fatal("Usage: clad-cli mnemonic <new|check> [flags]")
	}

	switch args[0] {
	case "new":
		wc := keyring.Words12
		if len(args) >= 3 && args[1] == "--words" && args[2] == "24" {
			wc = keyring.Words24
		}
		mnemonic, err := keyring.GenerateMnemonic(wc)
		if err != nil {
			fatal("generate mnemonic: %v", err)
		}
		fmt.Println(mnemonic)
	case "check":
		if len(args) < 2 {
			fatal("Usage: clad-cli mnemonic check \"word1 word2 ...\"")
		}
		res := keyring.ValidateMnemonic(strings.Join(args[1:], " "))
		if res.Valid {
			fmt.Println("valid")
			return
		}
		fmt.Printf("invalid: %s\n", res.Reason)
		os.Exit(1)
	default:
		fatal("Unknown mnemonic command: %s", args[0])
	}
}

// ── node ────────────────────────────────────────────────────────────────

func cmdNode(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal("Usage: clad-cli node <info|call|watch-heads> [flags]")
	}

	switch args[0] {
	case "info":
		cmdNodeInfo(cfg)
	case "call":
		cmdNodeCall(cfg, args[1:])
	case "watch-heads":
		cmdNodeWatchHeads(cfg)
	default:
		fatal("Unknown node command: %s", args[0])
	}
}

func nodeClient(cfg *config.Config) *noderpc.Client {
	opts := noderpc.DefaultOptions()
	opts.CallTimeout = cfg.Node.CallTimeout
	opts.AutoReconnect = cfg.Node.AutoReconnect
	opts.MaxReconnectAttempts = cfg.Node.MaxReconnectAttempts
	opts.ReconnectDelay = cfg.Node.ReconnectDelay

	c := noderpc.New(opts)
	if err := c.Connect(cfg.Node.Endpoint); err != nil {
		fatal("connect: %v", err)
	}
	return c
}

func cmdNodeInfo(cfg *config.Config) {
	c := nodeClient(cfg)
	defer c.Close()
	ctx := context.Background()

	var name, version string
	if res, err := c.Call(ctx, "system_chain"); err == nil {
		json.Unmarshal(res, &name)
	}
	if res, err := c.Call(ctx, "system_version"); err == nil {
		json.Unmarshal(res, &version)
	}
	props, err := c.ChainProperties(ctx)
	if err != nil {
		fatal("system_properties: %v", err)
	}
	meta, err := c.FetchMetadata(ctx)
	if err != nil {
		fatal("state_getMetadata: %v", err)
	}

	fmt.Printf("Endpoint:   %s\n", cfg.Node.Endpoint)
	fmt.Printf("Chain:      %s\n", name)
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Properties: %s\n", props)
	fmt.Printf("Metadata:   %d bytes (hex)\n", len(meta))
}

func cmdNodeCall(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal("Usage: clad-cli node call <method> [json-param ...]")
	}

	params := make([]interface{}, 0, len(args)-1)
	for _, raw := range args[1:] {
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			// Bare words are a convenience for string params.
			v = raw
		}
		params = append(params, v)
	}

	c := nodeClient(cfg)
	defer c.Close()

	res, err := c.Call(context.Background(), args[0], params...)
	if err != nil {
		fatal("%s: %v", args[0], err)
	}

	var pretty interface{}
	if err := json.Unmarshal(res, &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Println(string(res))
}

func cmdNodeWatchHeads(cfg *config.Config) {
	c := nodeClient(cfg)
	defer c.Close()

	sub, err := c.Subscribe(context.Background(), "chain_subscribeNewHeads", "chain_unsubscribeNewHeads")
	if err != nil {
		fatal("subscribe: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	fmt.Fprintln(os.Stderr, "Watching new heads (Ctrl-C to stop)...")
	for {
		select {
		case raw, ok := <-sub.Updates():
			if !ok {
				fmt.Fprintln(os.Stderr, "subscription ended")
				return
			}
			var head struct {
				Number     string `json:"number"`
				ParentHash string `json:"parentHash"`
			}
			if err := json.Unmarshal(raw, &head); err != nil {
				fmt.Println(string(raw))
				continue
			}
			fmt.Printf("head %s  parent %s\n", head.Number, head.ParentHash)
		case <-sigc:
			sub.Unsubscribe(context.Background())
			return
		}
	}
}

// ── helpers ─────────────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

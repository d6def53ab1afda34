// Package main provides a small CLI over the wallet session: connect,
// disconnect, session, balance. It shares the session file with the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/solana"
	"solana-marketplace/internal/wallet"
)

func main() {
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	keypairPath := flag.String("keypair", os.Getenv("WALLET_KEYPAIR"), "Path to a JSON keypair file")
	sessionFile := flag.String("session-file", envOr("SESSION_FILE", "wallet-session.json"), "Path to the persisted wallet session")
	provider := flag.String("provider", "", "Preferred provider kind (phantom, solflare, slope)")
	timeout := flag.Duration("timeout", 30*time.Second, "Command timeout")

	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: walletctl [flags] connect|disconnect|session|balance [address]")
		os.Exit(2)
	}
	command := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sessions, err := wallet.NewFileSessionStore(*sessionFile)
	if err != nil {
		logger.Error("open session store", "err", err)
		os.Exit(1)
	}

	providers := map[domain.ProviderKind]wallet.Provider{}
	if *keypairPath != "" {
		p, err := wallet.LoadKeypairProvider(*keypairPath, nil)
		if err != nil {
			logger.Error("load keypair", "err", err)
			os.Exit(1)
		}
		providers[domain.ProviderPhantom] = p
	}

	var rpc solana.RPCClient
	if *rpcEndpoint != "" {
		rpc = solana.NewHTTPClient(*rpcEndpoint)
	}
	manager := wallet.NewManager(wallet.NewRegistry(providers), sessions, rpc, logger)

	switch command {
	case "connect":
		address, err := manager.Connect(ctx, domain.ProviderKind(*provider))
		if err != nil {
			logger.Error("connect failed", "err", err)
			os.Exit(1)
		}
		fmt.Println(address)

	case "disconnect":
		if err := manager.Disconnect(ctx); err != nil {
			logger.Error("disconnect failed", "err", err)
			os.Exit(1)
		}

	case "session":
		session, err := manager.CurrentSession()
		if err != nil {
			fmt.Fprintln(os.Stderr, "no active session")
			os.Exit(1)
		}
		fmt.Printf("%s (%s, connected %s)\n", session.Address, session.ProviderKind, session.ConnectedAt.Format(time.RFC3339))

	case "balance":
		if rpc == nil {
			logger.Error("--rpc-endpoint is required for balance")
			os.Exit(1)
		}
		address := flag.Arg(1)
		if address == "" {
			current, ok := manager.CurrentAddress()
			if !ok {
				fmt.Fprintln(os.Stderr, "no address given and no active session")
				os.Exit(1)
			}
			address = current
		}
		balance, err := manager.Balance(ctx, address)
		if err != nil {
			logger.Error("balance query failed", "err", err)
			os.Exit(1)
		}
		fmt.Printf("%s SOL\n", balance.String())

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		os.Exit(2)
	}
}

// envOr returns the env value or a fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

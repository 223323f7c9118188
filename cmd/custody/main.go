// Command custody is the operator side of custodial wallets: it creates the
// age keypair the server encrypts wallet keys to, and recovers a user's
// wallet key with the matching identity.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"filippo.io/age"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/gatepass/ticket-gate/internal/config"
	"github.com/gatepass/ticket-gate/internal/database"
	"github.com/gatepass/ticket-gate/internal/repository"
	"github.com/gatepass/ticket-gate/internal/wallet"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		printUsage()
		return errors.New("subcommand required")
	}
	switch args[0] {
	case "keygen":
		return runKeygen(os.Stdout, os.Stderr)
	case "export":
		return runExport(args[1:])
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %q", args[0])
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: custody <subcommand> [flags]

Subcommands:
  keygen      Generate the custody age keypair
  export      Decrypt one user's wallet key

Run 'custody export --help' for flags.
`)
}

// runKeygen prints the recipient (CUSTODY_AGE_RECIPIENT) to stdout and the
// identity to stderr.
func runKeygen(stdout, stderr io.Writer) error {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating identity: %w", err)
	}
	fmt.Fprintf(stderr, "# identity, store offline:\n%s\n", id.String())
	fmt.Fprintf(stdout, "%s\n", id.Recipient().String())
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	userID := fs.Uint64("user", 0, "user id whose wallet key to export")
	identityPath := fs.String("identity", "", "path to the age identity file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == 0 || *identityPath == "" {
		return errors.New("--user and --identity are required")
	}

	f, err := os.Open(*identityPath)
	if err != nil {
		return err
	}
	ids, err := age.ParseIdentities(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("parsing identity file: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return exportKey(ctx, repository.NewUserRepo(db), *userID, ids, os.Stdout)
}

// exportKey writes "<address> <hex key>" for the user.  Each identity is
// tried in turn; the first one that opens the key wins.
func exportKey(ctx context.Context, store wallet.AccountStore, userID uint64, ids []age.Identity, w io.Writer) error {
	if len(ids) == 0 {
		return errors.New("no identities")
	}
	var lastErr error
	for _, id := range ids {
		key, err := wallet.SignerFor(ctx, store, userID, id)
		if err != nil {
			if errors.Is(err, wallet.ErrNoWallet) || errors.Is(err, repository.ErrNotFound) {
				return err
			}
			lastErr = err
			continue
		}
		_, err = fmt.Fprintf(w, "%s %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex(), hex.EncodeToString(crypto.FromECDSA(key)))
		return err
	}
	return lastErr
}

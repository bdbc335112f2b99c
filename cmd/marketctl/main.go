// Command marketctl talks to a running marketd.
//
//	marketctl [flags] <command> [args]
//
// Commands:
//
//	list                              active listings
//	get     <contract> <id>           one listing
//	create  <contract> <id> <price>   list an asset
//	remove  <contract> <id>           withdraw a listing
//	buy     <contract> <id> <payment> buy a listing
//	stats                             registry and pipeline counters
//	mint    <contract> <id> <to>      sandbox: mint an asset
//	approve <contract> <id>           sandbox: approve the marketplace
//	send    <contract> <id> <to>      sandbox: transfer an asset
//	owner   <contract> <id>           sandbox: current owner
//	deposit <address> <amount>        sandbox: fund an account
//	balance <address>                 sandbox: account balance
//	version                           client build
//
// Amounts are whole units unless -wei is set.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/nft-market/internal/api"
	"github.com/rickgao/nft-market/internal/auth"
	"github.com/rickgao/nft-market/internal/model"
	"github.com/rickgao/nft-market/internal/version"
)

var errUsage = errors.New("usage")

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "marketctl:", err)
		}
		os.Exit(1)
	}
}

type options struct {
	url     string
	address string
	keyPath string
	timeout time.Duration
	wei     bool
	verbose bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("marketctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.url, "url", envOr("MARKET_URL", "http://localhost:8080"), "marketd base URL")
	fs.StringVar(&opts.address, "address", os.Getenv("MARKET_ADDRESS"), "caller address")
	fs.StringVar(&opts.keyPath, "key", os.Getenv("MARKET_PRIVATE_KEY_PATH"), "PEM private key; signs requests when set")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-request timeout")
	fs.BoolVar(&opts.wei, "wei", false, "amounts are in wei rather than whole units")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	client, err := newClient(opts, stderr)
	if err != nil {
		return err
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	c := &cli{client: client, out: stdout, wei: opts.wei}
	return c.dispatch(ctx, cmd, rest)
}

func newClient(opts options, stderr io.Writer) (*api.Client, error) {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	clientOpts := []api.ClientOption{
		api.WithTimeout(opts.timeout),
		api.WithLogger(logger),
	}
	switch {
	case opts.keyPath != "":
		creds, err := auth.LoadCredentials(opts.address, opts.keyPath)
		if err != nil {
			return nil, fmt.Errorf("load credentials: %w", err)
		}
		clientOpts = append(clientOpts, api.WithSigner(creds))
	case opts.address != "":
		addr, err := model.ParseAddress(opts.address)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, api.WithCaller(addr))
	}
	return api.NewClient(opts.url, clientOpts...), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type cli struct {
	client *api.Client
	out    io.Writer
	wei    bool
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "list":
		return c.print(c.client.Listings(ctx))

	case "get":
		contract, id, err := assetArgs(cmd, args, 2)
		if err != nil {
			return err
		}
		return c.print(c.client.Listing(ctx, contract, id))

	case "create":
		contract, id, err := assetArgs(cmd, args, 3)
		if err != nil {
			return err
		}
		price, err := c.amount(args[2])
		if err != nil {
			return err
		}
		return c.print(c.client.CreateListing(ctx, contract, id, price))

	case "remove":
		contract, id, err := assetArgs(cmd, args, 2)
		if err != nil {
			return err
		}
		if err := c.client.RemoveListing(ctx, contract, id); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "removed %s/%s\n", contract, id)
		return nil

	case "buy":
		contract, id, err := assetArgs(cmd, args, 3)
		if err != nil {
			return err
		}
		payment, err := c.amount(args[2])
		if err != nil {
			return err
		}
		return c.print(c.client.BuyListing(ctx, contract, id, payment))

	case "stats":
		return c.print(c.client.Stats(ctx))

	case "mint":
		contract, id, err := assetArgs(cmd, args, 3)
		if err != nil {
			return err
		}
		to, err := model.ParseAddress(args[2])
		if err != nil {
			return err
		}
		if err := c.client.Mint(ctx, contract, id, to); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "minted %s/%s to %s\n", contract, id, to)
		return nil

	case "approve":
		contract, id, err := assetArgs(cmd, args, 2)
		if err != nil {
			return err
		}
		if err := c.client.Approve(ctx, contract, id); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "approved %s/%s\n", contract, id)
		return nil

	case "send":
		contract, id, err := assetArgs(cmd, args, 3)
		if err != nil {
			return err
		}
		to, err := model.ParseAddress(args[2])
		if err != nil {
			return err
		}
		if err := c.client.Transfer(ctx, contract, id, to); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "sent %s/%s to %s\n", contract, id, to)
		return nil

	case "owner":
		contract, id, err := assetArgs(cmd, args, 2)
		if err != nil {
			return err
		}
		owner, err := c.client.OwnerOf(ctx, contract, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, owner)
		return nil

	case "deposit":
		if len(args) != 2 {
			return fmt.Errorf("deposit: expected <address> <amount>")
		}
		addr, err := model.ParseAddress(args[0])
		if err != nil {
			return err
		}
		amount, err := c.amount(args[1])
		if err != nil {
			return err
		}
		return c.print(c.client.Deposit(ctx, addr, amount))

	case "balance":
		if len(args) != 1 {
			return fmt.Errorf("balance: expected <address>")
		}
		addr, err := model.ParseAddress(args[0])
		if err != nil {
			return err
		}
		return c.print(c.client.BalanceOf(ctx, addr))

	case "version":
		fmt.Fprintln(c.out, version.String())
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// amount parses a CLI amount into wei.
func (c *cli) amount(s string) (decimal.Decimal, error) {
	if c.wei {
		return model.ParseWei(s)
	}
	return model.ParseWhole(s)
}

// print writes v as indented JSON, or returns err.
func (c *cli) print(v any, err error) error {
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func assetArgs(cmd string, args []string, n int) (model.Address, string, error) {
	if len(args) != n {
		return "", "", fmt.Errorf("%s: expected %d arguments, got %d", cmd, n, len(args))
	}
	contract, err := model.ParseAddress(args[0])
	if err != nil {
		return "", "", err
	}
	return contract, args[1], nil
}

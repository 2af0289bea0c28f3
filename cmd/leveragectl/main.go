package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/holiman/uint256"

	"leverageloop/config"
	"leverageloop/core/ledger"
	"leverageloop/core/types"
	"leverageloop/crypto"
	"leverageloop/native/devnet"
	"leverageloop/native/leverage"
	"leverageloop/storage"
)

const (
	initCommand           = "init"
	simulateCommand       = "simulate"
	possibleBorrowCommand = "possible-borrow"
	estimateBondCommand   = "estimate-bond"
	pauseCommand          = "pause"
	defaultConfig         = "./leverage.toml"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case initCommand:
		err = runInit(os.Args[2:], os.Stdout)
	case simulateCommand:
		err = runSimulate(os.Args[2:], os.Stdout)
	case possibleBorrowCommand:
		err = runPossibleBorrow(os.Args[2:], os.Stdout)
	case estimateBondCommand:
		err = runEstimateBond(os.Args[2:], os.Stdout)
	case pauseCommand:
		err = runPause(os.Args[2:], os.Stdout)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(initCommand, flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Output path for the deployment record")
	force := fs.Bool("force", false, "Overwrite an existing record")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*force {
		if _, err := os.Stat(*configPath); err == nil {
			return fmt.Errorf("record %s already exists (use --force to overwrite)", *configPath)
		} else if !os.IsNotExist(err) {
			return err
		}
	}
	cfg := config.Default()
	if err := config.Save(*configPath, cfg); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	fmt.Fprintf(out, "Wrote deployment record to %s\n", *configPath)
	fmt.Fprintf(out, "Leverage controller: %s\n", cfg.Contracts.Leverage)
	return nil
}

// devnetFlags are shared by every command that needs a running devnet.
type devnetFlags struct {
	configPath string
	memory     bool
	verbose    bool
}

func (f *devnetFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", defaultConfig, "Path to the deployment record")
	fs.BoolVar(&f.memory, "memory", false, "Run against a throwaway in-memory ledger instead of the record's DataDir")
	fs.BoolVar(&f.verbose, "verbose", false, "Log ledger activity to stderr")
}

func (f *devnetFlags) open(ctx context.Context) (*devnet.Devnet, func(), error) {
	record, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load record: %w", err)
	}
	var db storage.Database
	if f.memory {
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(record.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open ledger at %s: %w", record.DataDir, err)
		}
		db = ldb
	}
	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	d, err := devnet.Deploy(ctx, db, record, devnet.WithLogger(logger))
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return d, db.Close, nil
}

func runSimulate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(simulateCommand, flag.ContinueOnError)
	var dn devnetFlags
	dn.register(fs)
	amountStr := fs.String("amount", "1000000", "Amount of uluna to deposit")
	seed := fs.String("sender", "depositor", "Seed the depositor account is derived from")
	asJSON := fs.Bool("json", false, "Print the cycle result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amount, err := parseAmount(*amountStr)
	if err != nil {
		return err
	}

	ctx := context.Background()
	d, closeDB, err := dn.open(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	sender := crypto.AccountAddress(crypto.AccountPrefix, *seed)
	if err := d.Fund(sender, types.NewCoin(leverage.AcceptedDenom, amount)); err != nil {
		return fmt.Errorf("fund %s: %w", sender, err)
	}
	result, err := d.Cycle(ctx, sender, amount)
	if err != nil {
		if result != nil && result.Receipt != nil {
			printTrace(out, result.Receipt)
		}
		return fmt.Errorf("deposit reverted: %w", err)
	}
	if *asJSON {
		return writeJSON(out, result)
	}
	printTrace(out, result.Receipt)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Sender:          %s\n", sender)
	fmt.Fprintf(out, "Height:          %d\n", result.Receipt.Height)
	fmt.Fprintf(out, "Steps:           %s\n", strings.Join(result.Steps, " -> "))
	fmt.Fprintf(out, "Loops:           %d (redeposits %d)\n", result.Loops, result.Redeposits)
	fmt.Fprintf(out, "Final phase:     %s\n", result.PhaseName)
	if result.StopReason != "" {
		fmt.Fprintf(out, "Stop reason:     %s\n", result.StopReason)
	}
	fmt.Fprintf(out, "Collateral:      %s\n", dec(result.Position.Collateral))
	fmt.Fprintf(out, "Loan:            %s\n", dec(result.Position.Loan))
	fmt.Fprintf(out, "Borrow limit:    %s\n", dec(result.Position.BorrowLimit))
	fmt.Fprintf(out, "Possible borrow: %s\n", dec(result.Position.PossibleBorrow))
	fmt.Fprintf(out, "Native balance:  %s\n", dec(result.Position.NativeBalance))
	return nil
}

func runPossibleBorrow(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(possibleBorrowCommand, flag.ContinueOnError)
	var dn devnetFlags
	dn.register(fs)
	address := fs.String("address", "", "Account to query (defaults to the controller)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx := context.Background()
	d, closeDB, err := dn.open(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	target := d.Leverage
	if strings.TrimSpace(*address) != "" {
		if target, err = crypto.DecodeAddress(*address); err != nil {
			return fmt.Errorf("invalid address: %w", err)
		}
	}
	var res leverage.PossibleBorrowResponse
	if err := d.QueryLeverage(ctx, leverage.QueryMsg{PossibleBorrow: &leverage.PossibleBorrowQuery{Target: target}}, &res); err != nil {
		return err
	}
	return writeJSON(out, res)
}

func runEstimateBond(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(estimateBondCommand, flag.ContinueOnError)
	var dn devnetFlags
	dn.register(fs)
	amountStr := fs.String("amount", "", "Amount of uluna to bond")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amount, err := parseAmount(*amountStr)
	if err != nil {
		return err
	}
	ctx := context.Background()
	d, closeDB, err := dn.open(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	var res leverage.EstimateBondResponse
	if err := d.QueryLeverage(ctx, leverage.QueryMsg{EstimateBond: &leverage.EstimateBondQuery{Amount: amount}}, &res); err != nil {
		return err
	}
	return writeJSON(out, res)
}

func runPause(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(pauseCommand, flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the deployment record")
	resume := fs.Bool("resume", false, "Clear the pause instead of setting it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}
	cfg.Pauses.Leverage = !*resume
	if err := config.Save(*configPath, cfg); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	state := "paused"
	if *resume {
		state = "resumed"
	}
	fmt.Fprintf(out, "Leverage module %s in %s\n", state, *configPath)
	return nil
}

func printTrace(out io.Writer, receipt *ledger.Receipt) {
	w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "#\tDEPTH\tCONTRACT\tACTION\tFUNDS\tTAX")
	for _, entry := range receipt.Trace {
		label := entry.Label
		if label == "" {
			label = entry.Target.String()
		}
		fmt.Fprintf(w, "%d\t%d\t%s%s\t%s\t%s\t%s\n",
			entry.Index, entry.Depth, strings.Repeat("  ", entry.Depth), label, entry.Action,
			coinsString(entry.Funds), coinsString(entry.Taxes))
	}
	_ = w.Flush()
	if receipt.Reverted {
		fmt.Fprintf(out, "Reverted: %s\n", receipt.Error)
	}
}

func coinsString(coins types.Coins) string {
	if len(coins) == 0 {
		return "-"
	}
	parts := make([]string, len(coins))
	for i, c := range coins {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

func parseAmount(raw string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func dec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: leveragectl <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  %s            Write a default deployment record\n", initCommand)
	fmt.Fprintf(os.Stderr, "  %s        Deposit --amount uluna and print the call trace\n", simulateCommand)
	fmt.Fprintf(os.Stderr, "  %s Query remaining borrow capacity\n", possibleBorrowCommand)
	fmt.Fprintf(os.Stderr, "  %s   Query derivative units minted for --amount\n", estimateBondCommand)
	fmt.Fprintf(os.Stderr, "  %s           Pause (or --resume) the leverage module in the record\n", pauseCommand)
}

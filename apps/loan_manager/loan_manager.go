package main

import (
	ctx "context"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ipcollateral/lending-services/services"
	"github.com/ipcollateral/lending-services/util/cli"
	"github.com/ipcollateral/lending-services/workflow"
)

type options struct {
	action   string
	wallet   string
	asset    string
	amount   string
	duration time.Duration
	loanID   string
	verbose  bool
	help     bool
}

func main() {
	opts := parseOpts()
	if opts.help || opts.action == "" {
		printHelp()
		os.Exit(0)
	}

	context := newContext(opts.verbose)
	defer context.Close()
	runCtx, stop := signal.NotifyContext(ctx.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := run(runCtx, context, opts)
	if err != nil {
		context.Logger.Errorf("loan_manager %s failed: %v", opts.action, err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

func run(runCtx ctx.Context, context *services.Context, opts options) (interface{}, error) {
	switch opts.action {
	case "create":
		amount, err := workflow.ParseEther(opts.amount)
		if err != nil {
			return nil, err
		}
		loanID, err := context.Loans.CreateLoan(runCtx, &workflow.LoanRequest{
			WalletAddress: opts.wallet,
			AssetAddress:  opts.asset,
			Amount:        amount,
			Duration:      big.NewInt(int64(opts.duration.Seconds())),
		})
		if err != nil {
			return nil, err
		}
		return map[string]string{"loan_id": loanID.String()}, nil
	case "repay":
		loanID, ok := new(big.Int).SetString(opts.loanID, 10)
		if !ok {
			return nil, fmt.Errorf("Invalid -loan-id '%s'", opts.loanID)
		}
		repaid, err := context.Loans.RepayLoan(runCtx, loanID)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"loan_id": loanID.String(),
			"repaid":  workflow.FormatEther(repaid),
		}, nil
	case "list":
		loans, err := context.Loans.ListLoans(runCtx, opts.wallet)
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		for _, loan := range loans {
			if loan.IsOverdue(now) {
				context.Logger.Warningf("Loan %s was due %s", loan.ID, loan.DueAt().Format(time.RFC3339))
			}
		}
		return loans, nil
	case "refresh":
		return context.Loans.RefreshAssets(runCtx, opts.wallet)
	case "assets":
		return context.RedisClient.AssetsGet(runCtx, opts.wallet)
	}
	return nil, fmt.Errorf("Unknown action '%s'", opts.action)
}

func parseOpts() options {
	opts := options{}
	flag.StringVar(&opts.action, "action", "", "One of create, repay, list, refresh, assets")
	flag.StringVar(&opts.wallet, "wallet", "", "Address of the borrower's wallet")
	flag.StringVar(&opts.asset, "asset", "", "Address of the collateral asset (create)")
	flag.StringVar(&opts.amount, "amount", "", "Loan amount in whole tokens, e.g. 250.5 (create)")
	flag.DurationVar(&opts.duration, "duration", 30*24*time.Hour, "Loan term (create)")
	flag.StringVar(&opts.loanID, "loan-id", "", "Id of the loan to repay (repay)")
	flag.BoolVar(&opts.verbose, "verbose", false, "Also print log messages to stderr")
	flag.BoolVar(&opts.help, "help", false, "Print help message")
	flag.Parse()
	return opts
}

func printHelp() {
	message := `
loan_manager creates and repays loans against verified IP collateral.

Actions:

    create  - Borrow -amount against -asset for -duration.
    repay   - Approve and repay everything owed on -loan-id.
    list    - Show the wallet's loans from the lending contract.
    refresh - Update the wallet's stored assets from the lending contract.
    assets  - Show the wallet's stored assets.

Amounts assume a loan token with 18 decimals.
`
	fmt.Println(message)
	flag.PrintDefaults()
	fmt.Println(cli.EnvMessage)
}

func newContext(verbose bool) *services.Context {
	if verbose {
		return services.NewConsoleContext()
	}
	return services.NewContext()
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"crowdfund-sol/internal/client"
	"crowdfund-sol/internal/config"
	"crowdfund-sol/internal/simulator"
	"crowdfund-sol/internal/state"
	"crowdfund-sol/internal/svc"
	"crowdfund-sol/internal/types"
	"crowdfund-sol/pkg/logger"
)

var configFile = flag.String("f", "etc/crowdfund.yaml", "the config file")

const usage = `usage: crowdfund [-f etc/crowdfund.yaml] <command> [args]

commands:
  simulate <scenario.yaml>                     run a scenario against a local bank
  inspect <address>                            fetch a campaign record over JSON-RPC
  space <name> <description> <image_link>      storage size and rent minimum for a record
`

func main() {
	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
			os.Exit(2)
		}
	}()

	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var c config.CrowdfundConfig
	if _, err := os.Stat(*configFile); err == nil {
		config.MustLoad(*configFile, &c)
	} else if err := config.LoadDefaults(&c); err != nil {
		logx.Must(err)
	}

	if err := logger.Init(c.LogConf.ToLogOption()); err != nil {
		logx.Must(err)
	}
	defer logger.Sync()

	var err error
	switch args[0] {
	case "simulate":
		err = runSimulate(c, args[1:])
	case "inspect":
		err = runInspect(c, args[1:])
	case "space":
		err = runSpace(c, args[1:])
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runSimulate(c config.CrowdfundConfig, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("simulate expects exactly one scenario file")
	}
	scenario, err := simulator.LoadScenario(args[0])
	if err != nil {
		return err
	}

	serviceContext, err := svc.NewCrowdfundServiceContext(c)
	if err != nil {
		return err
	}
	defer serviceContext.Close()

	runner := simulator.NewRunner(serviceContext.Bank, serviceContext.ProgramID, serviceContext.Events)
	report, err := runner.Run(context.Background(), scenario)
	if err != nil {
		return err
	}

	printReport(report)
	if !report.Passed() {
		return fmt.Errorf("scenario %q has unexpected outcomes", report.Scenario)
	}
	return nil
}

func printReport(report *simulator.Report) {
	fmt.Printf("scenario: %s\n\n", report.Scenario)
	for _, st := range report.Steps {
		mark := "ok  "
		if !st.Passed {
			mark = "FAIL"
		}
		fmt.Printf("[%s] #%d %-16s %s\n", mark, st.Index, st.Action, st.Name)
		fmt.Printf("       slot=%d fee=%d sig=%s\n", st.Slot, st.Fee, st.Signature)
		if st.Err != "" || st.ExpectError != "" {
			fmt.Printf("       err=%q expect=%q\n", st.Err, st.ExpectError)
		}
		for _, ev := range st.Events {
			fmt.Printf("       event %s campaign=%s delta=%d total=%d lamports=%d\n",
				ev.Kind, ev.Campaign, ev.Delta, ev.AmountDonated, ev.Lamports)
		}
	}

	fmt.Println("\naccounts:")
	for _, name := range report.Names() {
		fmt.Printf("  %-12s %s %d\n", name, report.Addresses[name], report.Balances[name])
		if camp, ok := report.Campaigns[name]; ok {
			fmt.Printf("  %-12s admin=%s name=%q donated=%d\n", "", camp.Admin, camp.Name, camp.AmountDonated)
		}
	}
}

func runInspect(c config.CrowdfundConfig, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("inspect expects exactly one address")
	}
	if c.RpcConf.Endpoint == "" {
		return fmt.Errorf("rpc.endpoint is not configured (or set CROWDFUND_RPC_ENDPOINT)")
	}
	addr, err := types.TryPubkeyFromBase58(args[0])
	if err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	programID, err := c.ProgramConf.ProgramPubkey()
	if err != nil {
		return err
	}

	timeout := time.Duration(c.RpcConf.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	view, err := client.NewInspectorFromEndpoint(c.RpcConf.Endpoint, programID).FetchCampaign(ctx, addr)
	if err != nil {
		return err
	}
	fmt.Printf("address:        %s\n", view.Address)
	fmt.Printf("admin:          %s\n", view.Campaign.Admin)
	fmt.Printf("name:           %s\n", view.Campaign.Name)
	fmt.Printf("description:    %s\n", view.Campaign.Description)
	fmt.Printf("image_link:     %s\n", view.Campaign.ImageLink)
	fmt.Printf("amount_donated: %d\n", view.Campaign.AmountDonated)
	fmt.Printf("lamports:       %d\n", view.Lamports)
	fmt.Printf("rent_minimum:   %d (data_len=%d)\n", view.RentMinimum, view.DataLen)
	fmt.Printf("withdrawable:   %d\n", view.Withdrawable)
	return nil
}

func runSpace(c config.CrowdfundConfig, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("space expects <name> <description> <image_link>")
	}
	record := state.Campaign{Name: args[0], Description: args[1], ImageLink: args[2]}
	space := client.StorageSpace(&record)
	fmt.Printf("space:        %d\n", space)
	fmt.Printf("rent_minimum: %d\n", c.ProgramConf.Rent.ToRent().MinimumBalance(space))
	return nil
}

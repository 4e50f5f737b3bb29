// Command jurycli is the organizer and reviewer client of a jury ledger.
//
//	jurycli [global flags] <task> [task flags] [args]
//
// Run jurycli help for the task list.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"

	flag "github.com/spf13/pflag"
	"github.com/vocdoni/confidential-jury/api/client"
	"github.com/vocdoni/confidential-jury/config"
	"github.com/vocdoni/confidential-jury/crypto/ethereum"
	"github.com/vocdoni/confidential-jury/log"
)

// env is what every task gets.
type env struct {
	cfg  *config.Client
	cli  *client.HTTPclient
	keys *ethereum.SignKeys
}

type task struct {
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var tasks = map[string]task{
	"info":               {"ledger and backend summary", runInfo},
	"add-reviewer":       {"<address>... register reviewers (owner)", runAddReviewer},
	"remove-reviewer":    {"<address> deactivate a reviewer (owner)", runRemoveReviewer},
	"list-reviewers":     {"list the active reviewers", runListReviewers},
	"add-work":           {"--title T [--director D --duration S --metadata M --submission-hash H | --file works.json] register works (owner)", runAddWork},
	"list-works":         {"list the registered works", runListWorks},
	"score":              {"<workId> <narrative> <cinematography> <sound> <editing> [--comment C] submit an encrypted score (reviewer)", runScore},
	"aggregate":          {"<workId>... compute the encrypted sums (owner)", runAggregate},
	"authorize":          {"<workId>... [--to address] allow the disclosure of the sums (owner)", runAuthorize},
	"threshold":          {"<value> set the encrypted qualification threshold (owner)", runThreshold},
	"qualify":            {"<workId> check the dimensions against the threshold (owner)", runQualify},
	"disclose":           {"<workId> [--yes] decrypt the sums and publish the averages (owner)", runDisclose},
	"publish":            {"<workId> <narrative> <cinematography> <sound> <editing> publish averages by hand (owner)", runPublish},
	"results":            {"list the published results", runResults},
	"transfer-ownership": {"<address> hand the ledger to a new owner (owner)", runTransferOwnership},
	"events":             {"[--from N --limit M] list the ledger events", runEvents},
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: jurycli [flags] <task> [task flags] [args]\n\nflags:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\ntasks:\n")
	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-19s %s\n", name, tasks[name].usage)
	}
}

func main() {
	cfg := config.DefaultClient()
	cfg.BindFlags(flag.CommandLine)
	flag.CommandLine.SetInterspersed(false)
	flag.Usage = usage
	flag.Parse()
	if err := config.ApplyEnv(flag.CommandLine, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log.Init(cfg.LogLevel, "stderr", nil)
	if flag.NArg() == 0 || flag.Arg(0) == "help" {
		usage()
		os.Exit(2)
	}
	t, ok := tasks[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown task %q\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	keys, err := cfg.Keys()
	if err != nil {
		log.Fatal(err)
	}
	cli, err := client.New(cfg.API, keys)
	if err != nil {
		log.Fatal(err)
	}
	cli.SetTimeout(cfg.Timeout)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := t.run(ctx, &env{cfg: cfg, cli: cli, keys: keys}, flag.Args()[1:]); err != nil {
		if errors.Is(err, client.ErrNoSigner) {
			err = fmt.Errorf("%w: set --key or %s", err, config.EnvName("key"))
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", flag.Arg(0), err)
		cancel()
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"bookingsync/pkg/client"
	"bookingsync/pkg/model"

	"github.com/spf13/pflag"
)

const usage = `Usage: syncctl [global flags] <command> [flags] [args]

Commands:
  enqueue   queue a booking request (flags or --file request.yaml)
  list      list queued intents
  get       show one intent by id
  remove    remove a pending or failed intent by id
  count     number of intents still pending or syncing
  sync      run a sync pass now
  online    report the network as available
  offline   report the network as unavailable
  auto      let health checks decide connectivity again

Global flags:
`

type globalOptions struct {
	addr    string
	output  string
	timeout time.Duration
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var opts globalOptions
	global := pflag.NewFlagSet("syncctl", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.StringVar(&opts.addr, "addr", envOr("SYNCD_ADDR", "http://localhost:8080"), "sync daemon base URL")
	global.StringVarP(&opts.output, "output", "o", "table", "output format: table, json or yaml")
	global.DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	global.SetInterspersed(false)
	global.Usage = func() {
		fmt.Fprint(stderr, usage)
		global.PrintDefaults()
	}

	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return fmt.Errorf("no command given")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	c := client.NewControlClient(opts.addr)
	out := newPrinter(stdout, opts.output)
	command, rest := global.Arg(0), global.Args()[1:]

	switch command {
	case "enqueue":
		return runEnqueue(ctx, c, out, rest, stderr)
	case "list":
		return runList(ctx, c, out, rest, stderr)
	case "get":
		id, err := singleArg(command, rest)
		if err != nil {
			return err
		}
		intent, err := c.Get(ctx, id)
		if err != nil {
			return err
		}
		return out.intents([]model.BookingIntent{*intent})
	case "remove":
		id, err := singleArg(command, rest)
		if err != nil {
			return err
		}
		if err := c.Remove(ctx, id); err != nil {
			return err
		}
		return out.message("removed " + id)
	case "count":
		n, err := c.CountPending(ctx)
		if err != nil {
			return err
		}
		return out.value(map[string]int{"pending": n}, strconv.Itoa(n))
	case "sync":
		report, err := c.TriggerSync(ctx)
		if err != nil {
			return err
		}
		return out.syncReport(report)
	case "online", "offline":
		if err := c.SetConnectivity(ctx, command == "online"); err != nil {
			return err
		}
		return out.message("connectivity set " + command)
	case "auto":
		if err := c.ReleaseConnectivity(ctx); err != nil {
			return err
		}
		return out.message("connectivity follows health checks")
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runEnqueue(ctx context.Context, c *client.ControlClient, out *printer, args []string, stderr io.Writer) error {
	flags := pflag.NewFlagSet("enqueue", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	var (
		file           = flags.StringP("file", "f", "", "read the request from a YAML or JSON file")
		idempotencyKey = flags.String("idempotency-key", "", "Idempotency-Key sent with the request")
		checkIn        = flags.String("check-in", "", "check-in time (RFC 3339 or YYYY-MM-DD)")
		checkOut       = flags.String("check-out", "", "check-out time (RFC 3339 or YYYY-MM-DD)")
		req            model.BookingRequest
	)
	flags.StringVar(&req.ResourceID, "resource", "", "resource id")
	flags.StringVar(&req.UserID, "user", "", "user id")
	flags.IntVar(&req.Guests, "guests", 1, "number of guests")
	flags.Float64Var(&req.TotalAmount, "amount", 0, "quoted total amount")
	flags.StringVar(&req.Currency, "currency", "USD", "ISO 4217 currency code")
	flags.StringVar(&req.Contact.Name, "name", "", "guest name")
	flags.StringVar(&req.Contact.Email, "email", "", "guest email")
	flags.StringVar(&req.Contact.Phone, "phone", "", "guest phone")
	flags.StringVar(&req.Contact.SpecialRequest, "note", "", "special request")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			return err
		}
		parsed, err := parseRequest(data)
		if err != nil {
			return fmt.Errorf("%s: %w", *file, err)
		}
		req = *parsed
	} else {
		var err error
		if req.CheckIn, err = parseTime(*checkIn); err != nil {
			return fmt.Errorf("--check-in: %w", err)
		}
		if req.CheckOut, err = parseTime(*checkOut); err != nil {
			return fmt.Errorf("--check-out: %w", err)
		}
	}

	intent, err := c.Enqueue(ctx, &req, *idempotencyKey)
	if err != nil {
		return err
	}
	return out.intents([]model.BookingIntent{*intent})
}

func runList(ctx context.Context, c *client.ControlClient, out *printer, args []string, stderr io.Writer) error {
	flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	status := flags.String("status", "", "only intents in this status")
	limit := flags.Int("limit", 50, "page size")
	offset := flags.Int64("offset", 0, "page offset")

	if err := flags.Parse(args); err != nil {
		return err
	}

	intents, err := c.List(ctx, *status, *limit, *offset)
	if err != nil {
		return err
	}
	return out.intents(intents)
}

func singleArg(command string, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s takes exactly one intent id", command)
	}
	return args[0], nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("value is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Package cli is a thin operator terminal for a dqueue.Engine: the same
// stats/list/purge/resurrect operations admin/http exposes over REST, reachable
// without standing up the HTTP surface, for one-off operational commands against a
// queue from a shell or a deploy script.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/rise-and-shine/durablequeue/dqueue"
	"github.com/spf13/cast"
)

var (
	errUsage       = errors.New("cli: missing arguments")
	errUnknownVerb = errors.New("cli: unknown command")
)

var (
	headerColor = color.New(color.FgHiCyan, color.Bold)
	errColor    = color.New(color.FgHiRed, color.Bold)
	okColor     = color.New(color.FgHiGreen)
	dimColor    = color.New(color.FgHiBlack)
)

// Run dispatches args (typically os.Args[1:]) to one of the operator commands below
// and writes human-readable output to out. Returns a non-nil error for an unknown
// command, missing arguments, or a failed engine call; never panics on bad input.
func Run(ctx context.Context, engine dqueue.Engine, out io.Writer, args []string) error {
	if len(args) == 0 {
		printUsage(out)
		return errUsage
	}

	verb, rest := args[0], args[1:]
	switch verb {
	case "stats":
		return cmdStats(ctx, engine, out, rest)
	case "list":
		return cmdList(ctx, engine, out, rest, false)
	case "dead-letters":
		return cmdList(ctx, engine, out, rest, true)
	case "purge":
		return cmdPurge(ctx, engine, out, rest)
	case "resurrect":
		return cmdResurrect(ctx, engine, out, rest)
	case "get":
		return cmdGet(ctx, engine, out, rest, false)
	case "get-dead-letter":
		return cmdGet(ctx, engine, out, rest, true)
	case "ack":
		return cmdAck(ctx, engine, out, rest)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		errColor.Fprintf(out, "unknown command %q\n", verb) //nolint:errcheck
		printUsage(out)
		return fmt.Errorf("%w: %s", errUnknownVerb, verb)
	}
}

func printUsage(out io.Writer) {
	headerColor.Fprintln(out, "dqueue admin") //nolint:errcheck
	fmt.Fprintln(out, "  stats <queue>")
	fmt.Fprintln(out, "  list <queue> [limit] [offset]")
	fmt.Fprintln(out, "  dead-letters <queue> [limit] [offset]")
	fmt.Fprintln(out, "  get <id>")
	fmt.Fprintln(out, "  get-dead-letter <id>")
	fmt.Fprintln(out, "  ack <id>")
	fmt.Fprintln(out, "  resurrect <id> [delay, e.g. 10s]")
	fmt.Fprintln(out, "  purge <queue>")
}

func cmdStats(ctx context.Context, engine dqueue.Engine, out io.Writer, args []string) error {
	if len(args) < 1 {
		return errUsage
	}

	count, err := engine.QueuedCount(ctx, args[0])
	if err != nil {
		return printErr(out, err)
	}

	headerColor.Fprintf(out, "queue %s\n", args[0]) //nolint:errcheck
	fmt.Fprintf(out, "  queued: %s\n", okColor.Sprint(count))
	return nil
}

func cmdList(ctx context.Context, engine dqueue.Engine, out io.Writer, args []string, deadLetters bool) error {
	if len(args) < 1 {
		return errUsage
	}
	queue := args[0]
	limit := 20
	if v := argOrEmpty(args, 1); v != "" {
		limit = cast.ToInt(v)
	}
	offset := 0
	if v := argOrEmpty(args, 2); v != "" {
		offset = cast.ToInt(v)
	}

	var (
		msgs []dqueue.QueuedMessage
		err  error
	)
	if deadLetters {
		msgs, err = engine.ListDeadLetters(ctx, queue, dqueue.SortAsc, offset, limit)
	} else {
		msgs, err = engine.ListQueued(ctx, queue, dqueue.SortAsc, offset, limit)
	}
	if err != nil {
		return printErr(out, err)
	}

	printTable(out, msgs)
	return nil
}

func cmdGet(ctx context.Context, engine dqueue.Engine, out io.Writer, args []string, deadLetter bool) error {
	if len(args) < 1 {
		return errUsage
	}

	var (
		msg *dqueue.QueuedMessage
		err error
	)
	if deadLetter {
		msg, err = engine.GetDeadLetterMessage(ctx, args[0])
	} else {
		msg, err = engine.GetMessage(ctx, args[0])
	}
	if err != nil {
		return printErr(out, err)
	}

	printTable(out, []dqueue.QueuedMessage{*msg})
	return nil
}

func cmdAck(ctx context.Context, engine dqueue.Engine, out io.Writer, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	if err := engine.AcknowledgeAsHandled(ctx, args[0]); err != nil {
		return printErr(out, err)
	}
	okColor.Fprintf(out, "acked %s\n", args[0]) //nolint:errcheck
	return nil
}

func cmdResurrect(ctx context.Context, engine dqueue.Engine, out io.Writer, args []string) error {
	if len(args) < 1 {
		return errUsage
	}

	delay := time.Duration(0)
	if len(args) >= 2 {
		delay = cast.ToDuration(args[1])
	}

	msg, err := engine.ResurrectDeadLetter(ctx, args[0], delay)
	if err != nil {
		return printErr(out, err)
	}

	okColor.Fprintf(out, "resurrected %s, due at %s\n", msg.ID, msg.NextDeliveryAt.Format(time.RFC3339)) //nolint:errcheck
	return nil
}

func cmdPurge(ctx context.Context, engine dqueue.Engine, out io.Writer, args []string) error {
	if len(args) < 1 {
		return errUsage
	}

	n, err := engine.Purge(ctx, args[0])
	if err != nil {
		return printErr(out, err)
	}

	okColor.Fprintf(out, "purged %d message(s) from %s\n", n, args[0]) //nolint:errcheck
	return nil
}

func printErr(out io.Writer, err error) error {
	errColor.Fprintf(out, "error: %s\n", err) //nolint:errcheck
	return err
}

func printTable(out io.Writer, msgs []dqueue.QueuedMessage) {
	if len(msgs) == 0 {
		dimColor.Fprintln(out, "(no messages)") //nolint:errcheck
		return
	}

	headerColor.Fprintf(out, "%-36s  %-20s  %-10s  %-8s  %-8s  %s\n", //nolint:errcheck
		"id", "queue", "mode", "attempts", "dead", "next_delivery_at")

	for _, m := range msgs {
		deadMark := dimColor.Sprint("no")
		if m.IsDeadLetter {
			deadMark = errColor.Sprint("yes")
		}
		fmt.Fprintf(out, "%-36s  %-20s  %-10s  %-8d  %-8s  %s\n",
			m.ID, m.QueueName, m.DeliveryMode, m.DeliveryAttempts, deadMark,
			m.NextDeliveryAt.Format(time.RFC3339),
		)
	}
}

func argOrEmpty(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

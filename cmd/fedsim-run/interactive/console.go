// Package interactive provides the operator console of fedsim-run.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/simtime"
)

// Federation is the part of a root broker the console drives.
type Federation interface {
	Query(ctx context.Context, target, query string, mode option.SequencingMode) (string, error)
	SetTimeBarrier(t simtime.Time) error
	ClearTimeBarrier() error
	SendCommand(target, command string) error
}

// StatusFunc writes a status report of the running federation to w.
type StatusFunc func(w io.Writer)

// QueryTimeout bounds every console query.
const QueryTimeout = 5 * time.Second

// Console is the interactive command loop.
type Console struct {
	fed    Federation
	status StatusFunc
	rl     *readline.Instance
	out    io.Writer
}

// New creates a console reading from the terminal. Bind must be called
// before Run.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "fedsim> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl, out: rl.Stdout()}, nil
}

// Bind sets the federation the console drives and the status report.
func (c *Console) Bind(fed Federation, status StatusFunc) {
	c.fed = fed
	c.status = status
}

// newWithWriter creates a console without a terminal, writing to out.
func newWithWriter(fed Federation, status StatusFunc, out io.Writer) *Console {
	return &Console{fed: fed, status: status, out: out}
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Stderr returns a writer that properly coordinates with the readline input.
func (c *Console) Stderr() io.Writer {
	if c.rl == nil {
		return c.out
	}
	return c.rl.Stderr()
}

// Close stops a running command loop.
func (c *Console) Close() error {
	if c.rl == nil {
		return nil
	}
	return c.rl.Close()
}

// Run starts the interactive command loop. It returns when the input ends
// or the operator quits; quitting calls cancel.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return
		}

		if quit := c.Execute(ctx, line); quit {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one command line and reports whether the operator asked to
// quit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "query":
		c.cmdQuery(ctx, args)

	case "barrier":
		c.cmdBarrier(args)

	case "clear-barrier":
		c.report(c.fed.ClearTimeBarrier(), "Time barrier cleared")

	case "command", "cmd":
		c.cmdCommand(args)

	case "status":
		if c.status != nil {
			c.status(c.out)
		}

	case "quit", "exit", "q":
		return true

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Federation Commands:
  query <target> <query>      - Query a federate, core or broker (e.g. query root federates)
  barrier <time>              - Hold every federate at or below <time>
  clear-barrier               - Release the time barrier
  command <target> <command>  - Send a command to a federate (e.g. command load1 scale 1.5)
  status                      - Show federate states and times
  help                        - Show this help
  quit                        - Stop the federation and exit`)
}

func (c *Console) cmdQuery(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: query <target> <query>")
		return
	}
	qctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	result, err := c.fed.Query(qctx, args[0], strings.Join(args[1:], " "), option.SequencingFast)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, result)
}

func (c *Console) cmdBarrier(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: barrier <time>")
		return
	}
	t, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid time: %s\n", args[0])
		return
	}
	c.report(c.fed.SetTimeBarrier(simtime.Time(t)), fmt.Sprintf("Time barrier set at %g", t))
}

func (c *Console) cmdCommand(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: command <target> <command>")
		return
	}
	command := strings.Join(args[1:], " ")
	c.report(c.fed.SendCommand(args[0], command), fmt.Sprintf("Sent %q to %s", command, args[0]))
}

func (c *Console) report(err error, ok string) {
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, ok)
}

package confirm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// TerminalGate prompts for approval on an interactive terminal.
type TerminalGate struct {
	In  io.Reader
	Out io.Writer
}

var _ Gate = (*TerminalGate)(nil)

// Present prints the confirmation message and reads a y/N answer.
// Anything other than an explicit yes is a rejection.
func (g *TerminalGate) Present(ctx context.Context, req Request) (Decision, error) {
	fmt.Fprintf(g.Out, "\n%s\n", req.Message)
	for k, v := range req.Parameters {
		fmt.Fprintf(g.Out, "  %s: %v\n", k, v)
	}
	fmt.Fprint(g.Out, "Proceed? [y/N]: ")

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(g.In).ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return Rejected, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.line == "" {
			return Rejected, a.err
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return Accepted, nil
		default:
			return Rejected, nil
		}
	}
}

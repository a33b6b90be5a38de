package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"food-router/internal/domain"
)

const replHelp = `Ask about a restaurant's menu, prep time or delivery ETA, e.g.
  show me the menu at Joe's Pizza
  how long to deliver from Spice Hub?
Commands: /history  /help  /quit`

// RunREPL reads one utterance per line from in and writes each answer to
// out, all in a single session. It returns when in is exhausted, the user
// types /quit, or ctx is done.
func RunREPL(ctx context.Context, agent Agent, sessionID string, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, replHelp)
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(out, replHelp)
			continue
		case "/history":
			printHistory(agent, sessionID, out)
			continue
		}

		ans, err := agent.Handle(ctx, domain.Utterance{SessionID: sessionID, Text: line, ReceivedAt: time.Now()})
		if err != nil {
			fmt.Fprintf(out, "error: %s\n", publicError(err))
			continue
		}
		fmt.Fprintln(out, ans.Text)
	}
}

func printHistory(agent Agent, sessionID string, out io.Writer) {
	turns, err := agent.History(sessionID)
	if err != nil || len(turns) == 0 {
		fmt.Fprintln(out, "(no history yet)")
		return
	}
	for _, t := range turns {
		fmt.Fprintf(out, "[%s] you: %s\n", t.At.Format(time.Kitchen), t.Utterance.Text)
		marker := ""
		if t.Degraded {
			marker = " (degraded)"
		}
		fmt.Fprintf(out, "  router%s: %s\n", marker, firstLine(t.Answer))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

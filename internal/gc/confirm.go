package gc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Answer is a confirmation prompt response.
type Answer int

const (
	// AnswerNo declines this deletion and aborts the run.
	AnswerNo Answer = iota
	// AnswerYes approves this deletion.
	AnswerYes
	// AnswerDeleteAll approves this and every later deletion in the run.
	AnswerDeleteAll
)

// Confirmer asks the operator to approve a pending deletion.
type Confirmer interface {
	Ask(ctx context.Context, prompt string) (Answer, error)
}

// ConsoleConfirmer prompts on the terminal. Anything other than an
// affirmative answer counts as no.
type ConsoleConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func (c *ConsoleConfirmer) Ask(ctx context.Context, prompt string) (Answer, error) {
	fmt.Fprintf(c.Out, "%s [yes/no/delete-all]: ", prompt)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		r := bufio.NewReader(c.In)
		line, err := r.ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return AnswerNo, ctx.Err()
	case res := <-ch:
		if res.err != nil && res.line == "" {
			return AnswerNo, res.err
		}
		switch strings.ToLower(strings.TrimSpace(res.line)) {
		case "y", "yes":
			return AnswerYes, nil
		case "delete-all", "all":
			return AnswerDeleteAll, nil
		default:
			return AnswerNo, nil
		}
	}
}

// AutoConfirmer approves everything, for --no-confirm runs and tests.
type AutoConfirmer struct{}

func (AutoConfirmer) Ask(context.Context, string) (Answer, error) {
	return AnswerYes, nil
}

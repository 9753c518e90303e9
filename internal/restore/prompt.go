package restore

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/WaffleThief123/container-backup/internal/config"
)

// TerminalPrompt asks accept/skip/edit questions on an interactive
// terminal. It satisfies DecisionProvider.
type TerminalPrompt struct {
	In  io.Reader
	Out io.Writer

	scanner *bufio.Scanner
}

func NewTerminalPrompt(in io.Reader, out io.Writer) *TerminalPrompt {
	return &TerminalPrompt{In: in, Out: out, scanner: bufio.NewScanner(in)}
}

func (p *TerminalPrompt) Decide(c Candidate) (Decision, error) {
	fmt.Fprintf(p.Out, "\n%s\n  container: %s\n  database:  %s\n  type:      %s\n", c.File, c.Container, c.Database, c.Type)
	for {
		fmt.Fprint(p.Out, "[a]ccept / [s]kip / [e]dit? ")
		line, err := p.readLine()
		if err != nil {
			return Decision{}, err
		}
		switch strings.ToLower(line) {
		case "a", "accept":
			return Decision{Action: Accept}, nil
		case "s", "skip":
			return Decision{Action: Skip}, nil
		case "e", "edit":
			edited, err := p.edit(c)
			if err != nil {
				return Decision{}, err
			}
			return Decision{Action: Edit, Edited: edited}, nil
		}
	}
}

// edit asks for each field in turn; an empty answer keeps the current value.
func (p *TerminalPrompt) edit(c Candidate) (Candidate, error) {
	fields := []struct {
		label string
		value *string
	}{
		{"container", &c.Container},
		{"database", &c.Database},
	}
	for _, f := range fields {
		fmt.Fprintf(p.Out, "%s [%s]: ", f.label, *f.value)
		line, err := p.readLine()
		if err != nil {
			return c, err
		}
		if line != "" {
			*f.value = line
		}
	}

	fmt.Fprintf(p.Out, "type [%s]: ", c.Type)
	line, err := p.readLine()
	if err != nil {
		return c, err
	}
	if line != "" {
		c.Type = config.DBType(line)
	}
	return c, nil
}

func (p *TerminalPrompt) readLine() (string, error) {
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

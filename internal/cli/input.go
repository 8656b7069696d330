package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads answers from an input stream and writes prompts to out.
type Prompter struct {
	reader       *bufio.Reader
	out          io.Writer
	readPassword func() ([]byte, error)
}

// NewPrompter returns a Prompter over in. Passwords are read without echo when
// in is a terminal, and as a plain line otherwise.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{reader: bufio.NewReader(in), out: out}
	p.readPassword = p.readLineBytes
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		p.readPassword = func() ([]byte, error) { return term.ReadPassword(fd) }
	}
	return p
}

// Text prints prompt and returns the trimmed line typed in reply.
// A partial line before EOF is returned as is.
func (p *Prompter) Text(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.out, prompt); err != nil {
		return "", err
	}
	return p.readLine()
}

// YesNo keeps asking until the answer is y or n.
func (p *Prompter) YesNo(prompt string) (bool, error) {
	for {
		answer, err := p.Text(prompt + " (y,n):")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y":
			return true, nil
		case "n":
			return false, nil
		}
		fmt.Fprintln(p.out, "Must input 'y' or 'n'")
	}
}

// Password prints prompt and reads a secret. The caller should wipe the
// returned slice when done with it.
func (p *Prompter) Password(prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(p.out, prompt); err != nil {
		return nil, err
	}
	pw, err := p.readPassword()
	fmt.Fprintln(p.out)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *Prompter) readLineBytes() ([]byte, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

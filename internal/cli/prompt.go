package cli

import (
	"strings"

	"github.com/chzyer/readline"
)

// Prompter asks the user for values the command line did not supply.
type Prompter interface {
	Line(prompt string) (string, error)
	Password(prompt string) (string, error)
	Close() error
}

type readlinePrompter struct {
	rl *readline.Instance
}

// NewReadlinePrompter prompts on the terminal. Passwords are not echoed.
func NewReadlinePrompter() (Prompter, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}
	return &readlinePrompter{rl: rl}, nil
}

func (p *readlinePrompter) Line(prompt string) (string, error) {
	p.rl.SetPrompt(prompt)
	line, err := p.rl.Readline()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *readlinePrompter) Password(prompt string) (string, error) {
	b, err := p.rl.ReadPassword(prompt)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (p *readlinePrompter) Close() error {
	return p.rl.Close()
}

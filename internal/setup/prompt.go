package setup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// stdin is shared so buffered input survives across prompts.
var stdin = bufio.NewReader(os.Stdin)

// PromptPassword reads a password from the terminal without echo. With
// confirm set the password is asked twice. Piped input falls back to plain
// line reads.
func PromptPassword(label string, confirm bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		read := func(prompt string) (string, error) {
			fmt.Fprintf(os.Stderr, "%s: ", prompt)
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			return strings.TrimSpace(string(b)), err
		}
		for {
			p1, err := read(label)
			if err != nil {
				return "", err
			}
			if p1 == "" {
				fmt.Fprintln(os.Stderr, "password cannot be empty")
				continue
			}
			if !confirm {
				return p1, nil
			}
			p2, err := read("Confirm password")
			if err != nil {
				return "", err
			}
			if p1 != p2 {
				fmt.Fprintln(os.Stderr, "passwords do not match")
				continue
			}
			return p1, nil
		}
	}

	// Non-interactive fallback (e.g. piped input). Echo suppression isn't possible.
	return readPassword(stdin, os.Stderr, label, confirm)
}

func readPassword(r *bufio.Reader, w io.Writer, label string, confirm bool) (string, error) {
	for {
		p1, err := readLine(r, w, label)
		if err != nil {
			return "", err
		}
		if p1 == "" {
			fmt.Fprintln(w, "password cannot be empty")
			continue
		}
		if !confirm {
			return p1, nil
		}
		p2, err := readLine(r, w, "Confirm password")
		if err != nil {
			return "", err
		}
		if p1 != p2 {
			fmt.Fprintln(w, "passwords do not match")
			continue
		}
		return p1, nil
	}
}

// PromptLine asks for a single line of input on stderr.
func PromptLine(label string) (string, error) {
	return readLine(stdin, os.Stderr, label)
}

func readLine(r *bufio.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprintf(w, "%s: ", label)
	s, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// Confirm asks a yes/no question. Anything but y or yes is a no.
func Confirm(question string) (bool, error) {
	return readConfirm(stdin, os.Stderr, question)
}

func readConfirm(r *bufio.Reader, w io.Writer, question string) (bool, error) {
	a, err := readLine(r, w, question+" [y/N]")
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(a) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

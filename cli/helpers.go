package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// IsTerminal reports whether stdin is an interactive terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ReadPassword reads a secret from the terminal without echo.
func ReadPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// ReadPasswordMasked reads a secret echoing one '*' per character.
func ReadPasswordMasked(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintln(os.Stderr)
		return ReadPassword("")
	}
	defer term.Restore(fd, state)

	var (
		input []rune
		buf   [4]byte
		n     int
	)
	for {
		if _, err := os.Stdin.Read(buf[n : n+1]); err != nil {
			fmt.Fprint(os.Stderr, "\r\n")
			if err == io.EOF {
				return "", ErrAborted
			}
			return "", err
		}
		n++
		c := buf[0]

		switch {
		case n == 1 && (c == '\r' || c == '\n'):
			fmt.Fprint(os.Stderr, "\r\n")
			return string(input), nil
		case n == 1 && (c == 3 || c == 4): // ctrl-c, ctrl-d
			fmt.Fprint(os.Stderr, "\r\n")
			return "", ErrAborted
		case n == 1 && (c == 127 || c == 8):
			if len(input) > 0 {
				input = input[:len(input)-1]
				fmt.Fprint(os.Stderr, "\b \b")
			}
			n = 0
		case utf8.FullRune(buf[:n]):
			r, _ := utf8.DecodeRune(buf[:n])
			input = append(input, r)
			fmt.Fprint(os.Stderr, "*")
			n = 0
		case n == len(buf):
			n = 0
		}
	}
}

// ProgressPrinter shows store progress hints on a single status line of w.
// The empty hint clears it.
func ProgressPrinter(w io.Writer) func(string) {
	return func(hint string) {
		if hint == "" {
			fmt.Fprint(w, "\r\033[K")
			return
		}
		fmt.Fprintf(w, "\r\033[K%s...", hint)
	}
}

// formatCode splits a six digit code for reading: "123 456".
func formatCode(code string) string {
	if len(code) != 6 {
		return code
	}
	return code[:3] + " " + code[3:]
}

// countdownBar draws the share of the window left as a fixed-width bar.
func countdownBar(left, total, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	left = max(0, min(left, total))
	filled := left * width / total
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// GetSimpleText prompts for one line of input and returns it trimmed.
func GetSimpleText(reader *bufio.Reader, prompt string, out io.Writer) (string, error) {
	fmt.Fprintln(out, prompt)
	text, err := reader.ReadString('\n')
	if err != nil && text == "" {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// GetPassword reads a secret without echo.
func GetPassword(prompt string, out io.Writer) ([]byte, error) {
	fmt.Fprintln(out, prompt)
	return term.ReadPassword(int(os.Stdin.Fd()))
}

// GetConfirm asks a yes/no question; only an explicit "y"/"yes" confirms.
func GetConfirm(reader *bufio.Reader, prompt string, out io.Writer) (bool, error) {
	answer, err := GetSimpleText(reader, prompt+" [y/N]", out)
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

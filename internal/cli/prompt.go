package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PromptForInstruction asks for a freeform edit instruction on out and reads
// one line from in. Returns "" when nothing was entered.
func PromptForInstruction(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Describe the edit: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read instruction: %w", err)
	}
	return strings.TrimSpace(line), nil
}

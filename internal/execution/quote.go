package execution

import (
	"strings"
	"unicode"
)

// QuoteArg returns arg unchanged when it only contains letters, digits, '-'
// and '_', and single-quoted otherwise.
func QuoteArg(arg string) string {
	if arg == "" {
		return "''"
	}

	plain := strings.IndexFunc(arg, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
	}) < 0
	if plain {
		return arg
	}

	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

// CommandLine joins the command with its quoted arguments. The command itself
// is left unquoted so callers can pass compound shell expressions.
func CommandLine(command string, args []string) string {
	if len(args) == 0 {
		return command
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, command)
	for _, arg := range args {
		parts = append(parts, QuoteArg(arg))
	}

	return strings.Join(parts, " ")
}

package transfer

import (
	"fmt"
	"strings"
)

// Render formats cmd as an lftp directive. escape quotes arguments; pass
// the identity function to leave them untouched.
func Render(cmd Command, escape func(string) string) string {
	switch cmd.Op {
	case OpRaw:
		if len(cmd.Args) == 0 {
			return ""
		}
		return cmd.Args[0]
	case OpPut:
		local, remote := putArgs(cmd.Args)
		if remote == "" {
			return "put " + escape(local)
		}
		return "put " + escape(local) + " -o " + escape(remote)
	}

	parts := []string{string(cmd.Op)}
	for _, a := range cmd.Args {
		parts = append(parts, escape(a))
	}
	return strings.Join(parts, " ")
}

// Words returns cmd as a verb followed by unescaped arguments, in the same
// shape Render produces. Raw directives are tokenized.
func Words(cmd Command) ([]string, error) {
	switch cmd.Op {
	case OpRaw:
		if len(cmd.Args) == 0 {
			return nil, nil
		}
		return Tokenize(cmd.Args[0])
	case OpPut:
		local, remote := putArgs(cmd.Args)
		if remote == "" {
			return []string{"put", local}, nil
		}
		return []string{"put", local, "-o", remote}, nil
	}
	return append([]string{string(cmd.Op)}, cmd.Args...), nil
}

func putArgs(args []string) (local, remote string) {
	if len(args) > 0 {
		local = args[0]
	}
	if len(args) > 1 {
		remote = args[1]
	}
	return local, remote
}

// Tokenize splits a directive into words using shell-like rules:
// whitespace separates words, a backslash escapes the next character,
// single quotes are literal and double quotes allow backslash escapes.
func Tokenize(s string) ([]string, error) {
	var (
		words   []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\\':
			escaped = true
			inWord = true
		case quote == '"':
			if r == '"' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}

	if escaped {
		return nil, fmt.Errorf("trailing backslash in %q", s)
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote in %q", quote, s)
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words, nil
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
)

// runHookFiles reads each SQL file and executes its statements in order on
// exec. Relative paths resolve against the config file's directory.
func runHookFiles(ctx context.Context, exec sqlExecutor, cfg *AppConfig, files []string, phase string) error {
	if len(files) == 0 {
		return nil
	}
	log.Printf("  running %s hooks (%d files)...", phase, len(files))

	for _, f := range files {
		path := cfg.resolvePath(f)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("hook %s: read %s: %w", phase, f, err)
		}

		stmts := splitStatements(string(data))
		log.Printf("    %s: %d statements", f, len(stmts))
		for i, stmt := range stmts {
			if _, err := exec.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("hook %s: %s: statement %d: %w\nSQL: %s", phase, f, i+1, err, stmt)
			}
		}
	}
	return nil
}

// splitStatements splits SQL text on semicolons, ignoring empty entries and
// semicolons inside literals, quoted identifiers (", ` and [ ]), comments and
// PostgreSQL dollar-quoted bodies.
func splitStatements(text string) []string {
	var stmts []string
	var current strings.Builder
	var closeQuote byte // nonzero inside a literal or quoted identifier
	inLineComment := false
	blockCommentDepth := 0
	dollarTag := ""

	for i := 0; i < len(text); i++ {
		c := text[i]

		if inLineComment {
			current.WriteByte(c)
			if c == '\n' {
				inLineComment = false
			}
			continue
		}

		// Block comments nest.
		if blockCommentDepth > 0 {
			current.WriteByte(c)
			if c == '/' && i+1 < len(text) && text[i+1] == '*' {
				current.WriteByte(text[i+1])
				i++
				blockCommentDepth++
				continue
			}
			if c == '*' && i+1 < len(text) && text[i+1] == '/' {
				current.WriteByte(text[i+1])
				i++
				blockCommentDepth--
			}
			continue
		}

		if closeQuote != 0 {
			current.WriteByte(c)
			if c == closeQuote {
				// A doubled closing character is an escape.
				if i+1 < len(text) && text[i+1] == closeQuote {
					current.WriteByte(text[i+1])
					i++
				} else {
					closeQuote = 0
				}
			}
			continue
		}

		if dollarTag != "" {
			if strings.HasPrefix(text[i:], dollarTag) {
				current.WriteString(dollarTag)
				i += len(dollarTag) - 1
				dollarTag = ""
				continue
			}
			current.WriteByte(c)
			continue
		}

		switch {
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			current.WriteByte(c)
			current.WriteByte(text[i+1])
			i++
			inLineComment = true
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			current.WriteByte(c)
			current.WriteByte(text[i+1])
			i++
			blockCommentDepth = 1
		case c == '\'', c == '"', c == '`':
			current.WriteByte(c)
			closeQuote = c
		case c == '[':
			current.WriteByte(c)
			closeQuote = ']'
		case c == '$':
			if tag, ok := parseDollarTag(text, i); ok {
				current.WriteString(tag)
				i += len(tag) - 1
				dollarTag = tag
				continue
			}
			current.WriteByte(c)
		case c == ';':
			if s := strings.TrimSpace(current.String()); s != "" {
				stmts = append(stmts, s)
			}
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}

	// Trailing statement without semicolon
	if s := strings.TrimSpace(current.String()); s != "" {
		stmts = append(stmts, s)
	}

	return stmts
}

// parseDollarTag recognizes $$ and $tag$ openers at text[i].
func parseDollarTag(text string, i int) (string, bool) {
	if i >= len(text) || text[i] != '$' {
		return "", false
	}
	if i+1 < len(text) && text[i+1] == '$' {
		return "$$", true
	}

	j := i + 1
	if j >= len(text) || !isDollarTagStart(text[j]) {
		return "", false
	}
	for j < len(text) && isDollarTagChar(text[j]) {
		j++
	}
	if j < len(text) && text[j] == '$' {
		return text[i : j+1], true
	}
	return "", false
}

func isDollarTagStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDollarTagChar(c byte) bool {
	return isDollarTagStart(c) || (c >= '0' && c <= '9')
}

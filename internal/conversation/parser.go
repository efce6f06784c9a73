// Package conversation turns REPL input into commands and prints
// notifications.
package conversation

import (
	"context"
	"regexp"
	"strings"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/logger"
)

// Compile-time interface check.
var _ domain.CommandParser = (*KeywordParser)(nil)

// KeywordParser matches user input to commands using keywords and simple
// patterns. Arguments are captured verbatim; "title: text" splits into Arg
// and Rest.
type KeywordParser struct {
	log      *logger.Logger
	patterns []patternRule
}

type patternRule struct {
	regex   *regexp.Regexp
	command domain.CommandType
}

type argShape int

const (
	noArg   argShape = iota
	optArg           // verb [arg]
	reqArg           // verb arg
	argRest          // verb arg[: rest]
)

func rule(cmd domain.CommandType, shape argShape, words ...string) patternRule {
	verbs := `(?i)^(?:` + strings.Join(words, "|") + `)`
	var expr string
	switch shape {
	case noArg:
		expr = verbs + `$`
	case optArg:
		expr = verbs + `(?:\s+(.+))?$`
	case reqArg:
		expr = verbs + `\s+(.+)$`
	case argRest:
		expr = verbs + `\s+([^:]+?)(?:\s*:\s*(.+))?$`
	}
	return patternRule{regex: regexp.MustCompile(expr), command: cmd}
}

// NewKeywordParser creates a keyword-based command parser.
func NewKeywordParser(log *logger.Logger) *KeywordParser {
	p := &KeywordParser{log: log}
	p.patterns = []patternRule{
		rule(domain.CommandHelp, noArg, "help", "h", `\?`),
		rule(domain.CommandStatus, noArg, "status", "where", "progress", "info"),
		rule(domain.CommandShow, noArg, "show", "graph", "tree", "ls"),
		rule(domain.CommandQuit, noArg, "quit", "exit", "q"),

		// "start timer" must win over "start".
		rule(domain.CommandStartTimer, optArg, "start timer", "timer", "set timer", "ready"),
		rule(domain.CommandStart, noArg, "start", "play", "cook", "go", "begin", "let'?s go"),
		rule(domain.CommandPause, noArg, "pause", "brb", "wait", "p"),
		rule(domain.CommandResume, noArg, "resume", "unpause", "back", "continue"),
		rule(domain.CommandStop, noArg, "stop", "abort", "abandon"),
		rule(domain.CommandComplete, optArg, "done", "complete", "finish", "next", "n"),
		rule(domain.CommandSkip, optArg, "skip", "s"),

		rule(domain.CommandGoto, reqArg, "goto", "go to", "select", "cd"),
		rule(domain.CommandAdd, argRest, "add", "new"),
		rule(domain.CommandAppend, argRest, "append", "then"),
		rule(domain.CommandConnect, reqArg, "connect", "link"),
		rule(domain.CommandDisconnect, reqArg, "disconnect", "unlink"),
		rule(domain.CommandDelete, noArg, "delete", "rm", "remove"),
		rule(domain.CommandRename, reqArg, "rename", "title"),
		rule(domain.CommandInstruct, reqArg, "instruct", "instruction", "say"),
		rule(domain.CommandDuration, reqArg, "duration", "time"),
		rule(domain.CommandExtend, noArg, "extend", "toggle timer"),
		rule(domain.CommandSave, noArg, "save", "commit", "w"),
	}
	return p
}

// Parse converts user input into a command. Unmatched input is returned as
// CommandUnknown with the text in Arg.
func (p *KeywordParser) Parse(ctx context.Context, input string) (*domain.Command, error) {
	trimmed := strings.Join(strings.Fields(input), " ")
	if trimmed == "" {
		return &domain.Command{Type: domain.CommandUnknown}, nil
	}

	p.log.Debug("parsing input: %q", trimmed)

	for _, r := range p.patterns {
		m := r.regex.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		cmd := &domain.Command{Type: r.command}
		if len(m) > 1 {
			cmd.Arg = strings.TrimSpace(m[1])
		}
		if len(m) > 2 {
			cmd.Rest = strings.TrimSpace(m[2])
		}
		p.log.Debug("matched command: %s", cmd.Type)
		return cmd, nil
	}

	p.log.Debug("no match, returning unknown command")
	return &domain.Command{Type: domain.CommandUnknown, Arg: trimmed}, nil
}

// Package command parses the slash commands typed into the chat
// input. Anything that is not a recognized local command is either a
// provider command passed through verbatim or a plain message.
package command

import (
	"fmt"
	"strings"
)

// Kind classifies a parsed input line.
type Kind int

const (
	// KindMessage is plain text for the assistant.
	KindMessage Kind = iota
	// KindProvider switches the provider: /provider <name>.
	KindProvider
	// KindPolicy switches the agent policy: /policy <name>.
	KindPolicy
	// KindModel selects a model: /model <name>.
	KindModel
	// KindClear clears the transcript: /clear.
	KindClear
	// KindHelp shows usage: /help.
	KindHelp
	// KindPassthrough is a provider-advertised slash command forwarded
	// as-is.
	KindPassthrough
)

// Command is one parsed input line.
type Command struct {
	Kind Kind
	Arg  string // argument for provider/policy/model, raw line for passthrough
}

// HelpText lists the local commands.
const HelpText = `/provider <claude|codex>  switch assistant provider
/policy <restricted|full>  switch agent policy
/model <name>              select a model
/clear                     clear the transcript
/help                      show this help`

// Parse classifies one input line. Provider-advertised commands are
// matched against known so the rest can fall through as plain text.
func Parse(input string, known []string) (Command, error) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: KindMessage, Arg: trimmed}, nil
	}

	fields := strings.Fields(trimmed)
	name := strings.TrimPrefix(fields[0], "/")
	arg := strings.TrimSpace(strings.TrimPrefix(trimmed, fields[0]))

	switch name {
	case "provider":
		if arg == "" {
			return Command{}, fmt.Errorf("usage: /provider <claude|codex>")
		}
		return Command{Kind: KindProvider, Arg: arg}, nil
	case "policy":
		if arg == "" {
			return Command{}, fmt.Errorf("usage: /policy <restricted|full>")
		}
		return Command{Kind: KindPolicy, Arg: arg}, nil
	case "model":
		if arg == "" {
			return Command{}, fmt.Errorf("usage: /model <name>")
		}
		return Command{Kind: KindModel, Arg: arg}, nil
	case "clear":
		return Command{Kind: KindClear}, nil
	case "help":
		return Command{Kind: KindHelp}, nil
	}

	for _, k := range known {
		if k == name {
			return Command{Kind: KindPassthrough, Arg: trimmed}, nil
		}
	}
	return Command{}, fmt.Errorf("unknown command /%s, try /help", name)
}

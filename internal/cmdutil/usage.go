package cmdutil

import (
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
	"github.com/mitchellh/go-wordwrap"
)

const usageWidth = 78

// reflow joins the lines of every paragraph and wraps them again. Paragraphs
// are separated by blank lines.
func reflow(text string) string {
	var paragraphs []string

	for _, p := range strings.Split(strings.TrimSpace(text), "\n\n") {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			paragraphs = append(paragraphs, wordwrap.WrapString(p, usageWidth))
		}
	}

	return strings.Join(paragraphs, "\n\n")
}

// Usage generates a description of a subcommand.
func Usage(cmd subcommands.Command, args, description string) string {
	var buf strings.Builder

	foundFlags := false

	fs := flag.NewFlagSet(cmd.Name(), flag.PanicOnError)
	cmd.SetFlags(fs)
	fs.VisitAll(func(*flag.Flag) { foundFlags = true })

	fmt.Fprintf(&buf, "Usage: %s %s", globalProgramName(), cmd.Name())

	if foundFlags {
		buf.WriteString(" [flags]")
	}

	if args != "" {
		fmt.Fprintf(&buf, " %s", args)
	}

	buf.WriteString("\n")

	for _, i := range []string{
		cmd.Synopsis(),
		description,
	} {
		if text := reflow(i); text != "" {
			fmt.Fprintf(&buf, "\n%s\n", text)
		}
	}

	if foundFlags {
		fmt.Fprintf(&buf, "\nFlags:\n")
	}

	return buf.String()
}

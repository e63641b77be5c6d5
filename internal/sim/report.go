package sim

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/rivo/uniseg"
)

const maxNameWidth = 24

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed, color.Bold)
)

// fitName truncates or pads the name to exactly width terminal cells. Names
// are cut at grapheme cluster boundaries.
func fitName(name string, width int) string {
	if uniseg.StringWidth(name) > width {
		var buf strings.Builder

		used := 0

		for g := uniseg.NewGraphemes(name); g.Next(); {
			w := g.Width()

			if used+w > width-1 {
				break
			}

			buf.WriteString(g.Str())
			used += w
		}

		buf.WriteString("…")

		name = buf.String()
	}

	if pad := width - uniseg.StringWidth(name); pad > 0 {
		name += strings.Repeat(" ", pad)
	}

	return name
}

func nameWidth[T any](items []T, name func(T) string) int {
	width := 1

	for _, i := range items {
		width = max(width, uniseg.StringWidth(name(i)))
	}

	return min(width, maxNameWidth)
}

// WriteReport prints a human-readable summary of the run.
func (r *Result) WriteReport(w io.Writer) error {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Finished at tick %d after %d interrupt(s).\n", r.Ticks, r.Interrupts)

	if len(r.Wakes) > 0 {
		width := nameWidth(r.Wakes, func(w Wake) string { return w.Thread })

		buf.WriteString("\nSleepers:\n")

		for _, i := range r.Wakes {
			status := okColor.Sprint("ok")

			if i.WokeAt < i.WakeTick() {
				status = failColor.Sprint("EARLY")
			}

			fmt.Fprintf(&buf, "  %s  start %d, ticks %d, woke at %d (+%d)  %s\n",
				fitName(i.Thread, width), i.Start, i.Ticks, i.WokeAt,
				i.WokeAt-min(i.WokeAt, i.WakeTick()), status)
		}
	}

	if len(r.Sent)+len(r.Heard) > 0 {
		all := append(append([]Exchange(nil), r.Sent...), r.Heard...)
		width := nameWidth(all, func(e Exchange) string { return e.Thread })

		buf.WriteString("\nExchanges:\n")

		for _, i := range r.Sent {
			fmt.Fprintf(&buf, "  %s  sent  %d\n", fitName(i.Thread, width), i.Value)
		}

		for _, i := range r.Heard {
			fmt.Fprintf(&buf, "  %s  heard %d\n", fitName(i.Thread, width), i.Value)
		}
	}

	_, err := io.WriteString(w, buf.String())

	return err
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/inlay-dev/inlay/pkg/buffer"
	"github.com/inlay-dev/inlay/pkg/conflict"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <file>",
	Short: "Interactively resolve staged conflict regions in a file",
	Long: `Scans the file for <<<<<<< CURRENT / ======= / >>>>>>> INCOMING
regions and walks through them. Keys:

  c  keep current      i  keep incoming
  b  keep both         n  keep neither
  j  next conflict     k  previous conflict
  q  save and quit

With --accept every conflict is resolved the same way without prompting.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path := args[0]
		buf, err := buffer.LoadFile(path)
		if err != nil {
			return err
		}
		conflicts := conflict.Detect(buf)
		if len(conflicts) == 0 {
			fmt.Println("no conflicts found")
			return nil
		}

		eng := conflict.NewEngine()
		eng.AutoFollow = cfg.Conflicts.AutoFollow

		if accept, _ := cmd.Flags().GetString("accept"); accept != "" {
			choice, err := parseChoice(accept)
			if err != nil {
				return err
			}
			n := 0
			for {
				remaining := conflict.Detect(buf)
				if len(remaining) == 0 {
					break
				}
				eng.Resolve(buf, remaining[0], choice)
				n++
			}
			fmt.Printf("resolved %d conflicts\n", n)
			return buf.SaveFile(path)
		}

		if err := interactiveResolve(buf, eng); err != nil {
			return err
		}
		return buf.SaveFile(path)
	},
}

func parseChoice(s string) (conflict.Choice, error) {
	switch s {
	case "current":
		return conflict.KeepCurrent, nil
	case "incoming":
		return conflict.KeepIncoming, nil
	case "both":
		return conflict.KeepBoth, nil
	case "none":
		return conflict.KeepNone, nil
	}
	return 0, fmt.Errorf("unknown choice %q (want current|incoming|both|none)", s)
}

// interactiveResolve walks the conflicts one keypress at a time in raw mode.
func interactiveResolve(buf *buffer.Buffer, eng *conflict.Engine) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("stdin is not a terminal; use --accept for non-interactive resolution")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 1
	if c, ok := conflict.At(buf, cursor); !ok {
		if next, found := conflict.GotoNext(buf, 0); found {
			cursor = next
		}
	} else {
		cursor = c.StartLine
	}

	key := make([]byte, 1)
	for {
		c, ok := conflict.At(buf, cursor)
		if !ok {
			if next, found := conflict.GotoNext(buf, 0); found {
				cursor = next
				continue
			}
			fmt.Print("all conflicts resolved\r\n")
			return nil
		}
		printConflict(buf, c)

		if _, err := os.Stdin.Read(key); err != nil {
			return err
		}
		switch key[0] {
		case 'c':
			cursor = resolveAndFollow(buf, eng, cursor, conflict.KeepCurrent)
		case 'i':
			cursor = resolveAndFollow(buf, eng, cursor, conflict.KeepIncoming)
		case 'b':
			cursor = resolveAndFollow(buf, eng, cursor, conflict.KeepBoth)
		case 'n':
			cursor = resolveAndFollow(buf, eng, cursor, conflict.KeepNone)
		case 'j':
			if next, found := conflict.GotoNext(buf, cursor); found {
				cursor = next
			}
		case 'k':
			if prev, found := conflict.GotoPrev(buf, cursor); found {
				cursor = prev
			}
		case 'q', 3: // q or ctrl-c
			return nil
		}
		if cursor == 0 {
			fmt.Print("all conflicts resolved\r\n")
			return nil
		}
	}
}

func resolveAndFollow(buf *buffer.Buffer, eng *conflict.Engine, cursor int, choice conflict.Choice) int {
	next, _ := eng.ResolveAtCursor(buf, cursor, choice)
	if next == 0 {
		// Auto-follow may be off while conflicts remain.
		if n, found := conflict.GotoNext(buf, 0); found {
			return n
		}
	}
	return next
}

func printConflict(buf *buffer.Buffer, c conflict.Conflict) {
	fmt.Printf("\r\n-- conflict at line %d --\r\n", c.StartLine)
	for n := c.StartLine; n <= c.EndLine; n++ {
		line, _ := buf.Line(n)
		fmt.Printf("%5d  %s\r\n", n, line)
	}
	fmt.Print("[c]urrent [i]ncoming [b]oth [n]one [j]next [k]prev [q]uit: ")
}

func init() {
	resolveCmd.Flags().String("accept", "", "resolve every conflict the same way: current|incoming|both|none")
	rootCmd.AddCommand(resolveCmd)
}

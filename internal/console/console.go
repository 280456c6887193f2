// Package console is the text-mode front end: a stdin REPL and a coloured
// printer for streamed replies.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/duetvoice/duet/internal/bus"
)

// Banner is printed when the REPL starts.
const Banner = "The chat session has started."

var exitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

// IsExitCommand reports whether line ends the session.
func IsExitCommand(line string) bool {
	return exitCommands[strings.ToLower(strings.TrimSpace(line))]
}

var (
	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	replyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("219"))
	youStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// Console prints turn events and, in Start, reads user lines.
type Console struct {
	in        io.Reader
	out       io.Writer
	bus       bus.Bus
	character string

	mu      sync.Mutex
	midLine bool
}

func New(in io.Reader, out io.Writer, b bus.Bus, character string) *Console {
	return &Console{
		in:        in,
		out:       out,
		bus:       b,
		character: character,
	}
}

func (c *Console) TurnStarted(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "\n%s ", nameStyle.Render(c.character+":"))
	c.midLine = true
}

func (c *Console) Chunk(fragment string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, replyStyle.Render(fragment))
}

func (c *Console) TurnFailed(err error) {
	c.mu.Lock()
	c.endLine()
	fmt.Fprintln(c.out, errStyle.Render("error: "+err.Error()))
	c.mu.Unlock()
}

// Reply is a reply callback. The text was already streamed, so it only
// finishes the line.
func (c *Console) Reply(string) {
	c.mu.Lock()
	c.endLine()
	c.mu.Unlock()
}

func (c *Console) endLine() {
	if c.midLine {
		fmt.Fprintln(c.out)
		c.midLine = false
	}
}

func (c *Console) write(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, s)
}

// Start runs the REPL until an exit command, end of input or ctx is
// cancelled. Each line is published to the bus and the prompt returns once
// the turn loop has handled that line. Turns from other sources do not
// release it.
func (c *Console) Start(ctx context.Context) error {
	c.write(dimStyle.Render(Banner+" Type 'exit' or press Ctrl+C to quit.") + "\n")

	scanner := bufio.NewScanner(c.in)
	for {
		c.write("\n" + youStyle.Render("You:") + " ")

		scanDone := make(chan bool, 1)
		go func() {
			scanDone <- scanner.Scan()
		}()

		select {
		case ok := <-scanDone:
			if !ok {
				c.write("\nGoodbye!\n")
				return scanner.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if IsExitCommand(line) {
			c.write("Goodbye!\n")
			return nil
		}

		msg := bus.NewInboundMessage(bus.SourceConsole, line).Tracked()
		if err := c.bus.PublishInbound(ctx, msg); err != nil {
			return err
		}
		select {
		case <-msg.Handled():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PrintExchange prints one archived user/assistant pair.
func PrintExchange(w io.Writer, when, character, user, assistant string) {
	fmt.Fprintln(w, dimStyle.Render(when))
	fmt.Fprintf(w, "%s %s\n", youStyle.Render("You:"), user)
	fmt.Fprintf(w, "%s %s\n\n", nameStyle.Render(character+":"), replyStyle.Render(assistant))
}

// PrintMessage prints one snapshot message with its speaker.
func PrintMessage(w io.Writer, speaker, content string) {
	fmt.Fprintf(w, "%s %s\n", nameStyle.Render(speaker+":"), content)
}

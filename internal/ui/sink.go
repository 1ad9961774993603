package ui

import (
	"fmt"
	"io"
)

// ChatSink renders a streamed reply to a terminal: deltas are written as
// they arrive, Done terminates the line, and errors are styled in red.
type ChatSink struct {
	Out io.Writer
}

func NewChatSink(out io.Writer) *ChatSink {
	return &ChatSink{Out: out}
}

func (s *ChatSink) Delta(text string) {
	fmt.Fprint(s.Out, text)
}

func (s *ChatSink) Done(full string) {
	if full == "" {
		fmt.Fprintln(s.Out, "\n"+DimStyle.Render("(stopped)"))
		return
	}
	fmt.Fprintln(s.Out)
}

func (s *ChatSink) Error(message string) {
	fmt.Fprintln(s.Out, ErrorStyle.Render("error: "+message))
}

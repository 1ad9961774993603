package turn

// Sink receives turn output as it arrives. Delta is called once per text
// fragment in order, Done once when the turn ends (with the full reply, or ""
// when the turn was cancelled), and Error instead of Done when it fails.
type Sink interface {
	Delta(text string)
	Done(full string)
	Error(message string)
}

// NopSink discards all output.
type NopSink struct{}

func (NopSink) Delta(string) {}
func (NopSink) Done(string)  {}
func (NopSink) Error(string) {}

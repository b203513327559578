package domain

// SupportLevel grades how well an answer is backed by the retrieved context.
type SupportLevel string

const (
	SupportFull    SupportLevel = "fully_supported"
	SupportPartial SupportLevel = "partially_supported"
	SupportNone    SupportLevel = "not_supported"
)

// Valid reports whether the level is one of the three known grades.
func (l SupportLevel) Valid() bool {
	switch l {
	case SupportFull, SupportPartial, SupportNone:
		return true
	}
	return false
}

// SupportVerdict is the groundedness judgment for a generated answer.
// Evidence holds up to a few direct quotes from the context that back
// the supported parts of the answer.
type SupportVerdict struct {
	Level    SupportLevel
	Evidence []string
}

// UsefulnessVerdict reports whether an answer addresses the original
// question's intent, with a one-line reason.
type UsefulnessVerdict struct {
	Useful bool
	Reason string
}

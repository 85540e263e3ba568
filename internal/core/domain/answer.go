package domain

import (
	"fmt"
	"strings"
)

// StructuredAnswer is the synthesis result: the answer text plus the ordered
// list of cited sources. Immutable once produced.
type StructuredAnswer struct {
	// Answer is the final answer text.
	Answer string `json:"answer"`

	// Citations lists the cited sources, in citation order. May be empty.
	Citations []string `json:"citations"`
}

// String renders the answer with a human-readable citation list.
// With no citations the answer is returned bare.
func (a StructuredAnswer) String() string {
	if len(a.Citations) == 0 {
		return a.Answer
	}
	return fmt.Sprintf("%s (Citations: %s)", a.Answer, strings.Join(a.Citations, ", "))
}

package logger

import (
	"fmt"
	"log"
	"os"
)

// New returns a stderr logger with a component prefix, for diagnostics emitted
// before the structured logger is configured.
func New(component string) *log.Logger {
	prefix := fmt.Sprintf("[%s] ", component)
	return log.New(os.Stderr, prefix, log.LstdFlags|log.Lmsgprefix)
}

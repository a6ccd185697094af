package logger

import (
	"fmt"
	"io"
	"log"
)

// Null is a logger discarding everything.
func Null() *log.Logger {
	return log.New(io.Discard, "", log.LstdFlags)
}

func Default() *log.Logger {
	return log.Default()
}

// For creates a logger writing to w, prefixed with the command name.
func For(w io.Writer, name string) *log.Logger {
	return log.New(w, fmt.Sprintf("[%s] ", name), log.LstdFlags)
}

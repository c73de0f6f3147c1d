// Package errl annotates errors with the function and line that produced them,
// so that a single log line is enough to find where a failure started.
package errl

import (
	"fmt"
	"path"
	"runtime"
)

// Errorf formats an error like fmt.Errorf (including %w wrapping) and prefixes
// it with the location of the caller.
func Errorf(format string, a ...any) error {
	return fmt.Errorf(location(2)+": "+format, a...)
}

// Error wraps err with the location of the caller. A nil err stays nil.
func Error(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", location(2), err)
}

func location(skip int) string {
	pc, _, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return fmt.Sprintf("unknown:%d", line)
	}
	// Keep "package.Function" and drop the import path
	return fmt.Sprintf("%s:%d", path.Base(fn.Name()), line)
}

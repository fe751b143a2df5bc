package util

import "os"

// io.go reads compiler input, adapted from the teacher's
// src/util/io.go ReadSource. The teacher's concurrent worker-output Writer
// (channel-multiplexed stdout/file writer for parallel codegen) is replaced
// by SPEC_FULL.md §1.4's errgroup-based batch driver, which gives each
// worker its own output file instead of funneling through one writer
// goroutine; this file keeps only the source-reading half.

// ReadSource reads the IR source at path. Unlike the teacher's version this
// has no stdin/timeout fallback: SPEC_FULL.md's CLI always takes one or more
// explicit input paths (cobra positional args), so there is no interactive
// "wait briefly for stdin" case to support.
func ReadSource(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

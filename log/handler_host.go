//go:build !wasip1

package log

import (
	"context"
	"os"
)

// hostSink writes encoded records to stderr, one per line, outside a native module.
func hostSink(_ context.Context, payload []byte) {
	_, _ = os.Stderr.Write(append(payload, '\n'))
}

package coro

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
)

var stderrMu sync.Mutex

func reportPanicToStderr(info PanicInfo) {
	var buf bytes.Buffer
	buf.WriteString("coro: panic")
	if info.ID != 0 {
		fmt.Fprintf(&buf, " id=%d", info.ID)
	}
	if info.Name != "" {
		fmt.Fprintf(&buf, " name=%q", info.Name)
	}
	if len(info.Tags) > 0 {
		fmt.Fprintf(&buf, " tags=%s", formatTags(info.Tags))
	}
	fmt.Fprintf(&buf, " value=%v\n", info.Value)
	writeStack(&buf, info.Stack)

	stderrMu.Lock()
	_, _ = os.Stderr.Write(buf.Bytes())
	stderrMu.Unlock()
}

// reportHookPanicToStderr reports a panic recovered from a user hook or panic handler.
func reportHookPanicToStderr(hook string, v any, stack []byte) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "coro: %s panicked: %v\n", hook, v)
	writeStack(&buf, stack)

	stderrMu.Lock()
	_, _ = os.Stderr.Write(buf.Bytes())
	stderrMu.Unlock()
}

func writeStack(buf *bytes.Buffer, stack []byte) {
	if len(stack) == 0 {
		return
	}
	_, _ = buf.Write(stack)
	if stack[len(stack)-1] != '\n' {
		_ = buf.WriteByte('\n')
	}
}

func formatTags(tags []Tag) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, t := range tags {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%q", t.Key, t.Value)
	}
	b.WriteByte('}')
	return b.String()
}

// Package ipcserver implements the length-prefixed JSON-over-stream-socket
// protocol described in spec.md §6.1: frames shaped as
// "len:<decimal>\n<body>", a bounded 1 MiB body, Unix-domain-socket
// transport with owner-only permissions, and a small set of control ops
// alongside the completion/diagnosis request ops.
package ipcserver

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nudge-sh/nudge/internal/errs"
)

// MaxFrameBytes bounds a single decoded frame body (spec.md §7:
// frame_too_large).
const MaxFrameBytes = 1 << 20

// readFrame reads one "len:<N>\n<body>" frame from r, enforcing
// MaxFrameBytes before allocating the body buffer.
func readFrame(r *bufio.Reader) ([]byte, error) {
	header, err := r.ReadString('\n')
	if err != nil {
		return nil, errs.Wrap(errs.IPCProtocol, "read frame header", err)
	}
	header = strings.TrimSuffix(header, "\n")

	rest, ok := strings.CutPrefix(header, "len:")
	if !ok {
		return nil, errs.New(errs.IPCProtocol, "frame header missing len: prefix")
	}

	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return nil, errs.New(errs.IPCProtocol, "frame header length is not a non-negative integer")
	}
	if n > MaxFrameBytes {
		return nil, errs.New(errs.FrameTooLarge, fmt.Sprintf("frame of %d bytes exceeds max %d", n, MaxFrameBytes))
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errs.Wrap(errs.IPCProtocol, "read frame body", err)
	}
	return body, nil
}

// writeFrame writes body as one "len:<N>\n<body>" frame.
func writeFrame(w io.Writer, body []byte) error {
	header := fmt.Sprintf("len:%d\n", len(body))
	if _, err := io.WriteString(w, header); err != nil {
		return errs.Wrap(errs.IPCProtocol, "write frame header", err)
	}
	if _, err := w.Write(body); err != nil {
		return errs.Wrap(errs.IPCProtocol, "write frame body", err)
	}
	return nil
}

package hvps

import "bytes"

// maxLineLength bounds an unterminated line; longer garbage is dropped.
const maxLineLength = 4096

// lineBuffer accumulates received bytes and splits them into lines.
type lineBuffer struct {
	data []byte
}

func (b *lineBuffer) Write(p []byte) {
	b.data = append(b.data, p...)
	if len(b.data) > maxLineLength && bytes.IndexByte(b.data, '\n') < 0 {
		b.data = b.data[:0]
	}
}

// PopLine removes and returns the first complete line, without "\n" or "\r\n".
func (b *lineBuffer) PopLine() (string, bool) {
	i := bytes.IndexByte(b.data, '\n')
	if i < 0 {
		return "", false
	}
	line := string(bytes.TrimRight(b.data[:i], "\r"))
	n := copy(b.data, b.data[i+1:])
	b.data = b.data[:n]
	return line, true
}

func (b *lineBuffer) Len() int {
	return len(b.data)
}

func (b *lineBuffer) Reset() {
	b.data = b.data[:0]
}

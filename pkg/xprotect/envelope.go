package xprotect

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

type Envelope struct {
	buf []byte
}

const (
	prefix1 = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
`
	prefix2 = `<s:Body>
`
	suffix = `
</s:Body>
</s:Envelope>`
)

func NewEnvelope() *Envelope {
	e := &Envelope{buf: make([]byte, 0, 512)}
	e.Append(prefix1, prefix2)
	return e
}

func (e *Envelope) Append(args ...string) {
	for _, s := range args {
		e.buf = append(e.buf, s...)
	}
}

func (e *Envelope) Appendf(format string, args ...any) {
	e.buf = fmt.Appendf(e.buf, format, args...)
}

// AppendText escapes s as XML character data.
func (e *Envelope) AppendText(s string) {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	e.buf = append(e.buf, b.Bytes()...)
}

func (e *Envelope) Bytes() []byte {
	return append(e.buf, suffix...)
}

// configurationEnvelope renders the GetConfiguration call body. The token
// is escaped, so any session token yields well-formed XML.
func configurationEnvelope(token string) []byte {
	e := NewEnvelope()
	e.Append(`<GetConfiguration xmlns="http://videoos.net/2/XProtectCSServerCommand">
	<currentToken>`)
	e.AppendText(token)
	e.Append(`</currentToken>
</GetConfiguration>`)
	return e.Bytes()
}

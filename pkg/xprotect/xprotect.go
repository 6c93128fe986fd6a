// Package xprotect is a thin client for Milestone XProtect flavored VMS
// servers: configuration retrieval over SOAP/HTTPS and the raw TCP camera
// channel. The package never logs and never retries, every operation ends
// in exactly one result.
package xprotect

import (
	"bufio"
	"encoding/base64"
	"io"
	"strings"
)

// Wire constants for the /2/ generation of the server command service.
const (
	ServicePath            = "/ManagementServer/ServerCommandService.svc"
	ActionGetConfiguration = "http://videoos.net/2/XProtectCSServerCommand/IServerCommandService/GetConfiguration"
)

// BasicAuth returns the value part of the Authorization header.
func BasicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}

// collapse joins all body lines into one string without separators.
func collapse(r io.Reader) (string, error) {
	var b strings.Builder

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	for sc.Scan() {
		b.WriteString(sc.Text())
	}

	return b.String(), sc.Err()
}

// readLine reads up to the first LF one byte at a time, so bytes after the
// line stay on the wire for the conn owner.
func readLine(r io.Reader) (string, error) {
	var line []byte

	b := make([]byte, 1)
	for {
		n, err := r.Read(b)
		if n > 0 {
			if b[0] == '\n' {
				return string(line), nil
			}
			line = append(line, b[0])
		}
		if err != nil {
			return string(line), err
		}
	}
}

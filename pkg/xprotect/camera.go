package xprotect

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Camera endpoint defaults.
const (
	CameraPort     = 7563
	connectTimeout = 4000 * time.Millisecond
)

var (
	ErrInvalidGUID  = errors.New("xprotect: invalid camera guid")
	ErrInvalidToken = errors.New("xprotect: invalid connection token")
)

// Dialer opens the raw camera channel: TCP connect, one XML methodcall
// handshake, one response line. The established conn belongs to the caller,
// the dialer never reads, writes or closes it afterwards. All fields are
// read once at call entry.
type Dialer struct {
	Hostname  string
	Port      int // default 7563
	GUID      string
	Token     string
	RequestID int           // the wire uses a constant 0
	Timeout   time.Duration // connect and handshake deadline, default 4000ms
}

// ConnectResult is the single terminal outcome of an async connect. GUID is
// set on failure too.
type ConnectResult struct {
	GUID string
	Conn net.Conn
	Err  error
}

// Connect dials the camera endpoint and performs the handshake.
func (d *Dialer) Connect(ctx context.Context) (net.Conn, error) {
	// snapshot all request parameters before any I/O
	host := d.Hostname
	guid := d.GUID
	token := d.Token
	id := d.RequestID
	port := d.Port
	if port == 0 {
		port = CameraPort
	}
	timeout := d.Timeout
	if timeout == 0 {
		timeout = connectTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}

	// guid/token checks run on the live socket, the close covers them too
	if err = handshake(conn, id, guid, token, timeout); err != nil {
		_ = conn.Close()
		return nil, err
	}

	// conn is caller-owned from here
	if err = conn.SetDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

// RequestConnect runs Connect in the background and delivers exactly one
// result, then closes the channel.
func (d *Dialer) RequestConnect(ctx context.Context) <-chan ConnectResult {
	dialer := *d // snapshot before spawning
	ch := make(chan ConnectResult, 1)
	go func() {
		conn, err := dialer.Connect(ctx)
		ch <- ConnectResult{GUID: dialer.GUID, Conn: conn, Err: err}
		close(ch)
	}()
	return ch
}

func handshake(conn net.Conn, id int, guid, token string, timeout time.Duration) error {
	if !validGUID(guid) {
		return ErrInvalidGUID
	}
	if !validToken(token) {
		return ErrInvalidToken
	}

	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	if _, err := conn.Write(connectRequest(id, guid, token)); err != nil {
		return err
	}

	// the server answers with at least one line, its content carries no
	// meaning for session setup and is not interpreted
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	if _, err := readLine(conn); err != nil {
		return err
	}

	return nil
}

// connectRequest renders the fixed-format handshake. The dummy credentials
// are a protocol artifact, authorization is carried by the token inside
// connectparam.
func connectRequest(id int, guid, token string) []byte {
	return fmt.Appendf(nil,
		"<methodcall>"+
			"<requestid>%d</requestid>"+
			"<methodname>connect</methodname>"+
			"<username>dummy</username>"+
			"<password>dummy</password>"+
			"<cameraid>%s</cameraid>"+
			"<connectparam>id=%s&connectiontoken=%s</connectparam>"+
			"</methodcall>\r\n\r\n",
		id, guid, guid, token)
}

func validGUID(s string) bool {
	return strings.TrimSpace(s) != ""
}

func validToken(s string) bool {
	return strings.TrimSpace(s) != ""
}

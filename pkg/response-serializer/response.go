// Package serializer converts stored responses to and from bytes.
//
// The format starts like an HTTP/1.1 response message: a status line and the
// stored-at time. Header fields follow with explicit lengths so that keys and
// values come back exactly as they were given, whitespace and case included.
// An empty line ends the header block and the rest is the raw body.
//
//	HTTP/1.1 200 OK\r\n
//	Responsecache-Stored-At: <unix nanoseconds>\r\n
//	<key length> <value count>\r\n<key>\r\n
//	<value length>\r\n<value>\r\n   (once per value)
//	\r\n
//	<body>
package serializer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const storedAtHeaderName = "Responsecache-Stored-At"

// TimedResponse is a fully read response along with the time it was stored.
type TimedResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
}

// StoredResponseToBytes returns the wire representation of the response.
func StoredResponseToBytes(sRes TimedResponse) ([]byte, error) {
	if sRes.StatusCode < 100 || sRes.StatusCode > 999 {
		return nil, fmt.Errorf("serializer: invalid status code %d", sRes.StatusCode)
	}
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "HTTP/1.1 %03d %s\r\n", sRes.StatusCode, http.StatusText(sRes.StatusCode))
	fmt.Fprintf(buf, "%s: %d\r\n", storedAtHeaderName, sRes.StoredAt.UnixNano())

	keys := make([]string, 0, len(sRes.Header))
	for k := range sRes.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values := sRes.Header[k]
		fmt.Fprintf(buf, "%d %d\r\n%s\r\n", len(k), len(values), k)
		for _, v := range values {
			fmt.Fprintf(buf, "%d\r\n%s\r\n", len(v), v)
		}
	}
	buf.WriteString("\r\n")
	buf.Write(sRes.Body)
	return buf.Bytes(), nil
}

// BytesToStoredResponse parses bytes created by StoredResponseToBytes.
func BytesToStoredResponse(b []byte) (TimedResponse, error) {
	sRes := TimedResponse{Header: http.Header{}}
	r := bufio.NewReader(bytes.NewReader(b))

	statusLine, err := readLine(r)
	if err != nil {
		return sRes, fmt.Errorf("serializer: reading status line: %w", err)
	}
	proto, status, found := strings.Cut(statusLine, " ")
	if !found || proto != "HTTP/1.1" || len(status) < 3 {
		return sRes, fmt.Errorf("serializer: malformed status line %q", statusLine)
	}
	if sRes.StatusCode, err = strconv.Atoi(status[:3]); err != nil {
		return sRes, fmt.Errorf("serializer: malformed status code %q", status)
	}

	storedAtLine, err := readLine(r)
	if err != nil {
		return sRes, fmt.Errorf("serializer: reading stored-at time: %w", err)
	}
	storedAt, err := strconv.ParseInt(strings.TrimPrefix(storedAtLine, storedAtHeaderName+": "), 10, 64)
	if err != nil || !strings.HasPrefix(storedAtLine, storedAtHeaderName+": ") {
		return sRes, fmt.Errorf("serializer: malformed stored-at time %q", storedAtLine)
	}
	sRes.StoredAt = time.Unix(0, storedAt)

	for {
		line, err := readLine(r)
		if err != nil {
			return sRes, fmt.Errorf("serializer: reading header: %w", err)
		}
		if line == "" {
			break
		}
		keyLen, count, err := parseFieldLine(line)
		if err != nil {
			return sRes, err
		}
		if keyLen > len(b) || count > len(b) {
			return sRes, fmt.Errorf("serializer: header field line %q exceeds input", line)
		}
		key, err := readFramed(r, keyLen)
		if err != nil {
			return sRes, fmt.Errorf("serializer: reading header key: %w", err)
		}
		values := make([]string, 0, count)
		for i := 0; i < count; i++ {
			lenLine, err := readLine(r)
			if err != nil {
				return sRes, fmt.Errorf("serializer: reading header value: %w", err)
			}
			valueLen, err := strconv.Atoi(lenLine)
			if err != nil || valueLen < 0 || valueLen > len(b) {
				return sRes, fmt.Errorf("serializer: malformed value length %q", lenLine)
			}
			value, err := readFramed(r, valueLen)
			if err != nil {
				return sRes, fmt.Errorf("serializer: reading header value: %w", err)
			}
			values = append(values, value)
		}
		sRes.Header[key] = values
	}

	if sRes.Body, err = io.ReadAll(r); err != nil {
		return sRes, fmt.Errorf("serializer: reading body: %w", err)
	}
	return sRes, nil
}

// readLine reads a CRLF terminated line and returns it without the CRLF.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(line, "\r\n") {
		return "", fmt.Errorf("line %q not terminated by CRLF", line)
	}
	return line[:len(line)-2], nil
}

func parseFieldLine(line string) (keyLen, count int, err error) {
	keyPart, countPart, found := strings.Cut(line, " ")
	if found {
		keyLen, err = strconv.Atoi(keyPart)
		if err == nil {
			count, err = strconv.Atoi(countPart)
		}
	}
	if !found || err != nil || keyLen < 0 || count < 0 {
		return 0, 0, fmt.Errorf("serializer: malformed header field line %q", line)
	}
	return keyLen, count, nil
}

// readFramed reads n bytes followed by CRLF.
func readFramed(r *bufio.Reader, n int) (string, error) {
	b := make([]byte, n+2)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	if b[n] != '\r' || b[n+1] != '\n' {
		return "", fmt.Errorf("field of length %d not terminated by CRLF", n)
	}
	return string(b[:n]), nil
}

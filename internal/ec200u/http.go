package ec200u

import (
	"fmt"
	"strings"
	"time"
)

const (
	httpUserAgent    = "QuectelEC200U/1.0"
	httpReadTimeout  = 30 * time.Second
	httpReceiveChunk = 1500
)

// Get performs a minimal HTTP GET over the established transparent session
// and returns the raw response text.
func (d *Device) Get(host, path string) (string, error) {
	request := fmt.Sprintf("GET %s HTTP/1.1\r\n"+
		"Host: %s\r\n"+
		"User-Agent: %s\r\n"+
		"Accept: */*\r\n"+
		"Connection: close\r\n\r\n",
		path, host, httpUserAgent)

	if err := d.SendString(request); err != nil {
		return "", err
	}
	return d.readHTTPResponse()
}

// Post performs a minimal HTTP POST over the established transparent session.
func (d *Device) Post(host, path, contentType, body string) (string, error) {
	request := fmt.Sprintf("POST %s HTTP/1.1\r\n"+
		"Host: %s\r\n"+
		"User-Agent: %s\r\n"+
		"Content-Type: %s\r\n"+
		"Content-Length: %d\r\n"+
		"Accept: */*\r\n"+
		"Connection: close\r\n\r\n%s",
		path, host, httpUserAgent, contentType, len(body), body)

	if err := d.SendString(request); err != nil {
		return "", err
	}
	return d.readHTTPResponse()
}

// readHTTPResponse accumulates receives until the response is recognizably
// complete or the overall timeout expires. Without a usable framing header
// completion is never detected and whatever accumulated is returned at the
// deadline.
func (d *Device) readHTTPResponse() (string, error) {
	var response strings.Builder
	deadline := time.Now().Add(httpReadTimeout)

	for time.Now().Before(deadline) {
		rd, err := d.Receive(httpReceiveChunk)
		if rd.Length > 0 {
			response.Write(rd.Data)
			if httpComplete(response.String()) {
				return response.String(), nil
			}
		}
		if err != nil {
			// Peer closed the session; what we have is the full response.
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	if response.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return response.String(), nil
}

// httpComplete reports whether buf holds a complete HTTP response. Once the
// header/body separator is present: with a Content-Length header the body
// must have reached the declared length; with chunked transfer encoding the
// buffer must end in the zero-length final chunk. With neither, completion
// cannot be decided here.
func httpComplete(buf string) bool {
	sep := strings.Index(buf, "\r\n\r\n")
	if sep < 0 {
		return false
	}
	headers := buf[:sep]
	body := buf[sep+4:]

	if v := valueAfter(headers, "Content-Length: "); v != "" {
		return len(body) >= toInt(v)
	}
	if strings.Contains(headers, "Transfer-Encoding: chunked") {
		return strings.HasSuffix(buf, "0\r\n\r\n")
	}
	return false
}

package obfs

import (
	"fmt"
	"strings"

	"ssrlocal/internal/buffer"
)

// httpSimple disguises the first outgoing chunk as an HTTP request
// (or, in the http_post variant, an HTTP POST body) and the first
// chunk it expects back as an HTTP response, stripping the fabricated
// header on decode. Subsequent chunks pass through unchanged — only
// the connection's opening bytes need to look like HTTP.
type httpSimple struct {
	info *ServerInfo

	post bool

	sentHeader bool
	gotHeader  bool
	recvBuf    *buffer.Buffer
}

func newHTTPSimple(post bool) *httpSimple {
	return &httpSimple{post: post, recvBuf: buffer.New(4096)}
}

func (h *httpSimple) SetServerInfo(info *ServerInfo) { h.info = info }

func (h *httpSimple) GetOverhead() int { return 0 }

func (h *httpSimple) ClientEncode(data []byte) ([]byte, error) {
	if h.sentHeader {
		return data, nil
	}
	h.sentHeader = true

	host := h.info.Host
	if host == "" {
		host = "www.bing.com"
	}

	var b strings.Builder
	if h.post {
		fmt.Fprintf(&b, "POST / HTTP/1.1\r\n")
	} else {
		fmt.Fprintf(&b, "GET / HTTP/1.1\r\n")
	}
	fmt.Fprintf(&b, "Host: %s\r\n", host)
	b.WriteString("User-Agent: Mozilla/5.0 (compatible)\r\n")
	b.WriteString("Connection: keep-alive\r\n")
	if h.post {
		fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n", len(data))
	} else {
		b.WriteString("\r\n")
	}

	out := make([]byte, 0, b.Len()+len(data))
	out = append(out, []byte(b.String())...)
	out = append(out, data...)
	return out, nil
}

func (h *httpSimple) ClientDecode(data []byte) ([]byte, bool, error) {
	if h.gotHeader {
		return data, false, nil
	}
	h.recvBuf.Append(data)
	idx := strings.Index(string(h.recvBuf.Bytes()), "\r\n\r\n")
	if idx < 0 {
		// Header not fully arrived yet; hold everything back until it is.
		return nil, false, nil
	}
	h.gotHeader = true
	rest := append([]byte{}, h.recvBuf.Bytes()[idx+4:]...)
	h.recvBuf.Reset()
	return rest, false, nil
}

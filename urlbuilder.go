package ballast

import (
	"fmt"
	"net/url"
	"strings"
)

// URLBuilder assembles an absolute URL from a backend and a caller-supplied
// relative URL, the Go rendering of util.py's UrlBuilder. Scheme defaults
// to "http"; the :port component is omitted when the port equals the
// scheme's default (80 for http, 443 for https); userinfo is included only
// when a username is set.
type URLBuilder struct {
	scheme   string
	username string
	password string
	host     string
	port     *uint16
	path     string
	query    url.Values
	fragment string
}

// NewURLBuilder starts from an empty URL with scheme "http".
func NewURLBuilder() *URLBuilder {
	return &URLBuilder{scheme: "http", query: url.Values{}}
}

// FromURL parses url and returns a URLBuilder with its parts. Round-tripping
// FromURL(u).Build() yields a semantically equal URL (scheme, host, port,
// path, query multimap, fragment).
func FromURL(raw string) (*URLBuilder, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	b := NewURLBuilder()
	b.scheme = u.Scheme
	b.host = u.Hostname()
	b.path = u.Path
	b.fragment = u.Fragment
	b.query = u.Query()
	if u.User != nil {
		b.username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			b.password = pw
		}
	}
	if portStr := u.Port(); portStr != "" {
		var p uint16
		if _, err := fmt.Sscanf(portStr, "%d", &p); err == nil {
			b.port = &p
		}
	}
	return b, nil
}

// FromBackend starts a URLBuilder at the backend's address and port.
func FromBackend(b *Backend) *URLBuilder {
	u := NewURLBuilder()
	u.host = b.Address
	port := b.Port
	u.port = &port
	return u
}

// Scheme sets the scheme ("http" or "https").
func (u *URLBuilder) Scheme(scheme string) *URLBuilder { u.scheme = scheme; return u }

// HTTPS sets the scheme to "https".
func (u *URLBuilder) HTTPS() *URLBuilder { u.scheme = "https"; return u }

// HTTP sets the scheme to "http".
func (u *URLBuilder) HTTP() *URLBuilder { u.scheme = "http"; return u }

// Host sets the hostname or address.
func (u *URLBuilder) Host(host string) *URLBuilder { u.host = host; return u }

// Port sets the port.
func (u *URLBuilder) Port(port uint16) *URLBuilder { u.port = &port; return u }

// Username sets the userinfo username. Userinfo is only rendered when
// non-empty.
func (u *URLBuilder) Username(username string) *URLBuilder { u.username = username; return u }

// Password sets the userinfo password.
func (u *URLBuilder) Password(password string) *URLBuilder { u.password = password; return u }

// Fragment sets the URL fragment.
func (u *URLBuilder) Fragment(fragment string) *URLBuilder { u.fragment = fragment; return u }

// AddQueryParam appends a value for key, preserving insertion order of
// values for that key.
func (u *URLBuilder) AddQueryParam(key, value string) *URLBuilder {
	u.query.Add(key, value)
	return u
}

// RemoveQueryParam removes a single value for key, or every value for key
// if value is empty.
func (u *URLBuilder) RemoveQueryParam(key, value string) *URLBuilder {
	if value == "" {
		u.query.Del(key)
		return u
	}
	existing := u.query[key]
	out := existing[:0]
	for _, v := range existing {
		if v != value {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		u.query.Del(key)
	} else {
		u.query[key] = out
	}
	return u
}

// AppendPath joins relativePath onto the builder's current path, first
// ensuring a trailing '/' separator on the existing path so standard URL
// reference resolution preserves it (matching util.py's append_path).
func (u *URLBuilder) AppendPath(relativePath string) *URLBuilder {
	base := u.path
	if base == "" {
		base = "/"
	} else if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	baseURL := &url.URL{Path: base}
	ref, err := url.Parse(relativePath)
	if err != nil {
		u.path = base
		return u
	}
	resolved := baseURL.ResolveReference(ref)
	u.path = resolved.Path
	if resolved.RawQuery != "" {
		for k, vs := range resolved.Query() {
			for _, v := range vs {
				u.query.Add(k, v)
			}
		}
	}
	return u
}

func (u *URLBuilder) defaultPort() uint16 {
	if u.scheme == "https" {
		return 443
	}
	return 80
}

func (u *URLBuilder) renderHost() string {
	host := u.host
	if u.port != nil && *u.port != u.defaultPort() {
		host = fmt.Sprintf("%s:%d", host, *u.port)
	}
	return host
}

// Build renders the assembled URL.
func (u *URLBuilder) Build() string {
	result := &url.URL{
		Scheme:   u.scheme,
		Host:     u.renderHost(),
		Path:     u.path,
		Fragment: u.fragment,
	}
	if u.username != "" {
		if u.password != "" {
			result.User = url.UserPassword(u.username, u.password)
		} else {
			result.User = url.User(u.username)
		}
	}
	if len(u.query) > 0 {
		result.RawQuery = u.query.Encode()
	}
	return result.String()
}

func (u *URLBuilder) String() string { return u.Build() }

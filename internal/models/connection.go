package models

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// ConnectionRecord is one saved SSH connection. The password is plaintext
// in memory and only protected by the store's outer encryption.
type ConnectionRecord struct {
	Label    string `json:"label"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
}

// Selector identifies a record by its (label, username) pair.
type Selector struct {
	Label    string
	Username string
}

// SelectorFor returns the selector that matches r.
func SelectorFor(r ConnectionRecord) Selector {
	return Selector{Label: r.Label, Username: r.Username}
}

// Matches reports whether r is selected by s.
func (s Selector) Matches(r ConnectionRecord) bool {
	return r.Label == s.Label && r.Username == s.Username
}

// String renders the selector the same way ChoiceFor renders a record.
func (s Selector) String() string {
	return fmt.Sprintf("%s (%s)", s.Label, s.Username)
}

// ChoiceFor returns the picker label for a record: "label (username)".
func ChoiceFor(r ConnectionRecord) string {
	return SelectorFor(r).String()
}

// FindRecord returns the index of the first record matched by s, or -1.
func FindRecord(records []ConnectionRecord, s Selector) int {
	for i, r := range records {
		if s.Matches(r) {
			return i
		}
	}
	return -1
}

// Choices builds picker labels for records and a lookup back to selectors.
// Duplicate labels collapse onto the first matching record.
func Choices(records []ConnectionRecord) ([]string, map[string]Selector) {
	choices := make([]string, 0, len(records))
	lookup := make(map[string]Selector, len(records))

	for _, r := range records {
		choice := ChoiceFor(r)
		if _, seen := lookup[choice]; seen {
			continue
		}
		choices = append(choices, choice)
		lookup[choice] = SelectorFor(r)
	}

	return choices, lookup
}

// Validation errors for ConnectionRecord.
var (
	ErrEmptyLabel    = errors.New("label is required")
	ErrEmptyUsername = errors.New("username is required")
	ErrEmptyHost     = errors.New("host is required")
	ErrInvalidHost   = errors.New("invalid host")
)

// Validate checks that the record can be stored and connected to.
func (r ConnectionRecord) Validate() error {
	if strings.TrimSpace(r.Label) == "" {
		return ErrEmptyLabel
	}
	if strings.TrimSpace(r.Username) == "" {
		return ErrEmptyUsername
	}
	if strings.TrimSpace(r.Host) == "" {
		return ErrEmptyHost
	}
	if strings.ContainsAny(r.Username, " \t\r\n@") {
		return fmt.Errorf("username %q: must not contain whitespace or '@'", r.Username)
	}
	if _, _, err := SplitHostPort(r.Host, 22); err != nil {
		return err
	}
	return nil
}

// SplitHostPort parses "host", "host:port", "[v6]:port" or a bare IPv6
// address. Hostnames are converted to their ASCII (punycode) form.
func SplitHostPort(hostport string, defaultPort int) (string, int, error) {
	hostport = strings.TrimSpace(hostport)

	host, port := hostport, defaultPort
	if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
		return ip.String(), port, nil
	}

	if strings.Contains(hostport, ":") {
		h, p, err := net.SplitHostPort(hostport)
		if err != nil {
			return "", 0, fmt.Errorf("%w %q: %v", ErrInvalidHost, hostport, err)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return "", 0, fmt.Errorf("%w %q: bad port %q", ErrInvalidHost, hostport, p)
		}
		host, port = h, n
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), port, nil
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil || ascii == "" {
		return "", 0, fmt.Errorf("%w %q", ErrInvalidHost, host)
	}

	return ascii, port, nil
}

package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/August26/proxyscout/internal/model"
)

// ErrInvalidFormat is returned for any line that is not host:port.
var ErrInvalidFormat = errors.New("invalid format")

// LoadFromFile reads a file line by line and returns the non-blank lines,
// trimmed. Malformed lines are kept: they are reported as failed outcomes
// later so the totals match the input.
func LoadFromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	lines, err := Lines(f)
	if err != nil {
		return nil, fmt.Errorf("scan input file: %w", err)
	}
	return lines, nil
}

// Lines returns the trimmed, non-blank lines of r.
func Lines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Parse turns a single line into a Candidate of the given protocol.
//
// Supported:
//
//	host:port
//	scheme://host:port   (scheme is one of http, socks4, socks5)
func Parse(line string, p model.Protocol) (model.Candidate, error) {
	s := stripScheme(strings.TrimSpace(line))

	host, port, err := splitHostPort(s)
	if err != nil {
		return model.Candidate{}, fmt.Errorf("%w: %q: %v", ErrInvalidFormat, line, err)
	}
	return model.Candidate{
		Host:     host,
		Port:     port,
		Protocol: p,
	}, nil
}

func stripScheme(s string) string {
	for _, p := range model.Protocols {
		prefix := string(p) + "://"
		if len(s) > len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			return s[len(prefix):]
		}
	}
	return s
}

// splitHostPort splits on the first ':' only, so "a:b:c" fails on the port.
func splitHostPort(s string) (string, int, error) {
	host, portStr, ok := strings.Cut(s, ":")
	if !ok {
		return "", 0, errors.New("missing port")
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "", 0, errors.New("empty host")
	}

	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	if port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("port %d out of range", port)
	}
	return host, port, nil
}

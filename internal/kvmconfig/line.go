// Package kvmconfig parses the agent's single-line configuration format: 11
// whitespace-separated tokens describing the relay endpoint, tenant,
// optional proxy, and session identity.
package kvmconfig

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const tokenCount = 11

var ErrMalformedLine = errors.New("kvmconfig: expected 11 whitespace-separated tokens")

// Line is the decoded form of the 11-token configuration line (§6).
type Line struct {
	ServerURL     string // token 1: server URL, with scheme
	Port          int    // token 2
	Tenant        string // token 3
	ProxyHost     string // token 4
	ProxyPort     string // token 5
	Reserved1     string // token 6
	Reserved2     string // token 7
	UseProxy      bool   // token 8: "proxy"|"none"
	UUID          string // token 9
	ProxyAuth     string // token 10: optional proxy auth
	NoAuth        bool   // token 11: "isNoAuth"|other
}

// Parse decodes a single configuration line into its 11 tokens.
func Parse(line string) (Line, error) {
	fields := strings.Fields(line)
	if len(fields) != tokenCount {
		return Line{}, fmt.Errorf("%w: got %d", ErrMalformedLine, len(fields))
	}

	port, err := strconv.Atoi(fields[1])
	if err != nil {
		return Line{}, fmt.Errorf("kvmconfig: invalid port %q: %w", fields[1], err)
	}

	return Line{
		ServerURL: fields[0],
		Port:      port,
		Tenant:    fields[2],
		ProxyHost: fields[3],
		ProxyPort: fields[4],
		Reserved1: fields[5],
		Reserved2: fields[6],
		UseProxy:  fields[7] == "proxy",
		UUID:      fields[8],
		ProxyAuth: fields[9],
		NoAuth:    fields[10] == "isNoAuth",
	}, nil
}

// Encode serializes back to the 11-token line format.
func (l Line) Encode() string {
	proxyFlag := "none"
	if l.UseProxy {
		proxyFlag = "proxy"
	}
	noAuth := "false"
	if l.NoAuth {
		noAuth = "isNoAuth"
	}
	return strings.Join([]string{
		l.ServerURL,
		strconv.Itoa(l.Port),
		l.Tenant,
		l.ProxyHost,
		l.ProxyPort,
		l.Reserved1,
		l.Reserved2,
		proxyFlag,
		l.UUID,
		l.ProxyAuth,
		noAuth,
	}, " ")
}

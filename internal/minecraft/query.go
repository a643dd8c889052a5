package minecraft

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/mcstatus-io/mcutil/v4/query"
)

const queryTimeout = 5 * time.Second

// Status is the full-stat answer of a Minecraft server.
type Status struct {
	MOTD       string
	Version    string
	Map        string
	NumPlayers int
	MaxPlayers int
	Players    []string
}

// Query reads server status over the UDP query protocol (enable-query=true).
type Query struct {
	host string
	port uint16
}

// NewQuery creates a query client for addr ("host:port").
func NewQuery(addr string) (*Query, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("query address %q: %w", addr, err)
	}
	port, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("query port %q: %w", p, err)
	}
	return &Query{host: host, port: uint16(port)}, nil
}

// Status performs a full stat request.
func (q *Query) Status(ctx context.Context) (*Status, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := query.Full(ctx, q.host, q.port)
	if err != nil {
		return nil, fmt.Errorf("query %s:%d: %w", q.host, q.port, err)
	}
	return statusFromStat(res.Data, res.Players)
}

// statusFromStat converts the full-stat key/value section and player list.
func statusFromStat(values map[string]string, players []string) (*Status, error) {
	st := &Status{
		MOTD:    values["hostname"],
		Version: values["version"],
		Map:     values["map"],
	}
	var err error
	if st.NumPlayers, err = strconv.Atoi(values["numplayers"]); err != nil {
		return nil, fmt.Errorf("query numplayers: %w", err)
	}
	if st.MaxPlayers, err = strconv.Atoi(values["maxplayers"]); err != nil {
		return nil, fmt.Errorf("query maxplayers: %w", err)
	}
	for _, name := range players {
		if name != "" {
			st.Players = append(st.Players, name)
		}
	}
	return st, nil
}

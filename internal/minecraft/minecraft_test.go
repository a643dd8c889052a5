package minecraft

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorcon/rcon"
	"github.com/gorcon/rcon/rcontest"
)

func TestValidPlayerName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Notch", true},
		{"steve_123", true},
		{"abc", true},
		{"ab", false},
		{"a_really_long_name", false},
		{"bad name", false},
		{"semi;colon", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidPlayerName(tt.name); got != tt.want {
			t.Errorf("ValidPlayerName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello", "hello"},
		{"line one\nline two", "line one line two"},
		{"  §4red§r text ", "4redr text"},
		{"bell\x07", "bell"},
		{strings.Repeat("x", 300), strings.Repeat("x", 253) + "..."},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in); got != tt.want {
			t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func newRCONServer(t *testing.T) (*rcontest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var commands []string
	server := rcontest.NewServer(
		rcontest.SetSettings(rcontest.Settings{Password: "secret"}),
		rcontest.SetCommandHandler(func(c *rcontest.Context) {
			body := c.Request().Body()
			mu.Lock()
			commands = append(commands, body)
			mu.Unlock()

			reply := ""
			if name, ok := strings.CutPrefix(body, "whitelist add "); ok {
				reply = "Added " + name + " to the whitelist"
			}
			rcon.NewPacket(rcon.SERVERDATA_RESPONSE_VALUE, c.Request().ID, reply).WriteTo(c.Conn()) //nolint:errcheck // test server
		}),
	)
	t.Cleanup(server.Close)
	return server, &commands
}

func TestRCON_WhitelistAdd(t *testing.T) {
	server, commands := newRCONServer(t)
	r := NewRCON(server.Addr(), "secret", nil)

	out, err := r.WhitelistAdd(context.Background(), "Notch")
	if err != nil {
		t.Fatalf("WhitelistAdd() error = %v", err)
	}
	if out != "Added Notch to the whitelist" {
		t.Errorf("WhitelistAdd() = %q", out)
	}
	if len(*commands) != 1 || (*commands)[0] != "whitelist add Notch" {
		t.Errorf("server received %v", *commands)
	}
}

func TestRCON_WhitelistAddRejectsInvalidName(t *testing.T) {
	server, commands := newRCONServer(t)
	r := NewRCON(server.Addr(), "secret", nil)

	_, err := r.WhitelistAdd(context.Background(), "x; op me")
	if !errors.Is(err, ErrInvalidPlayerName) {
		t.Errorf("WhitelistAdd() error = %v, want ErrInvalidPlayerName", err)
	}
	if len(*commands) != 0 {
		t.Errorf("invalid name reached the server: %v", *commands)
	}
}

func TestRCON_Say(t *testing.T) {
	server, commands := newRCONServer(t)
	r := NewRCON(server.Addr(), "secret", nil)

	if err := r.Say(context.Background(), "[Discord] alex: hi\nthere"); err != nil {
		t.Fatalf("Say() error = %v", err)
	}
	if len(*commands) != 1 || (*commands)[0] != "say [Discord] alex: hi there" {
		t.Errorf("server received %v", *commands)
	}
}

func TestRCON_WrongPassword(t *testing.T) {
	server, _ := newRCONServer(t)
	r := NewRCON(server.Addr(), "wrong", nil)
	if _, err := r.Execute(context.Background(), "list"); err == nil {
		t.Error("Execute() should fail with a wrong password")
	}
}

func TestRCON_Unreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close() //nolint:errcheck,gosec // only need a free port

	if _, err := NewRCON(addr, "secret", nil).Execute(context.Background(), "list"); err == nil {
		t.Error("Execute() should fail when nothing listens")
	}
}

const (
	typeHandshake = 0x09
	typeStat      = 0x00
)

var (
	statPadding   = []byte("splitnum\x00\x80\x00")
	playerSection = []byte("\x01player_\x00\x00")
)

// fakeQueryServer answers handshake and full stat requests like a vanilla server.
func fakeQueryServer(t *testing.T, players []string) string {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck,gosec // test cleanup

	const token = "9513307"
	go func() {
		buf := make([]byte, 1500)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			if n < 7 || buf[0] != 0xFE || buf[1] != 0xFD {
				continue
			}
			session := buf[3:7]
			var resp []byte
			switch buf[2] {
			case typeHandshake:
				resp = append([]byte{typeHandshake}, session...)
				resp = append(resp, token+"\x00"...)
			case typeStat:
				if n != 15 || binary.BigEndian.Uint32(buf[7:11]) != 9513307 {
					continue
				}
				resp = append([]byte{typeStat}, session...)
				resp = append(resp, statPadding...)
				kv := []string{
					"hostname", "A Minecraft Server",
					"gametype", "SMP",
					"game_id", "MINECRAFT",
					"version", "1.21.1",
					"plugins", "",
					"map", "world",
					"numplayers", "2",
					"maxplayers", "20",
					"hostport", "25565",
					"hostip", "127.0.0.1",
				}
				for _, s := range kv {
					resp = append(resp, s+"\x00"...)
				}
				resp = append(resp, 0)
				resp = append(resp, playerSection...)
				for _, p := range players {
					resp = append(resp, p+"\x00"...)
				}
				resp = append(resp, 0)
			default:
				continue
			}
			conn.WriteTo(resp, addr) //nolint:errcheck,gosec // test server
		}
	}()
	return conn.LocalAddr().String()
}

func TestQuery_Status(t *testing.T) {
	addr := fakeQueryServer(t, []string{"Notch", "jeb_"})

	q, err := NewQuery(addr)
	if err != nil {
		t.Fatal(err)
	}
	st, err := q.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.NumPlayers != 2 || st.MaxPlayers != 20 {
		t.Errorf("Status() players = %d/%d, want 2/20", st.NumPlayers, st.MaxPlayers)
	}
	if len(st.Players) != 2 || st.Players[0] != "Notch" || st.Players[1] != "jeb_" {
		t.Errorf("Status() names = %v", st.Players)
	}
	if st.MOTD != "A Minecraft Server" || st.Version != "1.21.1" || st.Map != "world" {
		t.Errorf("Status() = %+v", st)
	}
}

func TestQuery_StatusNoPlayers(t *testing.T) {
	addr := fakeQueryServer(t, nil)

	q, err := NewQuery(addr)
	if err != nil {
		t.Fatal(err)
	}
	st, err := q.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(st.Players) != 0 {
		t.Errorf("Status() names = %v, want none", st.Players)
	}
}

func TestQuery_Unreachable(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := conn.LocalAddr().String()
	conn.Close() //nolint:errcheck,gosec // only need a free port

	q, err := NewQuery(addr)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := q.Status(ctx); err == nil {
		t.Error("Status() should fail when nothing answers")
	}
}

func TestNewQuery_BadAddress(t *testing.T) {
	for _, addr := range []string{"mc.example.com", "mc.example.com:99999", "mc.example.com:query"} {
		if _, err := NewQuery(addr); err == nil {
			t.Errorf("NewQuery(%q) should fail", addr)
		}
	}
}

func TestStatusFromStat(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		players []string
		wantErr bool
	}{
		{"complete", map[string]string{"numplayers": "1", "maxplayers": "20", "hostname": "A"}, []string{"Notch", ""}, false},
		{"empty", nil, nil, true},
		{"bad numbers", map[string]string{"numplayers": "x", "maxplayers": "20"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := statusFromStat(tt.values, tt.players)
			if (err != nil) != tt.wantErr {
				t.Fatalf("statusFromStat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (len(st.Players) != 1 || st.MOTD != "A") {
				t.Errorf("statusFromStat() = %+v", st)
			}
		})
	}
}

package discord

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func channelOpt(name, id string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionChannel,
		Value: id,
	}
}

func stringOpt(name, v string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: v,
	}
}

// intOpt mirrors the gateway payload, where integers decode as float64.
func intOpt(name string, v float64) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionInteger,
		Value: v,
	}
}

func TestSlashCommandHandler_Dispatch(t *testing.T) {
	tests := []struct {
		name     string
		data     discordgo.ApplicationCommandInteractionData
		wantCall string
	}{
		{
			name: "set server channel",
			data: discordgo.ApplicationCommandInteractionData{
				Name:    "set_server_channel",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{channelOpt("channel", "111")},
			},
			wantCall: "set_server_channel 111",
		},
		{
			name: "github with interval",
			data: discordgo.ApplicationCommandInteractionData{
				Name: "set_githubupdate_channel",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					stringOpt("repo", "owner/repo"),
					channelOpt("channel", "222"),
					intOpt("poll_interval_seconds", 300),
				},
			},
			wantCall: "set_githubupdate_channel owner/repo 222 300",
		},
		{
			name: "github without interval",
			data: discordgo.ApplicationCommandInteractionData{
				Name: "set_githubupdate_channel",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					stringOpt("repo", "owner/repo"),
					channelOpt("channel", "222"),
				},
			},
			wantCall: "set_githubupdate_channel owner/repo 222 0",
		},
		{
			name:     "disable github",
			data:     discordgo.ApplicationCommandInteractionData{Name: "disable_github"},
			wantCall: "disable_github",
		},
		{
			name:     "show config",
			data:     discordgo.ApplicationCommandInteractionData{Name: "show_config"},
			wantCall: "show_config",
		},
		{
			name: "change prefix",
			data: discordgo.ApplicationCommandInteractionData{
				Name:    "change_prefix",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{stringOpt("prefix", "!")},
			},
			wantCall: "change_prefix !",
		},
		{
			name: "cleanup retention only",
			data: discordgo.ApplicationCommandInteractionData{
				Name:    "set_cleanup",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{intOpt("retention_hours", 0)},
			},
			wantCall: "set_cleanup 0 -",
		},
		{
			name: "countdown",
			data: discordgo.ApplicationCommandInteractionData{
				Name: "set_countdown",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					stringOpt("target_iso", "2025-12-31T17:00"),
					channelOpt("channel", "333"),
					stringOpt("timezone_name", "Europe/Berlin"),
				},
			},
			wantCall: "set_countdown 2025-12-31T17:00 333 Europe/Berlin",
		},
		{
			name:     "disable countdown",
			data:     discordgo.ApplicationCommandInteractionData{Name: "disable_countdown"},
			wantCall: "disable_countdown",
		},
		{
			name: "countdown role",
			data: discordgo.ApplicationCommandInteractionData{
				Name: "set_countdown_role",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{{
					Name:  "role",
					Type:  discordgo.ApplicationCommandOptionRole,
					Value: "444",
				}},
			},
			wantCall: "set_countdown_role 444",
		},
		{
			name:     "disable countdown role",
			data:     discordgo.ApplicationCommandInteractionData{Name: "disable_countdown_role"},
			wantCall: "disable_countdown_role",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admin := &mockAdmin{}
			h := NewSlashCommandHandler(nil, admin, nil)

			reply, err := h.dispatch(context.Background(), tt.data)
			if err != nil {
				t.Fatalf("dispatch() error = %v", err)
			}
			if len(admin.Calls) != 1 || admin.Calls[0] != tt.wantCall {
				t.Errorf("admin calls = %v, want [%s]", admin.Calls, tt.wantCall)
			}
			if reply != "ok "+tt.wantCall {
				t.Errorf("dispatch() reply = %q", reply)
			}
		})
	}
}

func TestSlashCommandHandler_DispatchErrors(t *testing.T) {
	h := NewSlashCommandHandler(nil, &mockAdmin{}, nil)
	if _, err := h.dispatch(context.Background(), discordgo.ApplicationCommandInteractionData{Name: "goose"}); err == nil {
		t.Error("dispatch() should reject unknown commands")
	}

	want := errors.New("prefix too long")
	h = NewSlashCommandHandler(nil, &mockAdmin{Err: want}, nil)
	_, err := h.dispatch(context.Background(), discordgo.ApplicationCommandInteractionData{
		Name:    "change_prefix",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{stringOpt("prefix", "toolong")},
	})
	if !errors.Is(err, want) {
		t.Errorf("dispatch() error = %v, want %v", err, want)
	}
}

func TestCommands(t *testing.T) {
	cmds := Commands()
	if len(cmds) != 10 {
		t.Fatalf("Commands() returned %d commands, want 10", len(cmds))
	}

	seen := make(map[string]bool)
	for _, cmd := range cmds {
		if seen[cmd.Name] {
			t.Errorf("duplicate command %s", cmd.Name)
		}
		seen[cmd.Name] = true

		if cmd.DefaultMemberPermissions == nil {
			t.Errorf("command %s has no default permissions", cmd.Name)
			continue
		}
		want := int64(discordgo.PermissionManageServer)
		if cmd.Name == "set_countdown_role" || cmd.Name == "disable_countdown_role" {
			want = discordgo.PermissionAdministrator
		}
		if *cmd.DefaultMemberPermissions != want {
			t.Errorf("command %s permissions = %d, want %d", cmd.Name, *cmd.DefaultMemberPermissions, want)
		}
	}
}

// Package format provides chat message formatting for Discord and Minecraft.
package format

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is Discord's content limit for a single message.
const MaxMessageLength = 2000

// Pull request action emoji.
const (
	EmojiOpened   = "\U0001F195" // 🆕
	EmojiMerged   = "\U0001F680" // 🚀
	EmojiClosed   = "\u274C"     // ❌
	EmojiReopened = "\U0001F504" // 🔄
	EmojiUnknown  = "\U0001F4EF" // 📯 (postal horn)
)

// Commit describes one commit relayed to Discord.
type Commit struct {
	Author  string
	Message string
	URL     string
}

// CommitMessage formats a commit as "[GitHub] author: message\nurl".
func CommitMessage(c Commit) string {
	author := c.Author
	if author == "" {
		author = "?"
	}
	suffix := "\n" + c.URL
	head := fmt.Sprintf("[GitHub] %s: ", author)
	body := Truncate(c.Message, MaxMessageLength-utf8.RuneCountInString(head)-utf8.RuneCountInString(suffix))
	return head + body + suffix
}

// PullRequest describes a pull request event relayed to Discord.
type PullRequest struct {
	Repo   string
	Action string
	Title  string
	Author string
	URL    string
	Number int
	Merged bool
}

// PullRequestEmoji returns the emoji for a pull request action.
func PullRequestEmoji(p PullRequest) string {
	switch {
	case p.Action == "closed" && p.Merged:
		return EmojiMerged
	case p.Action == "closed":
		return EmojiClosed
	case p.Action == "opened":
		return EmojiOpened
	case p.Action == "reopened":
		return EmojiReopened
	default:
		return EmojiUnknown
	}
}

// PullRequestMessage formats a pull request event.
// Format: emoji [GitHub] repo#123 merged · Title · author\nurl
func PullRequestMessage(p PullRequest) string {
	action := p.Action
	if action == "closed" && p.Merged {
		action = "merged"
	}

	var sb strings.Builder
	sb.WriteString(PullRequestEmoji(p))
	sb.WriteString(" [GitHub] ")
	fmt.Fprintf(&sb, "%s#%d %s", p.Repo, p.Number, action)
	sb.WriteString(" · ")
	sb.WriteString(Truncate(p.Title, 100))
	if p.Author != "" {
		sb.WriteString(" · ")
		sb.WriteString(p.Author)
	}
	sb.WriteString("\n")
	sb.WriteString(p.URL)
	return sb.String()
}

// EventMessage formats a generic repository event as "[GitHub] type: url".
func EventMessage(eventType, url string) string {
	return fmt.Sprintf("[GitHub] %s: %s", eventType, url)
}

// DiscordToMinecraft formats a Discord chat line for the Minecraft console.
func DiscordToMinecraft(author, content string) string {
	return fmt.Sprintf("[Discord] %s: %s", author, content)
}

// MinecraftToDiscord formats a Minecraft chat line for Discord.
func MinecraftToDiscord(player, message string) string {
	return Truncate(fmt.Sprintf("[MC] %s: %s", player, message), MaxMessageLength)
}

// PlayerList formats the reply to a status query.
func PlayerList(online, maxPlayers int, players []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Server is online with %d/%d players:", online, maxPlayers)
	for _, p := range players {
		sb.WriteString("\n\t")
		sb.WriteString(p)
	}
	return Truncate(sb.String(), MaxMessageLength)
}

// CodeBlock wraps text in a fenced code block, truncating it to fit one message.
func CodeBlock(lang, text string) string {
	const fence = "```"
	overhead := 2*len(fence) + len(lang) + 2
	text = strings.TrimRight(text, "\n")
	return fence + lang + "\n" + Truncate(text, MaxMessageLength-overhead) + "\n" + fence
}

// Truncate truncates a string to maxLen runes, adding "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

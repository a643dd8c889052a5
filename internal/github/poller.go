package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/google/go-github/v50/github"

	"github.com/codeGROOVE-dev/mcbridge/internal/config"
	"github.com/codeGROOVE-dev/mcbridge/internal/format"
	"github.com/codeGROOVE-dev/mcbridge/internal/metrics"
)

const commitsPerPage = 30

// ErrInvalidRepo is returned for repository names not of the form owner/repo.
var ErrInvalidRepo = errors.New("invalid repository, expected owner/repo")

// Poster posts relayed messages to a channel.
type Poster interface {
	PostMessage(ctx context.Context, channelID, content string) (string, error)
}

// SettingsSource provides the current settings.
type SettingsSource interface {
	Settings() config.Settings
}

// SplitRepo splits "owner/repo".
func SplitRepo(full string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(full), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepo, full)
	}
	return owner, repo, nil
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	Clients  ClientSource
	Settings SettingsSource
	Poster   Poster
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	// PushActive disables polling while a webhook or event stream delivers updates.
	PushActive bool
}

// Poller relays new commits of the configured repository.
type Poller struct {
	clients    ClientSource
	settings   SettingsSource
	poster     Poster
	logger     *slog.Logger
	metrics    *metrics.Metrics
	stopCh     chan struct{}
	repo       string // repository lastSHA belongs to
	lastSHA    string
	wg         sync.WaitGroup
	mu         sync.Mutex
	stopOnce   sync.Once
	pushActive bool
}

// NewPoller creates a commit poller.
func NewPoller(cfg PollerConfig) *Poller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		clients:    cfg.Clients,
		settings:   cfg.Settings,
		poster:     cfg.Poster,
		logger:     logger,
		metrics:    cfg.Metrics,
		pushActive: cfg.PushActive,
		stopCh:     make(chan struct{}),
	}
}

// Start begins polling.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Go(func() {
		p.run(ctx)
	})
}

// Stop stops polling and waits for the current poll to finish.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
}

// Reset forgets the last seen commit; the next poll only records the newest one.
func (p *Poller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSHA = ""
}

func (p *Poller) run(ctx context.Context) {
	for {
		n, err := p.Poll(ctx)
		if err != nil {
			p.logger.Warn("github poll failed", "error", err, "posted", n)
		}

		timer := time.NewTimer(p.settings.Settings().PollInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-p.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Poll fetches the newest commits once and posts those not seen before, oldest first.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	s := p.settings.Settings()
	if s.GitHubRepo == "" || s.GitHubUpdatesChannelID == "" {
		p.logger.Debug("github relay not configured")
		return 0, nil
	}
	if p.pushActive {
		return 0, nil
	}

	owner, name, err := SplitRepo(s.GitHubRepo)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.repo != s.GitHubRepo {
		p.repo = s.GitHubRepo
		p.lastSHA = ""
	}

	commits, err := p.fetch(ctx, owner, name)
	if err != nil {
		return 0, err
	}
	if len(commits) == 0 {
		return 0, nil
	}

	newest := commits[0].GetSHA()
	if p.lastSHA == "" {
		p.lastSHA = newest
		p.logger.Info("recorded newest commit", "repo", s.GitHubRepo, "sha", newest)
		return 0, nil
	}
	if newest == p.lastSHA {
		return 0, nil
	}

	var fresh []*github.RepositoryCommit
	for _, c := range commits {
		if c.GetSHA() == p.lastSHA {
			break
		}
		fresh = append(fresh, c)
	}

	posted := 0
	for i := len(fresh) - 1; i >= 0; i-- {
		c := fresh[i]
		msg := format.CommitMessage(format.Commit{
			Author:  c.GetCommit().GetAuthor().GetName(),
			Message: c.GetCommit().GetMessage(),
			URL:     c.GetHTMLURL(),
		})
		if _, err := p.poster.PostMessage(ctx, s.GitHubUpdatesChannelID, msg); err != nil {
			p.metrics.Relayed("poll", posted)
			return posted, fmt.Errorf("post commit %s: %w", c.GetSHA(), err)
		}
		p.lastSHA = c.GetSHA()
		posted++
	}

	p.metrics.Relayed("poll", posted)
	return posted, nil
}

func (p *Poller) fetch(ctx context.Context, owner, name string) ([]*github.RepositoryCommit, error) {
	client, err := p.clients.ClientForRepo(ctx, owner, name)
	if err != nil {
		return nil, err
	}

	var commits []*github.RepositoryCommit
	err = retry.Do(
		func() error {
			var err error
			commits, _, err = client.Repositories.ListCommits(ctx, owner, name, &github.CommitsListOptions{
				ListOptions: github.ListOptions{PerPage: commitsPerPage},
			})
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
	)
	if err != nil {
		return nil, fmt.Errorf("list commits of %s/%s: %w", owner, name, err)
	}
	return commits, nil
}

// retryable reports whether a GitHub API error may succeed on a later attempt.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return false
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode >= http.StatusInternalServerError
	}
	return true
}

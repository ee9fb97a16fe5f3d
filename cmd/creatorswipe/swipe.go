package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/creatorswipe/internal/catalog"
	"github.com/kalambet/creatorswipe/internal/config"
	"github.com/kalambet/creatorswipe/internal/feed"
	"github.com/kalambet/creatorswipe/internal/profile"
	"github.com/kalambet/creatorswipe/internal/swipe"
)

var swipeCmd = &cobra.Command{
	Use:   "swipe",
	Short: "Swipe through the profile feed in the terminal",
	Long: `Swipe through the profile feed in the terminal.

The feed is the server's listing, preceded by any profiles from --local.
Decisions are posted to the server in the background; pending ones are
sent before the command exits.

Commands:
  l            like the current profile
  r            reject the current profile
  d <dx> <ms>  simulate a drag of dx units released after ms milliseconds
  s            show the current profile
  f            re-fetch the listing
  q            quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		localFile, _ := cmd.Flags().GetString("local")
		policyName, _ := cmd.Flags().GetString("policy")
		if policyName == "" {
			policyName = cfg.Swipe.EndPolicy
		}
		policy, err := swipe.ParseEndPolicy(policyName)
		if err != nil {
			return err
		}

		var local []profile.Record
		if localFile != "" {
			local, err = loadLocalProfiles(localFile)
			if err != nil {
				return err
			}
		}

		client := &apiClient{
			baseURL:    serverURL(cfg.Server.Host, cfg.Server.Port),
			httpClient: &http.Client{Timeout: 30 * time.Second},
		}
		listing := cfg.Feed.ListingURL
		if listing == "" {
			listing = client.baseURL + "/api/profiles"
		}
		source := feed.NewSource(feed.NewHTTPFetcher(listing, client.httpClient), cfg.Feed.FetchTimeout)

		s := &swiper{
			poster: newDecisionPoster(client),
			source: source,
			local:  local,
			out:    cmd.OutOrStdout(),
		}
		s.engine = swipe.New(source.Load(cmd.Context(), local), s.poster,
			swipe.WithThreshold(cfg.Swipe.VelocityThreshold),
			swipe.WithEndPolicy(policy),
		)
		return s.run(cmd.Context(), cmd.InOrStdin())
	},
}

func init() {
	swipeCmd.Flags().String("local", "", "YAML file of extra profiles shown first")
	swipeCmd.Flags().String("policy", "", "what happens after the last profile: wrap or stop")
}

func loadLocalProfiles(path string) ([]profile.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading local profiles: %w", err)
	}
	drafts, err := catalog.ParseDrafts(data)
	if err != nil {
		return nil, err
	}
	return profile.NewManager(nil).Local(drafts)
}

// swiper drives a local engine from line commands.
type swiper struct {
	engine *swipe.Engine
	poster *decisionPoster
	source *feed.Source
	local  []profile.Record
	out    io.Writer
}

const (
	decisionQueueSize   = 64
	decisionPostTimeout = 5 * time.Second
)

// decisionPoster is the engine's sink. Deliver only enqueues; a single
// goroutine posts decisions to the server in order, so a slow server never
// stalls the prompt.
type decisionPoster struct {
	client *apiClient
	queue  chan swipe.DecisionEvent
	done   chan struct{}
	once   sync.Once
}

func newDecisionPoster(client *apiClient) *decisionPoster {
	p := &decisionPoster{
		client: client,
		queue:  make(chan swipe.DecisionEvent, decisionQueueSize),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

// Deliver queues a decision. When the queue is full the decision is
// reported and dropped.
func (p *decisionPoster) Deliver(ev swipe.DecisionEvent) {
	select {
	case p.queue <- ev:
	default:
		printWarning("decision not recorded: %s %s (queue full)", ev.Decision, ev.ProfileID)
	}
}

func (p *decisionPoster) loop() {
	defer close(p.done)
	for ev := range p.queue {
		if err := p.post(ev); err != nil {
			printWarning("decision not recorded: %v", err)
		}
	}
}

func (p *decisionPoster) post(ev swipe.DecisionEvent) error {
	if p.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), decisionPostTimeout)
	defer cancel()
	resp, err := p.client.post(ctx, "/api/decisions", map[string]any{
		"profileId": ev.ProfileID,
		"decision":  ev.Decision,
		"at":        ev.At,
	})
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}

// Close stops accepting decisions and waits for queued ones to be posted.
func (p *decisionPoster) Close() {
	p.once.Do(func() { close(p.queue) })
	<-p.done
}

func (s *swiper) run(ctx context.Context, in io.Reader) error {
	defer s.poster.Close()
	s.show()
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		quit, err := s.exec(ctx, strings.Fields(scanner.Text()))
		if err != nil {
			printError("%v", err)
		}
		if quit {
			return nil
		}
	}
}

// exec runs one command line. It returns true when the session should end.
func (s *swiper) exec(ctx context.Context, fields []string) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}
	switch strings.ToLower(fields[0]) {
	case "q", "quit", "exit":
		return true, nil
	case "l", "like":
		return false, s.decide(swipe.Like)
	case "r", "reject":
		return false, s.decide(swipe.Reject)
	case "d", "drag":
		if len(fields) != 3 {
			return false, errors.New("usage: d <dx> <ms>")
		}
		dx, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return false, fmt.Errorf("invalid dx %q", fields[1])
		}
		ms, err := strconv.ParseFloat(fields[2], 64)
		if err != nil || ms <= 0 {
			return false, fmt.Errorf("invalid duration %q", fields[2])
		}
		return false, s.drag(dx, ms)
	case "s", "show":
		s.show()
		return false, nil
	case "f", "refresh":
		s.engine.SetFeed(s.source.Load(ctx, s.local))
		s.show()
		return false, nil
	case "h", "help", "?":
		fmt.Fprintln(s.out, "l like, r reject, d <dx> <ms> drag, s show, f refresh, q quit")
		return false, nil
	}
	return false, fmt.Errorf("unknown command %q (h for help)", fields[0])
}

func (s *swiper) decide(d swipe.Decision) error {
	ev, err := s.engine.Decide(d)
	if err != nil {
		return err
	}
	s.report(ev)
	s.show()
	return nil
}

func (s *swiper) drag(dx, ms float64) error {
	if err := s.engine.Start(0, 0, 0); err != nil {
		return err
	}
	s.engine.Move(dx, 0, ms)
	out, err := s.engine.End(dx, 0, ms, 0)
	if err != nil {
		return err
	}
	if !out.Swiped {
		fmt.Fprintf(s.out, "snapped back (velocity %.2f, threshold %.2f)\n", out.Velocity, s.engine.Threshold())
		return nil
	}
	s.report(*out.Event)
	s.show()
	return nil
}

func (s *swiper) report(ev swipe.DecisionEvent) {
	if ev.Decision == swipe.Like {
		fmt.Fprintln(s.out, colorize(colorGreen, "liked "+ev.ProfileID))
		return
	}
	fmt.Fprintln(s.out, colorize(colorRed, "rejected "+ev.ProfileID))
}

func (s *swiper) show() {
	snap := s.engine.Snapshot()
	switch {
	case snap.Total == 0:
		fmt.Fprintln(s.out, "No profiles yet. Create one with `creatorswipe profiles create`.")
		return
	case snap.Exhausted:
		fmt.Fprintln(s.out, "No more profiles.")
		return
	}
	r := snap.Current
	fmt.Fprintf(s.out, "\n[%d/%d] %s\n", snap.Cursor+1, snap.Total, colorize(colorBold, r.Name))
	fmt.Fprintf(s.out, "  %s\n", colorize(colorCyan, r.Project))
	fmt.Fprintf(s.out, "  %s\n", r.Description)
	if r.HasVideo() {
		fmt.Fprintf(s.out, "  video: %s\n", r.VideoURL)
	}
	if len(r.Tags) > 0 {
		fmt.Fprintf(s.out, "  tags: %s\n", strings.Join(r.Tags, ", "))
	}
}

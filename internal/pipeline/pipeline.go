// Package pipeline drives one validation run through its stages:
// Parsing → Deduplicating → Probing → Classifying → Published.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/suprohub/novaprox/internal/dedup"
	"github.com/suprohub/novaprox/internal/model"
	"github.com/suprohub/novaprox/internal/parser"
	"github.com/suprohub/novaprox/internal/subscription"
)

type State string

const (
	StateIdle          State = "idle"
	StateParsing       State = "parsing"
	StateDeduplicating State = "deduplicating"
	StateProbing       State = "probing"
	StateClassifying   State = "classifying"
	StatePublished     State = "published"
	StateAborted       State = "aborted"
)

// ErrCancelled aborts the run before anything is published.
var ErrCancelled = errors.New("run cancelled")

// Coordinator runs the probe fan-out stage.
type Coordinator interface {
	Run(ctx context.Context, endpoints []*model.Endpoint, workers int, timeout time.Duration) model.ProbeBatch
}

// Publisher writes the final subscription set.
type Publisher interface {
	Publish(set *subscription.Set) error
}

// Summary is reported after every run, even when the result set is empty.
type Summary struct {
	Lines        int
	Parsed       int
	ParseErrors  int
	Deduplicated int
	Probed       int
	SpawnErrors  int
	Succeeded    map[model.Protocol]int
}

func (s *Summary) Total() int {
	total := 0
	for _, n := range s.Succeeded {
		total += n
	}
	return total
}

func (s *Summary) String() string {
	return fmt.Sprintf(
		"novaprox run: %d lines, %d parsed (%d parse errors), %d after dedup, %d probed, %d alive (vless %d, vmess %d, shadowsocks %d, trojan %d)",
		s.Lines, s.Parsed, s.ParseErrors, s.Deduplicated, s.Probed, s.Total(),
		s.Succeeded[model.ProtocolVLESS], s.Succeeded[model.ProtocolVMess],
		s.Succeeded[model.ProtocolShadowsocks], s.Succeeded[model.ProtocolTrojan],
	)
}

type Pipeline struct {
	coord Coordinator
	pub   Publisher

	// OnProbing, when set, is told how many endpoints enter the probing
	// stage (drives CLI progress rendering).
	OnProbing func(total int)

	state State
}

func New(coord Coordinator, pub Publisher) *Pipeline {
	return &Pipeline{coord: coord, pub: pub, state: StateIdle}
}

// State reports the stage the last Run reached.
func (p *Pipeline) State() State {
	return p.state
}

func (p *Pipeline) enter(s State) {
	p.state = s
	slog.Info("stage", "state", s)
}

// Run consumes the feed and publishes the surviving endpoints. Per-line and
// per-endpoint failures never abort the run; only a cancelled context or a
// failed publish does. The summary is valid even on an empty feed.
func (p *Pipeline) Run(ctx context.Context, lines <-chan string, workers int, timeout time.Duration) (*Summary, error) {
	summary := &Summary{Succeeded: make(map[model.Protocol]int)}

	p.enter(StateParsing)
	var endpoints []*model.Endpoint
	for line := range lines {
		summary.Lines++
		e, err := parser.Parse(line)
		if err != nil {
			summary.ParseErrors++
			slog.Debug("line skipped", "error", err)
			continue
		}
		endpoints = append(endpoints, e)
	}
	summary.Parsed = len(endpoints)

	p.enter(StateDeduplicating)
	endpoints = dedup.Apply(endpoints)
	summary.Deduplicated = len(endpoints)
	slog.Info("deduplicated", "kept", summary.Deduplicated, "dropped", summary.Parsed-summary.Deduplicated)

	p.enter(StateProbing)
	if p.OnProbing != nil {
		p.OnProbing(len(endpoints))
	}
	batch := p.coord.Run(ctx, endpoints, workers, timeout)
	summary.Probed = len(batch)
	for _, res := range batch {
		if res.Reason == model.FailureProcessSpawn {
			summary.SpawnErrors++
		}
	}
	if summary.SpawnErrors > 0 && summary.SpawnErrors == summary.Probed {
		slog.Warn("every probe failed to spawn the proxy runtime; check SING_BOX_PATH")
	}

	if ctx.Err() != nil {
		p.enter(StateAborted)
		return summary, ErrCancelled
	}

	p.enter(StateClassifying)
	set := subscription.Build(batch)
	for proto, group := range set.Groups {
		summary.Succeeded[proto] = len(group)
	}

	if err := p.pub.Publish(set); err != nil {
		p.enter(StateAborted)
		return summary, fmt.Errorf("publish: %w", err)
	}

	p.enter(StatePublished)
	return summary, nil
}

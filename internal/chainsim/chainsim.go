// Package chainsim serves simulated multi-chain payment data.
//
// Balances, bridge routes, DeFi protocol listings and Yellow Network
// clearing balances are loaded from YAML fixtures, so the agent can be
// exercised end to end without touching a real RPC endpoint. Reads go
// through a configurable artificial latency to mimic network calls.
package chainsim

import (
	_ "embed"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// ErrClosed is returned by all reads after Close.
var ErrClosed = errors.New("chainsim: simulator closed")

// ErrNoRoute is returned when no route fixture matches a query and no
// fallback can be synthesized.
var ErrNoRoute = errors.New("chainsim: no route found")

// Balance is a single token holding.
type Balance struct {
	Token  string  `yaml:"token" json:"token"`
	Amount float64 `yaml:"amount" json:"amount"`
	USD    float64 `yaml:"usd" json:"usd"`
}

// ChainBalance groups holdings on one chain.
type ChainBalance struct {
	Chain    string    `yaml:"chain" json:"chain"`
	Holdings []Balance `yaml:"holdings" json:"holdings"`
}

// BalanceReport is the aggregated multi-chain view for one address.
type BalanceReport struct {
	Address  string         `json:"address"`
	Chains   []ChainBalance `json:"chains"`
	TotalUSD float64        `json:"totalUsd"`
}

// RouteHop is one step of a cross-chain route.
type RouteHop struct {
	Protocol string  `yaml:"protocol" json:"protocol"`
	Action   string  `yaml:"action" json:"action"`
	Chain    string  `yaml:"chain" json:"chain"`
	FeeUSD   float64 `yaml:"feeUsd" json:"feeUsd"`
}

// Route is a cross-chain transfer plan.
type Route struct {
	FromChain  string     `yaml:"fromChain" json:"fromChain"`
	ToChain    string     `yaml:"toChain" json:"toChain"`
	Token      string     `yaml:"token" json:"token"`
	Hops       []RouteHop `yaml:"hops" json:"hops"`
	TotalFee   float64    `yaml:"feeUsd" json:"totalFeeUsd"`
	EstSeconds int        `yaml:"seconds" json:"estimatedSeconds"`
}

// Protocol is a DeFi protocol listing.
type Protocol struct {
	Name     string  `yaml:"name" json:"name"`
	Chain    string  `yaml:"chain" json:"chain"`
	Category string  `yaml:"category" json:"category"`
	TVLUSD   float64 `yaml:"tvlUsd" json:"tvlUsd"`
	APY      float64 `yaml:"apy" json:"apyPercent"`
}

// YellowAccount is the state-channel clearing balance on Yellow Network.
type YellowAccount struct {
	Address   string  `json:"address"`
	Token     string  `yaml:"token" json:"token"`
	Available float64 `yaml:"available" json:"available"`
	Locked    float64 `yaml:"locked" json:"locked"`
	Channels  int     `yaml:"channels" json:"channels"`
}

// Fixtures is the on-disk shape of the simulated dataset.
type Fixtures struct {
	Balances  []ChainBalance `yaml:"balances"`
	Routes    []Route        `yaml:"routes"`
	Protocols []Protocol     `yaml:"protocols"`
	Yellow    YellowAccount  `yaml:"yellow"`
}

// Simulator answers chain queries from fixture data.
//
// The simulator owns all timers it starts; Close releases any
// in-flight waits and makes further reads fail with ErrClosed.
type Simulator struct {
	fixtures Fixtures
	latency  time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLatency sets the artificial read latency.
func WithLatency(d time.Duration) Option {
	return func(s *Simulator) { s.latency = d }
}

// WithFixturesFile replaces the embedded fixtures with a YAML file.
func WithFixturesFile(path string) Option {
	return func(s *Simulator) {
		data, err := os.ReadFile(path)
		if err != nil {
			return
		}
		var f Fixtures
		if yaml.Unmarshal(data, &f) == nil {
			s.fixtures = f
		}
	}
}

// New creates a Simulator from the embedded fixtures.
func New(opts ...Option) (*Simulator, error) {
	var f Fixtures
	if err := yaml.Unmarshal(defaultFixtures, &f); err != nil {
		return nil, fmt.Errorf("parsing embedded fixtures: %w", err)
	}
	s := &Simulator{fixtures: f, closed: make(chan struct{})}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewFromFile creates a Simulator from a YAML fixtures file.
func NewFromFile(path string, opts ...Option) (*Simulator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures: %w", err)
	}
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixtures %s: %w", path, err)
	}
	s := &Simulator{fixtures: f, closed: make(chan struct{})}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Chains lists the chain names present in the fixtures, in fixture
// order. It reads no clock and never fails.
func (s *Simulator) Chains() []string {
	chains := make([]string, 0, len(s.fixtures.Balances))
	for _, cb := range s.fixtures.Balances {
		chains = append(chains, cb.Chain)
	}
	return chains
}

// Close releases all in-flight waits. Safe to call more than once.
func (s *Simulator) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// Balances reports holdings for address across all fixture chains.
func (s *Simulator) Balances(ctx context.Context, address string) (BalanceReport, error) {
	if err := s.wait(ctx); err != nil {
		return BalanceReport{}, err
	}
	report := BalanceReport{Address: address, Chains: s.fixtures.Balances}
	for _, c := range report.Chains {
		for _, h := range c.Holdings {
			report.TotalUSD += h.USD
		}
	}
	return report, nil
}

// FindRoute plans a cross-chain transfer of token from one chain to
// another. When no fixture matches, a Yellow Network clearing route is
// synthesized as the fallback.
func (s *Simulator) FindRoute(ctx context.Context, fromChain, toChain, token string, amount float64) (Route, error) {
	if err := s.wait(ctx); err != nil {
		return Route{}, err
	}
	if strings.EqualFold(fromChain, toChain) {
		return Route{}, fmt.Errorf("%w: %s and %s are the same chain", ErrNoRoute, fromChain, toChain)
	}
	for _, r := range s.fixtures.Routes {
		if strings.EqualFold(r.FromChain, fromChain) &&
			strings.EqualFold(r.ToChain, toChain) &&
			strings.EqualFold(r.Token, token) {
			return r, nil
		}
	}
	// No direct bridge fixture: settle through Yellow Network state
	// channels, which clears any token pair off-chain.
	return Route{
		FromChain: fromChain,
		ToChain:   toChain,
		Token:     token,
		Hops: []RouteHop{
			{Protocol: "Yellow Network", Action: "open-channel", Chain: fromChain, FeeUSD: 0.10},
			{Protocol: "Yellow Network", Action: "clear", Chain: toChain, FeeUSD: 0.05},
		},
		TotalFee:   0.15,
		EstSeconds: 8,
	}, nil
}

// Protocols lists DeFi protocols, optionally filtered by chain.
func (s *Simulator) Protocols(ctx context.Context, chain string) ([]Protocol, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if chain == "" {
		return s.fixtures.Protocols, nil
	}
	var out []Protocol
	for _, p := range s.fixtures.Protocols {
		if strings.EqualFold(p.Chain, chain) {
			out = append(out, p)
		}
	}
	return out, nil
}

// YellowBalance reports the clearing balance for address.
func (s *Simulator) YellowBalance(ctx context.Context, address string) (YellowAccount, error) {
	if err := s.wait(ctx); err != nil {
		return YellowAccount{}, err
	}
	acct := s.fixtures.Yellow
	acct.Address = address
	return acct, nil
}

func (s *Simulator) wait(ctx context.Context) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	if s.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return ErrClosed
	case <-timer.C:
		return nil
	}
}

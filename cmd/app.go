package cmd

import (
	"fmt"

	"github.com/yellowpay/payagent/internal/agent"
	"github.com/yellowpay/payagent/internal/chainsim"
	"github.com/yellowpay/payagent/internal/config"
	"github.com/yellowpay/payagent/internal/invocation"
	"github.com/yellowpay/payagent/internal/prompt"
	"github.com/yellowpay/payagent/internal/session"
	"github.com/yellowpay/payagent/internal/storage"
	"github.com/yellowpay/payagent/internal/tools"
	"github.com/yellowpay/payagent/internal/wallet"
)

// demoWalletAddress is the connected wallet identity used by the mock
// signer and the simulated chain fixtures.
const demoWalletAddress = "0x7f3A91b5C2E8d4F6a0B9c8D7E6f5A4b3C2d1E0f9"

// app bundles the long-lived components shared by the serve and chat
// commands. Close releases them in reverse construction order.
type app struct {
	cfg      *config.Config
	store    *storage.Store
	sim      *chainsim.Simulator
	registry *tools.Registry
	system   string
}

func newApp(overrides configOverrides) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if overrides.model != "" {
		cfg.Model = overrides.model
	}
	if overrides.baseURL != "" {
		cfg.BaseURL = overrides.baseURL
	}
	if overrides.maxTokens != nil {
		cfg.Generation.MaxTokens = overrides.maxTokens
	}
	if overrides.temperature != nil {
		cfg.Generation.Temperature = overrides.temperature
	}
	if overrides.systemPromptPath != "" {
		cfg.SystemPromptPath = overrides.systemPromptPath
	}
	if overrides.dbPath != "" {
		cfg.DBPath = overrides.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	simOpts := []chainsim.Option{chainsim.WithLatency(cfg.ToolLatency)}
	var sim *chainsim.Simulator
	if cfg.FixturesPath != "" {
		sim, err = chainsim.NewFromFile(cfg.FixturesPath, simOpts...)
	} else {
		sim, err = chainsim.New(simOpts...)
	}
	if err != nil {
		return nil, fmt.Errorf("starting chain simulator: %w", err)
	}

	signer := &wallet.MockSigner{Latency: cfg.ToolLatency}
	registry, err := tools.NewPaymentRegistry(signer, sim)
	if err != nil {
		sim.Close()
		return nil, fmt.Errorf("building tool registry: %w", err)
	}

	system, err := prompt.Render(cfg.SystemPromptPath, prompt.Data{
		WalletAddress: demoWalletAddress,
		Chains:        sim.Chains(),
	})
	if err != nil {
		sim.Close()
		return nil, fmt.Errorf("rendering system prompt: %w", err)
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		sim.Close()
		return nil, fmt.Errorf("opening conversation database: %w", err)
	}

	return &app{cfg: cfg, store: store, sim: sim, registry: registry, system: system}, nil
}

// newLoop builds a fresh tool loop around a new provider generator.
// Each chat turn or HTTP request gets its own executor, so the loop is
// built per call rather than once per process.
func (a *app) newLoop(exec *invocation.Executor, hooks agent.Hooks) (session.Generator, error) {
	base, err := agent.NewGenerator(a.cfg, a.system)
	if err != nil {
		return nil, err
	}
	loop, err := agent.NewToolLoop(base, a.registry, exec, a.cfg.MaxToolSteps, hooks,
		agent.WithRetry(a.cfg.MaxRetries, a.cfg.RequestTimeout))
	if err != nil {
		return nil, err
	}
	return loop, nil
}

func (a *app) Close() {
	a.store.Close()
	a.sim.Close()
}

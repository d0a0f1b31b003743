// Command kerneld is the local operator entrypoint for the kernel: a
// thin kong CLI that boots one in-process Kernel and drives it
// directly. It is not the boundary-only HTTP/CLI façade product the
// kernel treats as an external collaborator — just the smallest
// runnable way to bring a kernel up on one machine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/forgebound/kernel/config"
	"github.com/forgebound/kernel/kernel"
	"github.com/forgebound/kernel/telemetry"
)

// Exit codes per the operator CLI contract.
const (
	ExitOK            = 0
	ExitGeneralFailure = 1
	ExitNoDaemon       = 2
	ExitAuthFailure    = 3
	ExitConfigError    = 4
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

type CLI struct {
	Config string `short:"c" help:"Path to kernel.toml." type:"path" default:"kernel.toml"`

	Start  StartCmd  `cmd:"" help:"Boot the kernel and block until terminated."`
	Status StatusCmd `cmd:"" help:"Show supervisor/lane/health status."`
	Agent  AgentCmd  `cmd:"" help:"Manage agents."`
	Skill  SkillCmd  `cmd:"" help:"Manage installed skills."`
	Config_ ConfigCmd `cmd:"config" help:"Inspect configuration."`
	Usage  UsageCmd  `cmd:"" help:"List agents and their lifecycle states."`
	Audit  AuditCmd  `cmd:"" help:"Inspect the audit log."`
	Doctor DoctorCmd `cmd:"" help:"Run startup diagnostics."`
}

func loadKernel(configPath string) (*kernel.Kernel, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, &exitError{code: ExitConfigError, err: err}
	}
	k, err := kernel.Boot(cfg)
	if err != nil {
		return nil, &exitError{code: ExitConfigError, err: err}
	}
	return k, nil
}

// StartCmd boots the kernel and blocks until SIGINT/SIGTERM.
type StartCmd struct{}

func (c *StartCmd) Run(cli *CLI) error {
	k, err := loadKernel(cli.Config)
	if err != nil {
		return err
	}

	tcfg := k.Config.Global.Tracing
	if _, err := telemetry.Init(context.Background(), telemetry.Config{
		Enabled:      tcfg.Enabled,
		EndpointURL:  tcfg.EndpointURL,
		SamplingRate: tcfg.SamplingRate,
		ServiceName:  tcfg.ServiceName,
	}); err != nil {
		k.Logger.Warn("tracing disabled", "error", err)
	}

	k.Logger.Info("kernel started", "agents_configured", len(k.Config.Agents))

	watcher, err := config.NewWatcher(cli.Config, k.Logger, k.ApplyMutableConfig)
	if err != nil {
		k.Logger.Warn("config hot-reload disabled", "error", err)
	} else {
		defer watcher.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		k.Logger.Info("shutdown signal received")
		k.Shutdown()
		cancel()
	}()

	<-ctx.Done()
	k.Logger.Info("kernel stopped")
	return nil
}

// StatusCmd reports supervisor health and lane occupancy.
type StatusCmd struct{}

func (c *StatusCmd) Run(cli *CLI) error {
	k, err := loadKernel(cli.Config)
	if err != nil {
		return err
	}
	health := k.Supervisor.HealthSnapshot()
	fmt.Printf("shutting_down=%v panics=%d restarts=%d\n", health.IsShuttingDown, health.PanicCount, health.RestartCount)
	for _, occ := range k.Lanes.Occupancy() {
		fmt.Printf("lane=%s active=%d capacity=%d\n", occ.Lane, occ.Active, occ.Capacity)
	}
	return nil
}

// AgentCmd is the agent management command group.
type AgentCmd struct {
	List AgentListCmd `cmd:"" help:"List registered agents."`
	Find AgentFindCmd `cmd:"" help:"Find agents by name/description/tag."`
	Kill AgentKillCmd `cmd:"" help:"Terminate an agent."`
}

type AgentListCmd struct{}

func (c *AgentListCmd) Run(cli *CLI) error {
	k, err := loadKernel(cli.Config)
	if err != nil {
		return err
	}
	for _, info := range k.List() {
		fmt.Printf("%s\t%s\t%s\n", info.ID, info.Name, info.State)
	}
	return nil
}

type AgentFindCmd struct {
	Query string `arg:"" help:"Substring to match against name, description, tags."`
}

func (c *AgentFindCmd) Run(cli *CLI) error {
	k, err := loadKernel(cli.Config)
	if err != nil {
		return err
	}
	for _, info := range k.Find(c.Query) {
		fmt.Printf("%s\t%s\t%s\n", info.ID, info.Name, strings.Join(info.Tags, ","))
	}
	return nil
}

type AgentKillCmd struct {
	ID string `arg:"" help:"Agent ID to terminate."`
}

func (c *AgentKillCmd) Run(cli *CLI) error {
	k, err := loadKernel(cli.Config)
	if err != nil {
		return err
	}
	if err := k.KillAgent(c.ID); err != nil {
		return &exitError{code: ExitGeneralFailure, err: err}
	}
	return nil
}

// SkillCmd is a placeholder surface: skill marketplace installation is
// explicitly out of scope for the kernel itself (see spec §1), so both
// subcommands report that rather than pretending to do anything.
type SkillCmd struct {
	Install   SkillInstallCmd   `cmd:"" help:"Install a skill (not implemented by the kernel core)."`
	Uninstall SkillUninstallCmd `cmd:"" help:"Uninstall a skill (not implemented by the kernel core)."`
}

type SkillInstallCmd struct {
	Name string `arg:""`
}

func (c *SkillInstallCmd) Run(cli *CLI) error {
	return &exitError{code: ExitGeneralFailure, err: fmt.Errorf("skill installation is handled by an external marketplace collaborator, not kerneld")}
}

type SkillUninstallCmd struct {
	Name string `arg:""`
}

func (c *SkillUninstallCmd) Run(cli *CLI) error {
	return &exitError{code: ExitGeneralFailure, err: fmt.Errorf("skill installation is handled by an external marketplace collaborator, not kerneld")}
}

// ConfigCmd inspects the loaded configuration.
type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" help:"Print the resolved configuration."`
}

type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run(cli *CLI) error {
	k, err := loadKernel(cli.Config)
	if err != nil {
		return err
	}
	fmt.Printf("name=%s agents=%d lanes(main=%d,cron=%d,subagent=%d)\n",
		k.Config.Name, len(k.Config.Agents), k.Config.Global.Lanes.Main, k.Config.Global.Lanes.Cron, k.Config.Global.Lanes.Subagent)
	return nil
}

// UsageCmd lists each registered agent's ID and lifecycle state; it
// does not print quota spend.
type UsageCmd struct{}

func (c *UsageCmd) Run(cli *CLI) error {
	k, err := loadKernel(cli.Config)
	if err != nil {
		return err
	}
	for _, info := range k.List() {
		fmt.Printf("%s\t%s\n", info.ID, info.State)
	}
	return nil
}

// AuditCmd inspects the hash-chained audit log.
type AuditCmd struct {
	Recent AuditRecentCmd `cmd:"" help:"Show the most recent audit entries."`
}

type AuditRecentCmd struct {
	N int `help:"Number of entries to show." default:"20"`
}

func (c *AuditRecentCmd) Run(cli *CLI) error {
	k, err := loadKernel(cli.Config)
	if err != nil {
		return err
	}
	for _, e := range k.Audit.Recent(c.N) {
		fmt.Printf("seq=%d agent=%s action=%s outcome=%s\n", e.Seq, e.AgentID, e.Action, e.Outcome)
	}
	return nil
}

// DoctorCmd runs startup diagnostics: config validity, audit chain
// integrity, and a one-shot health check of every configured
// integration.
type DoctorCmd struct{}

func (c *DoctorCmd) Run(cli *CLI) error {
	k, err := loadKernel(cli.Config)
	if err != nil {
		return err
	}
	if integrityErr := k.Audit.VerifyIntegrity(); integrityErr != nil {
		return &exitError{code: ExitGeneralFailure, err: integrityErr}
	}
	fmt.Println("config: ok")
	fmt.Println("audit chain: ok")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, rec := range k.CheckIntegrations(ctx) {
		fmt.Printf("integration %s: %s\n", rec.Name, rec.Status)
	}
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("kerneld"),
		kong.Description("Local agent operating system kernel."),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	if err == nil {
		os.Exit(ExitOK)
	}

	var ee *exitError
	if as, ok := err.(*exitError); ok {
		ee = as
	} else {
		ee = &exitError{code: ExitGeneralFailure, err: err}
	}
	fmt.Fprintln(os.Stderr, "error:", ee.err)
	os.Exit(ee.code)
}

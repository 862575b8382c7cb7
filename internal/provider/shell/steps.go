// Package shell sets up zsh for the sudo user: oh-my-zsh, theme, managed
// alias and env blocks, and the login shell.
package shell

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/felixgeelhaar/vpsctl/internal/domain/precondition"
	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
	"github.com/felixgeelhaar/vpsctl/internal/provider/commandutil"
)

// Installer locations.
const (
	OhMyZshInstallURL = "https://raw.githubusercontent.com/ohmyzsh/ohmyzsh/master/tools/install.sh"
	ZshPath           = "/usr/bin/zsh"
)

// Account identifies the user whose shell is configured.
type Account struct {
	Name string
	Home string
}

func (a Account) zshrc() string {
	return path.Join(a.Home, ".zshrc")
}

// OhMyZshStep runs the oh-my-zsh installer unattended as the user.
type OhMyZshStep struct {
	id      step.StepID
	account Account
	script  string
	fs      ports.FileSystem
	runner  ports.CommandRunner
}

// NewOhMyZshStep creates a new OhMyZshStep.
func NewOhMyZshStep(account Account, fs ports.FileSystem, runner ports.CommandRunner) *OhMyZshStep {
	return &OhMyZshStep{
		id:      step.MustNewStepID("shell:oh-my-zsh:" + account.Name),
		account: account,
		script:  "/tmp/vpsctl-oh-my-zsh-install.sh",
		fs:      fs,
		runner:  runner,
	}
}

// ID returns the step identifier.
func (s *OhMyZshStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *OhMyZshStep) Idempotent() bool {
	return true
}

// Check looks for ~/.oh-my-zsh.
func (s *OhMyZshStep) Check(ctx step.RunContext) (step.Status, error) {
	return precondition.Status(ctx.Context(), precondition.FileExists(s.fs, path.Join(s.account.Home, ".oh-my-zsh")))
}

// Apply downloads the installer and runs it without switching shells.
func (s *OhMyZshStep) Apply(ctx step.RunContext) error {
	if _, err := commandutil.Run(ctx.Context(), s.runner, "curl", "-fsSL", "-o", s.script, OhMyZshInstallURL); err != nil {
		return fmt.Errorf("download oh-my-zsh installer: %w", err)
	}
	defer func() { _ = s.fs.Remove(s.script) }()

	_, err := commandutil.RunAsWithEnv(ctx.Context(), s.runner, s.account.Name, s.account.Home,
		[]string{"RUNZSH=no", "CHSH=no"}, "sh", s.script, "--unattended")
	return err
}

// Explain provides a human-readable explanation.
func (s *OhMyZshStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Install oh-my-zsh",
		fmt.Sprintf("Runs the oh-my-zsh installer as %s with --unattended.", s.account.Name),
		[]string{"https://ohmyz.sh/"},
	)
}

// ThemeStep selects the oh-my-zsh theme.
type ThemeStep struct {
	id      step.StepID
	account Account
	theme   string
	fs      ports.FileSystem
	runner  ports.CommandRunner
}

// NewThemeStep creates a new ThemeStep.
func NewThemeStep(account Account, theme string, fs ports.FileSystem, runner ports.CommandRunner) *ThemeStep {
	return &ThemeStep{
		id:      step.MustNewStepID("shell:theme:" + account.Name),
		account: account,
		theme:   theme,
		fs:      fs,
		runner:  runner,
	}
}

// ID returns the step identifier.
func (s *ThemeStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *ThemeStep) Idempotent() bool {
	return true
}

// Check reads the ZSH_THEME line.
func (s *ThemeStep) Check(_ step.RunContext) (step.Status, error) {
	content, err := readOptional(s.fs, s.account.zshrc())
	if err != nil {
		return step.StatusUnknown, err
	}
	if hasTheme(content, s.theme) {
		return step.StatusSatisfied, nil
	}
	return step.StatusNeedsApply, nil
}

// Apply rewrites the theme line.
func (s *ThemeStep) Apply(ctx step.RunContext) error {
	content, err := readOptional(s.fs, s.account.zshrc())
	if err != nil {
		return err
	}
	return writeZshrc(ctx, s.fs, s.runner, s.account, setTheme(content, s.theme))
}

// Explain provides a human-readable explanation.
func (s *ThemeStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Set zsh theme",
		fmt.Sprintf("Sets ZSH_THEME=%q in %s.", s.theme, s.account.zshrc()),
		[]string{"https://github.com/ohmyzsh/ohmyzsh/wiki/Themes"},
	)
}

// BlockStep keeps the managed alias and env blocks of .zshrc current.
type BlockStep struct {
	id      step.StepID
	account Account
	aliases string
	env     string
	fs      ports.FileSystem
	runner  ports.CommandRunner
}

// NewBlockStep creates a new BlockStep.
func NewBlockStep(account Account, aliases, env map[string]string, fs ports.FileSystem, runner ports.CommandRunner) *BlockStep {
	return &BlockStep{
		id:      step.MustNewStepID("shell:block:" + account.Name),
		account: account,
		aliases: generateAliasBlock(aliases),
		env:     generateEnvBlock(env),
		fs:      fs,
		runner:  runner,
	}
}

// ID returns the step identifier.
func (s *BlockStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *BlockStep) Idempotent() bool {
	return true
}

// Check compares both blocks.
func (s *BlockStep) Check(_ step.RunContext) (step.Status, error) {
	content, err := readOptional(s.fs, s.account.zshrc())
	if err != nil {
		return step.StatusUnknown, err
	}
	if ReadManagedBlock(content, "aliases") == s.aliases && ReadManagedBlock(content, "env") == s.env {
		return step.StatusSatisfied, nil
	}
	return step.StatusNeedsApply, nil
}

// Apply writes both blocks.
func (s *BlockStep) Apply(ctx step.RunContext) error {
	content, err := readOptional(s.fs, s.account.zshrc())
	if err != nil {
		return err
	}
	content = WriteManagedBlock(content, "aliases", s.aliases)
	content = WriteManagedBlock(content, "env", s.env)
	return writeZshrc(ctx, s.fs, s.runner, s.account, content)
}

// Explain provides a human-readable explanation.
func (s *BlockStep) Explain(ctx step.ExplainContext) step.Explanation {
	detail := fmt.Sprintf("Maintains the vpsctl aliases and env blocks in %s.", s.account.zshrc())
	if ctx.Verbose() {
		detail += "\n" + s.aliases + s.env
	}
	return step.NewExplanation("Manage shell aliases and env", detail, nil)
}

// LoginShellStep makes zsh the user's login shell.
type LoginShellStep struct {
	id     step.StepID
	name   string
	shell  string
	runner ports.CommandRunner
}

// NewLoginShellStep creates a new LoginShellStep.
func NewLoginShellStep(name string, runner ports.CommandRunner) *LoginShellStep {
	return &LoginShellStep{
		id:     step.MustNewStepID("shell:login-shell:" + name),
		name:   name,
		shell:  ZshPath,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *LoginShellStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *LoginShellStep) Idempotent() bool {
	return true
}

// Check reads the shell field of the passwd entry.
func (s *LoginShellStep) Check(ctx step.RunContext) (step.Status, error) {
	result, err := commandutil.Run(ctx.Context(), s.runner, "getent", "passwd", s.name)
	if err != nil {
		return step.StatusUnknown, err
	}
	fields := strings.Split(strings.TrimSpace(result.Stdout), ":")
	if len(fields) == 7 && fields[6] == s.shell {
		return step.StatusSatisfied, nil
	}
	return step.StatusNeedsApply, nil
}

// Apply runs chsh.
func (s *LoginShellStep) Apply(ctx step.RunContext) error {
	_, err := commandutil.Run(ctx.Context(), s.runner, "chsh", "-s", s.shell, s.name)
	return err
}

// Explain provides a human-readable explanation.
func (s *LoginShellStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Set login shell",
		fmt.Sprintf("Sets the login shell of %s to %s.", s.name, s.shell),
		nil,
	)
}

// readOptional returns "" for a missing file.
func readOptional(fs ports.FileSystem, p string) (string, error) {
	data, err := fs.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	return string(data), nil
}

func writeZshrc(ctx step.RunContext, fs ports.FileSystem, runner ports.CommandRunner, account Account, content string) error {
	if err := fs.WriteFile(account.zshrc(), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", account.zshrc(), err)
	}
	return commandutil.Chown(ctx.Context(), runner, account.Name, account.zshrc())
}

var (
	_ step.Step = (*OhMyZshStep)(nil)
	_ step.Step = (*ThemeStep)(nil)
	_ step.Step = (*BlockStep)(nil)
	_ step.Step = (*LoginShellStep)(nil)
)

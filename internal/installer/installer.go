// Package installer makes sure the lm-sensors tool is present on Linux hosts.
package installer

import (
	"codeberg.org/mutker/coreprobe/internal/errors"
	"codeberg.org/mutker/coreprobe/internal/execution"
	"codeberg.org/mutker/coreprobe/internal/logger"
)

const (
	ErrSudoRequired   = errors.ErrorCode("installer_sudo_required")
	ErrInstallFailed  = errors.ErrorCode("installer_install_failed")
	sensorsCommand    = "sensors"
	sensorsPackage    = "lm-sensors"
	sudoRequiredError = "Sudo privileges are required to install `lm-sensors`. Please run with sudo or contact your system administrator."
)

type Installer struct {
	runner execution.Runner
	isRoot func() bool
	log    logger.Logger
}

func New(runner execution.Runner) *Installer {
	return &Installer{
		runner: runner,
		isRoot: isRoot,
		log:    logger.WithComponent("installer"),
	}
}

// EnsureSensors is shorthand for New(runner).EnsureSensors().
func EnsureSensors(runner execution.Runner) error {
	return New(runner).EnsureSensors()
}

// EnsureSensors installs lm-sensors with apt-get when the sensors command
// is missing. Non-root users need passwordless sudo.
func (i *Installer) EnsureSensors() error {
	if i.available(sensorsCommand) {
		i.log.Info().Msg("`sensors` command is already installed")
		return nil
	}

	i.log.Info().Msg("`sensors` command not found, attempting to install")

	root := i.isRoot()
	if !root && !i.hasSudo() {
		i.log.Warn().Msg(sudoRequiredError)
		return errors.New().WithMessage(ErrSudoRequired, sudoRequiredError)
	}

	command, args := "apt-get", []string{"install", "-y", sensorsPackage}
	if !root {
		command, args = "sudo", append([]string{"apt-get"}, args...)
	}

	if _, err := i.runner.Execute(command, args...); err != nil {
		i.log.Error().Err(err).Msg("`lm-sensors` installation failed")
		return errors.New().Wrap(ErrInstallFailed, err)
	}

	i.log.Info().Msg("`lm-sensors` successfully installed")
	return nil
}

func (i *Installer) available(command string) bool {
	if _, err := i.runner.Execute("which", command); err != nil {
		i.log.Debug().Err(err).Str("command", command).Msg("Command not available")
		return false
	}
	return true
}

func (i *Installer) hasSudo() bool {
	if _, err := i.runner.Execute("sudo", "-n", "true"); err != nil {
		i.log.Error().Err(err).Msg("Failed to check sudo access")
		return false
	}
	return true
}

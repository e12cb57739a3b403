// rigtool builds rigs from fixtures and moves animations and rig exports
// through the transport formats understood by the authoring tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/rigbridge/internal/bridge"
	"github.com/Faultbox/rigbridge/internal/config"
	"github.com/Faultbox/rigbridge/internal/engine/host"
	"github.com/Faultbox/rigbridge/internal/logger"
	"github.com/Faultbox/rigbridge/internal/session"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	logger.Sync()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app carries the loaded configuration to the subcommands.
type app struct {
	overrides config.Overrides
	cfg       *config.Config
	root      string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "rigtool",
		Short:         "Build rigs and convert animation payloads",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(&a.overrides)
			if err != nil {
				return err
			}
			a.cfg = cfg
			if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			logger.Debug("config loaded",
				zap.Int("max_depth", cfg.Rig.MaxDepth),
				zap.Bool("deform", cfg.Rig.DeformBones),
				zap.Bool("text_mode", cfg.Transport.TextMode))
			return nil
		},
	}
	a.overrides.Register(root.PersistentFlags())
	root.PersistentFlags().StringVar(&a.root, "root", "", "Root part name (default: detected)")

	root.AddCommand(
		a.newTreeCmd(),
		a.newEncodeCmd(),
		a.newDecodeCmd(),
		a.newPlayCmd(),
		a.newBaseNCmd(),
		a.newPushCmd(),
		a.newPullCmd(),
		a.newServeCmd(),
		a.newConfigCmd(),
	)
	return root
}

// openRig loads a rig fixture and selects it in a new session.
func (a *app) openRig(path string, withClient bool) (*session.Session, error) {
	w, model, err := host.LoadWorldFile(path)
	if err != nil {
		return nil, err
	}
	var client *bridge.Client
	if withClient {
		client = bridge.New(a.cfg.Bridge.Host, a.cfg.Bridge.Timeout)
	}
	s := session.New(w, a.cfg, client)
	if err := s.SelectRig(model.Ref, a.root); err != nil {
		return nil, fmt.Errorf("building rig from %s: %w", path, err)
	}
	return s, nil
}

// Package cli implements the qactl command line: setup verification, one-shot
// questions and a terminal chat.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/yanqian/offlineqa/internal/infra/config"
	"github.com/yanqian/offlineqa/pkg/logger"
)

const rootLongDesc string = `qactl answers farming questions from a local Q&A dataset.

Everything runs offline: questions are embedded locally and matched against
the dataset with a nearest-neighbour search.

  qactl verify            Check dataset, embedder and index
  qactl ask "<question>"  Answer a single question
  qactl chat              Start an interactive chat`

const rootShortDesc string = "qactl - offline Q&A assistant"

type rootOptions struct {
	configPath string
	debug      bool
}

// NewRootCmd builds the qactl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "qactl",
		Short:        rootShortDesc,
		Long:         rootLongDesc,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (defaults to CONFIG_PATH or configs/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging")

	cmd.AddCommand(newVerifyCmd(opts))
	cmd.AddCommand(newAskCmd(opts))
	cmd.AddCommand(newChatCmd(opts))

	return cmd
}

// load reads config and builds a logger on stderr. Logs stay at error level
// unless --debug is set so they do not interleave with answers.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFrom(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	level := "error"
	if o.debug {
		level = "debug"
	}
	return cfg, logger.NewWithWriter(os.Stderr, level), nil
}

/*
 * MIT License
 *
 * Copyright (c) 2022-2025 Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tochemey/distro/config"
	"github.com/tochemey/distro/log"
	"github.com/tochemey/distro/node"
)

var (
	configPath string
	logLevel   string
	natsURL    string
	peers      []string
)

// runCmd starts a member and blocks until SIGINT or SIGTERM
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a distro member",
	RunE:  runMember,
}

func runMember(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := log.New(cfg.LogLevel(), os.Stdout)
	defer func() { _ = logger.Sync() }()

	member, err := node.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	if err := member.Start(cmd.Context()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return member.Stop(stopCtx)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var opts []config.Option
	if cmd.Flags().Changed("log-level") {
		opts = append(opts, config.WithLogLevel(logLevel))
	}
	if cmd.Flags().Changed("nats-url") {
		opts = append(opts, config.WithNatsURL(natsURL))
	}
	if cmd.Flags().Changed("peers") {
		opts = append(opts, config.WithStaticPeers(peers...))
	}

	if configPath != "" {
		return config.Load(configPath, opts...)
	}

	cfg := config.Default()
	for _, opt := range opts {
		opt.Apply(cfg)
	}
	return cfg, cfg.Validate()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "path of the YAML configuration file")
	flags.StringVar(&logLevel, "log-level", "info", "log level")
	flags.StringVar(&natsURL, "nats-url", "", "url of the NATS server")
	flags.StringSliceVar(&peers, "peers", nil, "gossip addresses of the static seeds")

	rootCmd.RunE = runMember
	rootCmd.AddCommand(runCmd)
}

// Copyright Contributors to the KubeTask project

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kubetask/flowagent/internal/agent"
	"github.com/kubetask/flowagent/internal/client"
	"github.com/kubetask/flowagent/internal/config"
	"github.com/kubetask/flowagent/internal/manifest"
	flowagentlog "github.com/kubetask/flowagent/internal/log"
)

func init() {
	agentCmd.AddCommand(agentStartCmd)
	rootCmd.AddCommand(agentCmd)
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Agent commands",
}

var agentStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the work-queue polling agent",
	Long: `Start the agent loop: on a fixed cadence, poll the configured work
queues for due flow runs and submit each to Kubernetes (or a local
process) via a Submission Coordinator.

Example:
  flowagent agent start --work-queue=default --server-url=http://localhost:4200/api`,
	RunE: runAgentStart,
}

var (
	agentWorkQueues             []string
	agentPrefetchSeconds        int
	agentPollIntervalSeconds    int
	agentServerURL              string
	agentNamespace              string
	agentImagePullPolicy        string
	agentDefaultInfraDocumentID string
	agentDevelopmentLogging     bool
)

func init() {
	agentStartCmd.Flags().StringSliceVar(&agentWorkQueues, "work-queue", nil,
		"Name of a work queue to poll (repeatable)")
	agentStartCmd.Flags().IntVar(&agentPrefetchSeconds, "prefetch-seconds", 0,
		"Window, relative to now, that runs are prefetched within (0 uses FLOWAGENT_PREFETCH_SECONDS or the default)")
	agentStartCmd.Flags().IntVar(&agentPollIntervalSeconds, "poll-interval-seconds", config.DefaultPollIntervalSeconds,
		"Cadence, in seconds, at which the agent loop is invoked")
	agentStartCmd.Flags().StringVar(&agentServerURL, "server-url", "",
		"Base URL of the orchestration server's API")
	agentStartCmd.Flags().StringVar(&agentNamespace, "namespace", "default",
		"Default Kubernetes namespace for jobs that don't specify one")
	agentStartCmd.Flags().StringVar(&agentImagePullPolicy, "image-pull-policy", "",
		"Default image pull policy for jobs that don't specify one")
	agentStartCmd.Flags().StringVar(&agentDefaultInfraDocumentID, "default-infrastructure-document-id", "",
		"Block document ID used when a deployment names none")
	agentStartCmd.Flags().BoolVar(&agentDevelopmentLogging, "development", false,
		"Use human-friendly development logging instead of JSON")
}

func runAgentStart(cmd *cobra.Command, args []string) error {
	log := flowagentlog.Setup(flowagentlog.Options{Development: agentDevelopmentLogging})
	agentLog := log.WithName("agent")

	cfg := config.Config{
		WorkQueues:          agentWorkQueues,
		PrefetchSeconds:     agentPrefetchSeconds,
		PollIntervalSeconds: agentPollIntervalSeconds,
		ServerURL:           agentServerURL,
		Namespace:           agentNamespace,
		ImagePullPolicy:     agentImagePullPolicy,
	}
	if err := cfg.Validate(); err != nil {
		agentLog.Error(err, "invalid configuration")
		return err
	}

	var defaultDocID *uuid.UUID
	if agentDefaultInfraDocumentID != "" {
		id, err := uuid.Parse(agentDefaultInfraDocumentID)
		if err != nil {
			return err
		}
		defaultDocID = &id
	}

	cl := client.NewHTTPClient(cfg.ServerURL)
	a, err := agent.New(cl, agent.Options{
		WorkQueues:                      cfg.WorkQueues,
		PrefetchSeconds:                 cfg.ResolvedPrefetchSeconds(),
		DefaultInfrastructureDocumentID: defaultDocID,
		DefaultNamespace:                cfg.Namespace,
		DefaultImagePullPolicy:          manifest.ImagePullPolicy(cfg.ImagePullPolicy),
		Log:                             agentLog,
	})
	if err != nil {
		agentLog.Error(err, "invalid agent configuration")
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		agentLog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := a.Start(ctx); err != nil {
		agentLog.Error(err, "failed to start agent")
		return err
	}

	pollIntervalSeconds := cfg.PollIntervalSeconds
	if pollIntervalSeconds <= 0 {
		pollIntervalSeconds = config.DefaultPollIntervalSeconds
	}
	t, err := newTicker(pollIntervalSeconds, func() {
		if _, err := a.Tick(ctx); err != nil {
			agentLog.Error(err, "tick failed")
		}
	})
	if err != nil {
		return err
	}

	agentLog.Info("agent started", "work_queues", cfg.WorkQueues, "poll_interval_seconds", pollIntervalSeconds)
	t.Start()

	<-ctx.Done()
	t.Stop()
	return a.Shutdown()
}

package cmd

import (
	"errors"
	"video-gate/config"
	server2 "video-gate/server"

	"github.com/spf13/cobra"
)

var errWorkerNeedsRabbitMQ = errors.New("worker requires queue.driver=rabbitmq; the memory queue runs inside the server command")

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server2.RunHttp(config)
		},
	}
}

func worker(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "consume transcode jobs from rabbitmq",
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.Queue.Driver != "rabbitmq" {
				return errWorkerNeedsRabbitMQ
			}
			return server2.RunWorker(config)
		},
	}
}

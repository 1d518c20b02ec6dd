package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/syncvault/pkg/configs"
	mq "github.com/yeisme/syncvault/pkg/internal/storage/mq"
	"github.com/yeisme/syncvault/pkg/queue"
)

var (
	mqCmd = &cobra.Command{
		Use:     "mq",
		Short:   "Message queue related commands",
		Aliases: []string{"messagequeue"},
	}

	mqListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered mq types",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered mq types:")

			for _, t := range mq.GetRegisteredTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+string(t))
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Topics:")

			for _, t := range queue.AllTopics {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+t)
			}
		},
	}

	mqTailCmd = &cobra.Command{
		Use:   "tail <topic>",
		Short: "print events published on a topic until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			cfg := configs.GetConfig()

			c, err := mq.New(ctx, &cfg.MQ)
			if err != nil {
				return err
			}
			defer c.Close()

			msgs, err := c.Subscribe(ctx, args[0])
			if err != nil {
				return err
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case msg, ok := <-msgs:
					if !ok {
						return nil
					}

					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", msg.UUID, msg.Payload)
					msg.Ack()
				}
			}
		},
	}
)

// registerMQCommands 注册 MQ 相关命令.
func registerMQCommands() {
	rootCmd.AddCommand(mqCmd)
	mqCmd.AddCommand(mqListCmd)
	mqCmd.AddCommand(mqTailCmd)
}

// Package chatrelaycmder is the root chatrelay command.
package chatrelaycmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/chat"
	configcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/config"
	initcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/initcmd"
	newscmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/news"
	servecmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/serve"
	statscmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/stats"
	versioncmder "github.com/papercomputeco/chatrelay/cmd/version"
)

const chatrelayLongDesc string = `chatrelay streams chat with a Coze bot to browsers and terminals.

Run the server and talk to it using:
  chatrelay serve      Run the HTTP relay
  chatrelay chat       Chat with a running relay
  chatrelay news       Show the latest news from the bot
  chatrelay stats      Show usage counters`

const chatrelayShortDesc string = "chatrelay - Coze chat streaming relay"

func NewChatrelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "chatrelay",
		Short:        chatrelayShortDesc,
		Long:         chatrelayLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .chatrelay/ directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(newscmder.NewNewsCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

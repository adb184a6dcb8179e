package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/killallgit/vivu/pkg/config"
	"github.com/killallgit/vivu/pkg/controllers"
	"github.com/killallgit/vivu/pkg/render"
	"github.com/spf13/cobra"
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Manage chats stored in the backend",
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored chats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		size, _ := cmd.Flags().GetInt("size")
		return chatsController().ListChats(cmd.Context(), os.Stdout, page-1, size)
	},
}

var chatsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print the messages of a chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseChatID(args[0])
		if err != nil {
			return err
		}
		return chatsController().ShowChat(cmd.Context(), os.Stdout, id, config.Get().ShowThinking)
	},
}

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseChatID(args[0])
		if err != nil {
			return err
		}
		if err := chatsController().DeleteChat(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Deleted chat %d\n", id)
		return nil
	},
}

func chatsController() *controllers.ChatsController {
	cfg := config.Get()
	interactive, width := render.Terminal(os.Stdout)
	return controllers.NewChatsController(newAPIClient(cfg), newFormatter(interactive, width, cfg.DefaultModel()))
}

func parseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid chat id %q", s)
	}
	return id, nil
}

func init() {
	chatsListCmd.Flags().Int("page", 1, "page to show, starting at 1")
	chatsListCmd.Flags().Int("size", 10, "chats per page")

	chatsCmd.AddCommand(chatsListCmd, chatsShowCmd, chatsDeleteCmd)
	rootCmd.AddCommand(chatsCmd)
}

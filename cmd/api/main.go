package main

import (
	"log"
	"os"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
)

const configFlag = "config"

// configFlagDef 每个子命令各自注册一份 --config
func configFlagDef() cobraflags.Flag {
	return &cobraflags.StringFlag{
		Name:  configFlag,
		Value: "config",
		Usage: "Directory containing config.yaml",
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "albumy",
		Short:         "Albumy photo sharing backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newInitCommand())
	root.AddCommand(newForgeCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Printf("albumy: %v", err)
		os.Exit(1)
	}
}

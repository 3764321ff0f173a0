package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Collect *CollectCommand
	Analyze *AnalyzeCommand
	Publish *PublishCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "mudozzal"
	parser.LongDescription = "Collect, classify and publish 무한도전 meme images."

	cmds := &commands{
		Collect: &CollectCommand{globals: &globals, version: version},
		Analyze: &AnalyzeCommand{globals: &globals, version: version},
		Publish: &PublishCommand{globals: &globals, version: version},
	}

	parser.AddCommand("collect", "Collect candidate images", "Collect candidate images by keyword search (--search) or from a URL list (--urls).", cmds.Collect)
	parser.AddCommand("analyze", "Classify collected images", "Send unanalyzed images to the vision model and record the relevant ones.", cmds.Analyze)
	parser.AddCommand("publish", "Build the public dataset", "Assign ids to accepted images, copy assets and write the public dataset.", cmds.Publish)

	return parser, &globals, cmds
}

// Run is the main entry point for the CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("mudozzal %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}

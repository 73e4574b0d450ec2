package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dudk/patch"
	"github.com/dudk/patch/mp3"
	"github.com/dudk/patch/nodes"
	"github.com/dudk/patch/wav"
)

type config struct {
	args []string
}

type command interface {
	Name() string
	Help() string
	Run() error
	Register(*flag.FlagSet)
}

func (config *config) run() int {
	cmdName, args := parseArgs(config.args)
	if cmdName == "" {
		printUsage()
		return errorExitCode
	}

	for _, cmd := range commands {
		if cmd.Name() == cmdName {
			flags := flag.NewFlagSet(cmdName, flag.ExitOnError)
			cmd.Register(flags)
			if err := flags.Parse(args); err != nil {
				flags.PrintDefaults()
				return errorExitCode
			}
			if err := cmd.Run(); err != nil {
				fmt.Printf("Command failed: %v\n", err)
				return errorExitCode
			}
		}
	}

	return successExitCode
}

var (
	successExitCode = 0
	errorExitCode   = 1
	commands        []command

	// populated by build-tagged files with optional kinds
	extraKinds []func(*patch.Registry)
)

// registry builds the full node registry of the CLI.
func registry() *patch.Registry {
	r := nodes.Registry()
	wav.Register(r)
	mp3.Register(r)
	for _, register := range extraKinds {
		register(r)
	}
	return r
}

func main() {
	commands = []command{&listCommand{}, &renderCommand{}, &runCommand{}}
	c := config{
		args: os.Args,
	}
	os.Exit(c.run())
}

func parseArgs(args []string) (string, []string) {
	if len(args) < 2 {
		return "", nil
	}
	return args[1], args[2:]
}

func printUsage() {
	fmt.Println("Patch is a CLI host for audio node graphs")
	fmt.Println()
	fmt.Println("Usage: patch <command>")
	fmt.Println()
	fmt.Println("Commands:")
	for _, cmd := range commands {
		fmt.Printf("\t%s\t%s\n", cmd.Name(), cmd.Help())
	}
}

package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/dudk/patch"
)

type listCommand struct{}

func (cmd *listCommand) Name() string {
	return "list"
}

func (cmd *listCommand) Help() string {
	return "Show the list of available node kinds"
}

func (cmd *listCommand) Register(fs *flag.FlagSet) {}

func (cmd *listCommand) Run() error {
	r := registry()
	fmt.Println("Available node kinds:")
	for _, kind := range r.Kinds() {
		proto, err := r.Get(kind)
		if err != nil {
			return err
		}
		fmt.Printf("  %-12s %s\n", kind, proto.Description)
		if len(proto.Inputs) > 0 {
			fmt.Printf("    in:  %s\n", ports(proto.Inputs))
		}
		if len(proto.Outputs) > 0 {
			fmt.Printf("    out: %s\n", ports(proto.Outputs))
		}
		for _, p := range proto.Params {
			fmt.Printf("    param %s [%g..%g] default %g\n", p.Name, p.Min, p.Max, p.Default)
		}
	}
	return nil
}

func ports(list []patch.Port) string {
	names := make([]string, len(list))
	for i, p := range list {
		names[i] = fmt.Sprintf("%s(%s)", p.Name, p.Kind)
	}
	return strings.Join(names, ", ")
}

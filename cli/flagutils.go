//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package main

import (
	goflag "flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/pa-cotte/hal-alif-sub005/common/multierror"
	"github.com/pa-cotte/hal-alif-sub005/common/pflagenv"
	"github.com/pa-cotte/hal-alif-sub005/version"
)

// glogFlags are registered by glog on the Go flag set and only shown by --helpfull.
var glogFlags = []string{
	"alsologtostderr",
	"log_backtrace_at",
	"log_dir",
	"logtostderr",
	"stderrthreshold",
	"v",
	"vmodule",
}

// commonFlags are listed in the short usage.
var commonFlags = []string{"config", "mailbox", "channel", "timeout", "verbose"}

func initFlags() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	setGlogFlagsHidden(true)
	flag.Usage = usage
}

func setGlogFlagsHidden(hidden bool) {
	for _, name := range glogFlags {
		if f := flag.Lookup(name); f != nil {
			f.Hidden = hidden
		}
	}
}

// checkFlags reports every required flag that was not given.
func checkFlags(required []string) error {
	var errs error
	for _, name := range required {
		switch f := flag.Lookup(name); {
		case f == nil:
			errs = multierror.Append(errs, errors.Errorf("--%s is required", name))
		case !f.Changed:
			errs = multierror.Append(errs, errors.Errorf("--%s is required\t\t%s", name, f.Usage))
		}
	}
	return errors.Trace(errs)
}

func printFlag(w io.Writer, kind, name string) {
	f := flag.Lookup(name)
	if f == nil {
		return
	}
	var arg string
	if t := f.Value.Type(); t != "bool" {
		arg = "<" + t + ">"
	}
	fmt.Fprintf(w, "  --%s %s\t%s. %s, default value: %q, env: %s\n",
		name, arg, f.Usage, kind, f.DefValue, pflagenv.EnvName(name, envPrefix))
}

func commandUsage(w io.Writer, c *command) {
	fmt.Fprintf(w, "%s %s FLAGS\n\n%s\n\nFlags:\n", os.Args[0], c.name, c.short)
	for _, name := range c.required {
		printFlag(w, "Required", name)
	}
	for _, name := range c.optional {
		printFlag(w, "Optional", name)
	}
}

func usage() {
	w := tabwriter.NewWriter(os.Stderr, 0, 0, 1, ' ', 0)
	defer w.Flush()

	if len(os.Args) == 3 && os.Args[1] == "help" {
		if c := findCommand(os.Args[2]); c != nil {
			commandUsage(w, c)
			w.Flush()
			os.Exit(1)
		}
	}

	fmt.Fprintf(w, "The secure enclave services tool %s.\n", version.GetVersion())
	fmt.Fprintf(w, "Usage:\n  %s <command> [args] [flags]\n\nCommands:\n", os.Args[0])
	for _, c := range commands {
		if !c.extended || *helpFull {
			fmt.Fprintf(w, "  %s\t\t%s\n", c.name, c.short)
		}
	}

	fmt.Fprintf(w, "\nGlobal Flags:\n")
	if *helpFull {
		fmt.Fprint(w, flag.CommandLine.FlagUsages())
		return
	}
	for _, name := range commonFlags {
		printFlag(w, "Optional", name)
	}
	color.New(color.FgYellow).Fprintf(w, "\nMore commands and flags: %s --helpfull\n", os.Args[0])
}

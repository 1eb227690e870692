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

package pflagenv

import (
	"fmt"
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/spf13/pflag"

	"github.com/pa-cotte/hal-alif-sub005/common/multierror"
)

// ParseFlagSet iterates through all non-set flags in the given FlagSet,
// checks if there is an environment variable with the uppercased flag name
// prepended with the given envPrefix, and if so, sets flag value to the
// environment variable value.
//
// It should be called after Parse is called for the given FlagSet.
// Values that the flag rejects are reported together; the remaining
// variables are still applied.
func ParseFlagSet(fs *pflag.FlagSet, envPrefix string) error {
	// pflag cannot tell a flag set to its default value from a flag that
	// was not given at all, so collect everything and drop what was visited.
	nonset := make(map[string]*pflag.Flag)

	fs.VisitAll(func(f *pflag.Flag) {
		nonset[f.Name] = f
	})
	fs.Visit(func(f *pflag.Flag) {
		delete(nonset, f.Name)
	})

	return errors.Trace(setFromEnv(nonset, envPrefix))
}

// The same as ParseFlagSet, but operates on a default FlagSet: pflag.CommandLine
func Parse(envPrefix string) error {
	return ParseFlagSet(pflag.CommandLine, envPrefix)
}

// EnvName returns the environment variable consulted for the flag.
func EnvName(flagName, envPrefix string) string {
	flagName = strings.ToUpper(flagName)
	flagName = strings.Replace(flagName, "-", "_", -1)
	return fmt.Sprint(envPrefix, flagName)
}

func setFromEnv(nonset map[string]*pflag.Flag, envPrefix string) error {
	var errs error
	for name, f := range nonset {
		envName := EnvName(name, envPrefix)
		envVar := os.Getenv(envName)
		if envVar == "" {
			continue
		}
		// Some values are clobbered by a failed Set, keep the default instead.
		old := f.Value.String()
		if err := f.Value.Set(envVar); err != nil {
			f.Value.Set(old)
			errs = multierror.Append(errs, errors.Annotatef(err, "%s=%q", envName, envVar))
			continue
		}
		f.Changed = true
	}
	return errs
}

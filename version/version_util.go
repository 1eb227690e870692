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

package version

import (
	"fmt"
	"regexp"
	"runtime"

	goversion "github.com/mcuadros/go-version"

	"github.com/pa-cotte/hal-alif-sub005/cli/ourutil"
)

const (
	LatestVersionName = "latest"
)

var (
	regexpVersionNumber = regexp.MustCompile(`^\d+\.[0-9.]*$`)
	regexpBuildId       = regexp.MustCompile(`^(?P<timestamp>\d{8}-\d{6})/(?P<branch>[^@]+)@(?P<hash>[0-9a-f]+)(?P<dirty>\+)?$`)
)

// GetVersion returns this binary's version, or "latest" if it's not a release build.
func GetVersion() string {
	if LooksLikeVersionNumber(Version) {
		return Version
	}
	return LatestVersionName
}

func LooksLikeVersionNumber(s string) bool {
	return regexpVersionNumber.MatchString(s)
}

// GetBuildIDParts splits a build id of the form 20191017-101010/master@0123abcd[+]
// into its named parts. Returns nil if s does not look like a build id.
func GetBuildIDParts(s string) map[string]string {
	return ourutil.FindNamedSubmatches(regexpBuildId, s)
}

// AtLeast reports whether this binary is a release build not older than min.
// Development builds ("latest") always qualify.
func AtLeast(min string) bool {
	v := GetVersion()
	if v == LatestVersionName {
		return true
	}
	return goversion.Compare(v, min, ">=")
}

func GetUserAgent() string {
	return fmt.Sprintf("setool/%s %s (%s; %s)", Version, BuildId, runtime.GOOS, runtime.GOARCH)
}

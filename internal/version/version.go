// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package version

import "fmt"

// Build metadata, overridable via ldflags:
// go build -ldflags="-X github.com/Common-Nat/OpenRouter-LLM-Console/internal/version.Version=vX.Y.Z \
//   -X github.com/Common-Nat/OpenRouter-LLM-Console/internal/version.Commit=<sha> \
//   -X github.com/Common-Nat/OpenRouter-LLM-Console/internal/version.Date=<iso8601>"
var (
	Version = "0.3.0"
	Commit  = ""
	Date    = ""
)

// Get returns the release version, or "dev" for unstamped builds.
func Get() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

// Long returns the version with commit and build date when stamped, in the
// form "0.3.0 (abc1234, 2026-08-25)".
func Long() string {
	s := Get()
	switch {
	case Commit != "" && Date != "":
		return fmt.Sprintf("%s (%s, %s)", s, Commit, Date)
	case Commit != "":
		return fmt.Sprintf("%s (%s)", s, Commit)
	default:
		return s
	}
}

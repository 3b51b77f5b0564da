package project

import (
	"fmt"
	"strings"
)

// Runtime is a worker runtime moniker as stored in FUNCTIONS_WORKER_RUNTIME.
type Runtime string

const (
	RuntimeNone           Runtime = ""
	RuntimeDotnet         Runtime = "dotnet"
	RuntimeDotnetIsolated Runtime = "dotnet-isolated"
	RuntimeNode           Runtime = "node"
	RuntimePython         Runtime = "python"
	RuntimeJava           Runtime = "java"
	RuntimePowerShell     Runtime = "powershell"
	RuntimeCustom         Runtime = "custom"
)

var runtimeAliases = map[string]Runtime{
	"dotnet":          RuntimeDotnet,
	"c#":              RuntimeDotnet,
	"csharp":          RuntimeDotnet,
	"f#":              RuntimeDotnet,
	"fsharp":          RuntimeDotnet,
	"dotnet-isolated": RuntimeDotnetIsolated,
	"dotnetisolated":  RuntimeDotnetIsolated,
	"c#-isolated":     RuntimeDotnetIsolated,
	"csharp-isolated": RuntimeDotnetIsolated,
	"f#-isolated":     RuntimeDotnetIsolated,
	"fsharp-isolated": RuntimeDotnetIsolated,
	"node":            RuntimeNode,
	"js":              RuntimeNode,
	"javascript":      RuntimeNode,
	"typescript":      RuntimeNode,
	"ts":              RuntimeNode,
	"python":          RuntimePython,
	"py":              RuntimePython,
	"java":            RuntimeJava,
	"powershell":      RuntimePowerShell,
	"pwsh":            RuntimePowerShell,
	"custom":          RuntimeCustom,
}

// runtimeImages lists the platform images that carry each runtime. The first
// entry is the image a mismatched app is moved to.
var runtimeImages = map[Runtime][]string{
	RuntimeDotnet: {
		"mcr.microsoft.com/azure-functions/dotnet",
		"microsoft/azure-functions-dotnet-core2.0",
		"mcr.microsoft.com/azure-functions/base",
		"microsoft/azure-functions-base",
	},
	RuntimeNode:       {"mcr.microsoft.com/azure-functions/node", "microsoft/azure-functions-node8"},
	RuntimePython:     {"mcr.microsoft.com/azure-functions/python", "microsoft/azure-functions-python3.6"},
	RuntimePowerShell: {"mcr.microsoft.com/azure-functions/powershell", "microsoft/azure-functions-powershell"},
}

// ParseRuntime normalizes a runtime name or language alias.
func ParseRuntime(s string) (Runtime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RuntimeNone, fmt.Errorf("worker runtime cannot be empty")
	}
	if r, ok := runtimeAliases[strings.ToLower(s)]; ok {
		return r, nil
	}
	return RuntimeNone, fmt.Errorf("worker runtime %q is not a valid option, options are %s", s, strings.Join(SupportedRuntimes(), ", "))
}

// SupportedRuntimes returns the runtimes a project can be published with.
func SupportedRuntimes() []string {
	return []string{"dotnet", "dotnet-isolated", "node", "python", "powershell", "custom"}
}

// Images returns the platform images built for r.
func (r Runtime) Images() []string {
	return runtimeImages[r]
}

// IsDotnet reports whether r is one of the .NET runtimes.
func (r Runtime) IsDotnet() bool {
	return r == RuntimeDotnet || r == RuntimeDotnetIsolated
}

func (r Runtime) String() string {
	if r == RuntimeNone {
		return "none"
	}
	return string(r)
}

// IsCustomImage reports whether an image version points at a container that
// is not one of the platform images.
func IsCustomImage(imageVersion string) bool {
	if !hasDockerPrefix(imageVersion) {
		return false
	}
	for _, images := range runtimeImages {
		if containsImage(imageVersion, images) {
			return false
		}
	}
	return true
}

// MatchesImage reports whether an image version is suitable for r. An empty
// version always matches since the platform then picks the image from the
// worker runtime setting.
func (r Runtime) MatchesImage(imageVersion string) bool {
	if imageVersion == "" {
		return true
	}
	if strings.HasPrefix(strings.ToLower(imageVersion), strings.ToLower(string(r))) {
		return true
	}
	return hasDockerPrefix(imageVersion) && containsImage(imageVersion, r.Images())
}

func hasDockerPrefix(v string) bool {
	return strings.HasPrefix(strings.ToLower(v), "docker|")
}

func containsImage(v string, images []string) bool {
	v = strings.ToLower(v)
	for _, image := range images {
		if strings.Contains(v, strings.ToLower(image)) {
			return true
		}
	}
	return false
}

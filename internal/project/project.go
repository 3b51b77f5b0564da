// Package project inspects a local function app directory.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"

	"github.com/railwayapp/funcpush/internal/deployerr"
	"github.com/railwayapp/funcpush/internal/filesystems"
)

const (
	hostFile           = "host.json"
	requirementsFile   = "requirements.txt"
	pyprojectFile      = "pyproject.toml"
	packageJSONFile    = "package.json"
	pythonPackagesDir  = ".python_packages"
	workerRuntimeKey   = "FUNCTIONS_WORKER_RUNTIME"
	executablePathJSON = "customHandler.description.defaultExecutablePath"
)

// Project is what publishing needs to know about the local app.
type Project struct {
	Root    string
	Name    string
	Runtime Runtime

	// Executables are forward-slash paths stored with mode 0755.
	Executables []string

	// BundledNativeDeps is set when dependencies were vendored locally,
	// native extensions included, and must ship as a mounted image.
	BundledNativeDeps bool

	HasRequirements bool
}

// signal maps a marker file to the runtime it implies.
type signal struct {
	name    string
	suffix  bool
	runtime Runtime
}

var signals = []signal{
	{name: requirementsFile, runtime: RuntimePython},
	{name: pyprojectFile, runtime: RuntimePython},
	{name: packageJSONFile, runtime: RuntimeNode},
	{name: ".csproj", suffix: true, runtime: RuntimeDotnet},
	{name: ".fsproj", suffix: true, runtime: RuntimeDotnet},
	{name: "profile.ps1", runtime: RuntimePowerShell},
	{name: "pom.xml", runtime: RuntimeJava},
}

// Detect reads the project at root. localSettings is consulted first for the
// worker runtime; marker files are the fallback.
func Detect(fsys filesystems.FileSystem, root string, localSettings map[string]string) (Project, error) {
	p := Project{Root: root, Name: path.Base(filepathToSlash(root))}

	if v := lookupFold(localSettings, workerRuntimeKey); v != "" {
		r, err := ParseRuntime(v)
		if err != nil {
			return Project{}, deployerr.Validation("%s in local settings: %v", workerRuntimeKey, err)
		}
		p.Runtime = r
	} else {
		r, err := detectRuntime(fsys, root)
		if err != nil {
			return Project{}, err
		}
		p.Runtime = r
	}
	if p.Runtime == RuntimeNone {
		return Project{}, deployerr.Validation("worker runtime is not set; set %s in local.settings.json to one of %s",
			workerRuntimeKey, strings.Join(SupportedRuntimes(), ", "))
	}

	if name, err := projectName(fsys, root); err != nil {
		return Project{}, err
	} else if name != "" {
		p.Name = name
	}

	exe, err := executables(fsys, root)
	if err != nil {
		return Project{}, err
	}
	p.Executables = exe

	if p.Runtime == RuntimePython {
		p.HasRequirements = nonEmpty(fsys, fsys.Join(root, requirementsFile))
		p.BundledNativeDeps = filesystems.Exists(fsys, fsys.Join(root, pythonPackagesDir))
	}
	return p, nil
}

func detectRuntime(fsys filesystems.FileSystem, root string) (Runtime, error) {
	for _, s := range signals {
		var found string
		var err error
		if s.suffix {
			found, err = filesystems.FindBySuffix(fsys, root, s.name)
		} else {
			found, err = filesystems.FindFile(fsys, root, s.name)
		}
		if err != nil {
			return RuntimeNone, fmt.Errorf("failed to scan project directory: %w", err)
		}
		if found != "" {
			return s.runtime, nil
		}
	}
	return RuntimeNone, nil
}

type pyproject struct {
	Project struct {
		Name string `toml:"name"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name string `toml:"name"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func projectName(fsys filesystems.FileSystem, root string) (string, error) {
	if content, err := fsys.ReadFile(fsys.Join(root, pyprojectFile)); err == nil {
		var doc pyproject
		if _, err := toml.Decode(string(content), &doc); err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", pyprojectFile, err)
		}
		if doc.Project.Name != "" {
			return doc.Project.Name, nil
		}
		return doc.Tool.Poetry.Name, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	if content, err := fsys.ReadFile(fsys.Join(root, packageJSONFile)); err == nil {
		return gjson.GetBytes(jsonc.ToJSON(content), "name").String(), nil
	}
	return "", nil
}

// executables returns the custom handler binary declared in host.json.
func executables(fsys filesystems.FileSystem, root string) ([]string, error) {
	content, err := fsys.ReadFile(fsys.Join(root, hostFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", hostFile, err)
	}

	doc := jsonc.ToJSON(content)
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("failed to parse %s: invalid JSON", hostFile)
	}
	exe := gjson.GetBytes(doc, executablePathJSON).String()
	if exe == "" {
		return nil, nil
	}
	return []string{strings.TrimPrefix(filepathToSlash(exe), "./")}, nil
}

func nonEmpty(fsys filesystems.FileSystem, name string) bool {
	info, err := fsys.Stat(name)
	return err == nil && info.Size() > 0
}

func lookupFold(m map[string]string, key string) string {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

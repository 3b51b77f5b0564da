package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"

	"github.com/railwayapp/funcpush/internal/deployerr"
	"github.com/railwayapp/funcpush/internal/filesystems"
)

// DefaultFile is the local settings file in a function app root.
const DefaultFile = "local.settings.json"

// Local is the content of a local settings file.
type Local struct {
	Path              string
	Found             bool
	Values            map[string]string
	ConnectionStrings map[string]string
}

// LoadLocal reads local settings from name. Files whose base name starts
// with .env are read as dotenv files, anything else as local.settings.json,
// comments allowed. A missing file yields empty settings.
func LoadLocal(fsys filesystems.FileSystem, name string) (Local, error) {
	local := Local{Path: name, Values: map[string]string{}, ConnectionStrings: map[string]string{}}

	content, err := fsys.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return local, nil
	}
	if err != nil {
		return Local{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	local.Found = true

	if strings.HasPrefix(strings.ToLower(path.Base(strings.ReplaceAll(name, `\`, "/"))), ".env") {
		env, err := godotenv.Unmarshal(string(content))
		if err != nil {
			return Local{}, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		local.Values = env
		return local, nil
	}

	doc := jsonc.ToJSON(content)
	if !gjson.ValidBytes(doc) {
		return Local{}, fmt.Errorf("failed to parse %s: invalid JSON", name)
	}
	root := gjson.ParseBytes(doc)
	if root.Get("IsEncrypted").Bool() {
		return Local{}, deployerr.Validation("%s is encrypted; decrypt it before publishing local settings", name)
	}
	root.Get("Values").ForEach(func(k, v gjson.Result) bool {
		local.Values[k.String()] = v.String()
		return true
	})
	root.Get("ConnectionStrings").ForEach(func(k, v gjson.Result) bool {
		local.ConnectionStrings[k.String()] = v.String()
		return true
	})
	return local, nil
}

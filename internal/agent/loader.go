package agent

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gencode-ai/agentcore/internal/log"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var agentNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidName reports whether name is a well-formed agent identifier.
func ValidName(name string) bool { return agentNamePattern.MatchString(name) }

// LoadFile parses one AGENT.md-style file: a YAML front matter block between
// `---` delimiters, followed by the system prompt body in plain markdown.
// Returns nil, nil if the file has no front matter (not an agent spec).
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(string(data), path)
}

// LoadDir parses every *.md file directly inside dir as an agent spec,
// skipping files with no front matter and logging (not failing) on a parse
// error, matching the teacher's best-effort directory scan.
func LoadDir(dir string) []Config {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var configs []Config
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		cfg, err := LoadFile(path)
		if err != nil {
			log.Logger().Debug("failed to read agent spec", zap.String("path", path), zap.Error(err))
			continue
		}
		if cfg == nil {
			continue
		}
		configs = append(configs, *cfg)
	}
	return configs
}

func parse(content, path string) (*Config, error) {
	frontmatter, body := extractFrontmatter(content)
	if frontmatter == "" {
		return nil, nil
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(frontmatter), &cfg); err != nil {
		return nil, err
	}

	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(path), ".md")
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.PermissionMode == "" {
		cfg.PermissionMode = PermissionDefault
	}
	if body != "" {
		cfg.SystemPrompt = strings.TrimSpace(body)
	}
	cfg.SourceFile = path
	return &cfg, nil
}

// extractFrontmatter splits content into a YAML front matter block and the
// remaining body, given `---`-delimited front matter at the start of the
// file. Returns ("", content) if there is no front matter.
func extractFrontmatter(content string) (frontmatter, body string) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "---") {
		return "", content
	}

	rest := content[3:]
	end := strings.Index(rest, "\n---")
	if end == -1 {
		return "", content
	}

	frontmatter = strings.TrimSpace(rest[:end])
	body = strings.TrimSpace(rest[end+4:])
	return frontmatter, body
}

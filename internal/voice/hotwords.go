package voice

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Hot word files read by the recognizer at startup.
const (
	HotZhFile   = "hot-zh.txt"
	HotRuleFile = "hot-rule.txt"
)

// WriteHotwords writes the preset's hot words and replacement rules into
// dir. An empty dir does nothing.
func WriteHotwords(dir, zhWords, rules string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create hotwords dir: %w", err)
	}
	for name, content := range map[string]string{HotZhFile: zhWords, HotRuleFile: rules} {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

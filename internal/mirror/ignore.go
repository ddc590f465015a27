package mirror

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// IgnoreList excludes gitignore-style patterns from both snapshots, so matching
// paths are neither uploaded nor deleted. A nil list ignores nothing.
type IgnoreList struct {
	ignore *gitignore.GitIgnore
	rules  int
}

func NewIgnoreList(lines ...string) *IgnoreList {
	var rules []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}
	return &IgnoreList{
		ignore: gitignore.CompileIgnoreLines(rules...),
		rules:  len(rules),
	}
}

// LoadIgnoreList reads patterns from file. An empty file name yields a nil list.
func LoadIgnoreList(fs afero.Fs, file string) (*IgnoreList, error) {
	if file == "" {
		return nil, nil
	}

	data, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, fmt.Errorf("read ignore file: %w", err)
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ignore file: %w", err)
	}

	return NewIgnoreList(lines...), nil
}

// Rules is the number of active patterns.
func (l *IgnoreList) Rules() int {
	if l == nil {
		return 0
	}
	return l.rules
}

func (l *IgnoreList) ShouldIgnore(key PathKey, isDir bool) bool {
	if l == nil || l.rules == 0 || key.IsRoot() {
		return false
	}
	if isDir && l.ignore.MatchesPath(string(key)+"/") {
		return true
	}
	return l.ignore.MatchesPath(string(key))
}

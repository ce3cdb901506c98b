/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiplash

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed prompts.txt
var defaultPrompts string

// DefaultPrompts returns the built-in prompt pool.
func DefaultPrompts() []string {
	prompts, _ := parsePrompts(strings.NewReader(defaultPrompts))
	return prompts
}

// LoadPrompts reads a prompt pool from a file with one prompt per line.
// Blank lines and lines starting with '#' are skipped, as are duplicates.
func LoadPrompts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	prompts, err := parsePrompts(f)
	if err != nil {
		return nil, fmt.Errorf("read prompts from %s: %w", path, err)
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("no prompts found in %s", path)
	}
	return prompts, nil
}

func parsePrompts(r io.Reader) ([]string, error) {
	var prompts []string
	seen := map[string]bool{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		prompts = append(prompts, line)
	}
	return prompts, scanner.Err()
}

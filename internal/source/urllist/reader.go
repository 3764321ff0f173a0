// Package urllist reads explicit image URL lists for manual collection.
package urllist

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Read returns the URLs listed in path, one per line. Blank lines and lines
// starting with '#' are ignored; surrounding whitespace is trimmed.
func Read(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open url list: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read url list %s: %w", path, err)
	}
	return urls, nil
}

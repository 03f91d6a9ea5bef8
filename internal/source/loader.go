package source

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Load resolves the feed location: "-" reads standard input, http(s)
// URLs are fetched, anything else is a file path. The returned channel
// keeps memory usage low on very large feeds.
func Load(location string) (<-chan string, error) {
	switch {
	case location == "-":
		return scan(os.Stdin, nil), nil
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return LoadFromURL(location)
	default:
		return LoadFromFile(location)
	}
}

func LoadFromFile(path string) (<-chan string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	return scan(file, file.Close), nil
}

// LoadFromURL streams directly from a URL (e.g., Github raw)
func LoadFromURL(url string) (<-chan string, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch feed: unexpected status %s", resp.Status)
	}
	return scan(resp.Body, resp.Body.Close), nil
}

func scan(r io.Reader, closeFn func() error) <-chan string {
	out := make(chan string)

	go func() {
		if closeFn != nil {
			defer closeFn()
		}
		defer close(out)

		scanner := bufio.NewScanner(r)
		// Increase buffer size for very long lines (some subscription links are huge)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" && !strings.HasPrefix(line, "#") {
				out <- line
			}
		}
	}()

	return out
}

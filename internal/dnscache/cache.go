// Package dnscache keeps a file-backed domain→IP cache so repeated runs
// do not re-resolve the same hosts. Only entries actually used during a
// run survive the next Save, so stale domains age out naturally.
package dnscache

import (
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
)

type entry struct {
	ip   string
	used bool
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	path    string
}

// Open loads the cache file if it exists; a missing file is an empty cache.
func Open(path string) (*Cache, error) {
	c := &Cache{
		entries: make(map[string]entry),
		path:    path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read dns cache: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || net.ParseIP(fields[1]) == nil {
			continue
		}
		c.entries[strings.ToLower(fields[0])] = entry{ip: fields[1]}
	}
	return c, nil
}

// Resolve returns an IP for the host, consulting the cache before the
// system resolver. IP literals pass through untouched.
func (c *Cache) Resolve(host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}
	domain := strings.ToLower(host)

	c.mu.Lock()
	if e, ok := c.entries[domain]; ok {
		e.used = true
		c.entries[domain] = e
		c.mu.Unlock()
		return e.ip, nil
	}
	c.mu.Unlock()

	addrs, err := net.LookupHost(domain)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", domain, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("resolve %s: no addresses", domain)
	}

	c.mu.Lock()
	c.entries[domain] = entry{ip: addrs[0], used: true}
	c.mu.Unlock()
	return addrs[0], nil
}

// Save persists the entries used this run, one "domain ip" per line.
func (c *Cache) Save() error {
	c.mu.Lock()
	lines := make([]string, 0, len(c.entries))
	for domain, e := range c.entries {
		if e.used {
			lines = append(lines, domain+" "+e.ip)
		}
	}
	c.mu.Unlock()

	if err := os.WriteFile(c.path, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return fmt.Errorf("save dns cache: %w", err)
	}
	return nil
}

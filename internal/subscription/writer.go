// Package subscription serializes the surviving endpoints into the text
// subscription files third-party clients consume.
package subscription

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/suprohub/novaprox/internal/dnscache"
	"github.com/suprohub/novaprox/internal/geoip"
	"github.com/suprohub/novaprox/internal/model"
)

// AllFile is the combined output next to the per-protocol files.
const AllFile = "all.txt"

type Writer struct {
	Dir      string
	Resolver *dnscache.Cache // optional, enables country tags
	Geo      *geoip.Database // optional
}

func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

// FileName returns the published file for a protocol group.
func FileName(p model.Protocol) string {
	return string(p) + ".txt"
}

// Publish materializes every file's content first, then replaces the
// published files one rename at a time, so a reader never observes a
// half-written file. Empty groups still overwrite their file with empty
// content: no survivors is a valid state, not an error.
func (w *Writer) Publish(set *Set) error {
	files := map[string]string{
		AllFile: w.render(set.All),
	}
	for _, proto := range model.Protocols {
		files[FileName(proto)] = w.render(set.Groups[proto])
	}

	for name, content := range files {
		if err := writeAtomic(filepath.Join(w.Dir, name), content); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) render(results []model.ProbeResult) string {
	if len(results) == 0 {
		return ""
	}

	lines := make([]string, 0, len(results))
	for i, res := range results {
		lines = append(lines, w.formatLine(i+1, res))
	}
	return strings.Join(lines, "\n") + "\n"
}

// formatLine emits "uri#Novaprox CC - N [Xms]"; the country tag appears
// only when the host resolves against the GeoIP database.
func (w *Writer) formatLine(rank int, res model.ProbeResult) string {
	label := "Novaprox"
	if cc := w.country(res.Endpoint.Host); cc != "" {
		label += " " + cc
	}
	label += fmt.Sprintf(" - %d [%dms]", rank, res.Latency.Milliseconds())

	return res.Endpoint.URI() + "#" + url.PathEscape(label)
}

func (w *Writer) country(host string) string {
	if w.Resolver == nil || w.Geo == nil {
		return ""
	}
	ip, err := w.Resolver.Resolve(host)
	if err != nil {
		return ""
	}
	return w.Geo.Lookup(ip)
}

func writeAtomic(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("publish %s: %w", path, err)
	}

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("publish %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish %s: %w", path, err)
	}
	return nil
}

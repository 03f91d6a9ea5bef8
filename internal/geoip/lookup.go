package geoip

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

type Database struct {
	reader *geoip2.Reader
}

func Open(path string) (*Database, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &Database{reader: r}, nil
}

// Lookup returns the ISO country code for an IP, or "" when the database
// is absent or the address cannot be attributed. Nil-safe so callers can
// treat the database as optional.
func (d *Database) Lookup(ipStr string) string {
	if d == nil || d.reader == nil {
		return ""
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}

	record, err := d.reader.Country(ip)
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}

func (d *Database) Close() {
	if d != nil && d.reader != nil {
		d.reader.Close()
	}
}

// Package datasource resolves the record lists that app variables match against.
package datasource

import (
	"context"
	"time"
)

// Record is one row of a data source. Values are always strings; numbers and
// booleans from command output are kept in their JSON text form.
type Record map[string]string

// Source is either Static or Dynamic.
type Source interface {
	SourceName() string
	isSource()
}

// Static records are declared in the configuration file.
type Static struct {
	Name    string
	Records []Record
}

func (s *Static) SourceName() string { return s.Name }
func (s *Static) isSource()          {}

// Dynamic records come from running a shell command that prints JSON.
type Dynamic struct {
	Name    string
	Command string
	// Mapping maps record field names to keys of the command's JSON objects.
	Mapping  map[string]string
	Priority int
	Timeout  time.Duration
	CacheTTL time.Duration
}

func (d *Dynamic) SourceName() string { return d.Name }
func (d *Dynamic) isSource()          {}

const (
	DefaultPriority = 1
	DefaultTimeout  = 10 * time.Second
	DefaultCacheTTL = 300 * time.Second
)

// Runner runs a dynamic source command and returns its stdout.
type Runner interface {
	Output(ctx context.Context, command string) ([]byte, error)
}

// Package config loads the multi-document YAML file that declares data
// sources, commands and UI settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"regexp"
	"time"

	"github.com/robottwo/dya/internal/alias"
	"github.com/robottwo/dya/internal/datasource"
	"github.com/robottwo/dya/internal/history"
	"github.com/robottwo/dya/internal/store"
	"gopkg.in/yaml.v3"
)

// Style keys understood by the completion menu.
const (
	StyleCompletion        = "completion-menu.completion"
	StyleCompletionCurrent = "completion-menu.completion.current"
	StyleScrollbarBG       = "scrollbar.background"
	StyleScrollbarButton   = "scrollbar.button"
)

// Global holds the settings of `config` documents.
type Global struct {
	Styles           map[string]string
	PlaceholderColor string
	PlaceholderText  string
	HistorySize      int
}

func DefaultGlobal() Global {
	return Global{
		Styles: map[string]string{
			StyleCompletion:        "bg:#008888 #ffffff",
			StyleCompletionCurrent: "bg:#00aaaa #000000",
			StyleScrollbarBG:       "bg:#88aaaa",
			StyleScrollbarButton:   "bg:#222222",
		},
		PlaceholderColor: "gray",
		PlaceholderText:  "(tab for menu)",
		HistorySize:      history.DefaultSize,
	}
}

// Config is a fully validated configuration.
type Config struct {
	Global  Global
	Sources []datasource.Source
	Tree    *alias.Tree
}

// Error is a configuration problem. Doc is the 1-based document index, or 0
// when the problem is not tied to one document.
type Error struct {
	File string
	Doc  int
	Err  error
}

func (e *Error) Error() string {
	if e.Doc > 0 {
		return fmt.Sprintf("config %s: document %d: %v", e.File, e.Doc, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.File, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type globalDoc struct {
	StyleCompletion        *string `yaml:"style-completion"`
	StyleCompletionCurrent *string `yaml:"style-completion-current"`
	StyleScrollbarBG       *string `yaml:"style-scrollbar-background"`
	StyleScrollbarButton   *string `yaml:"style-scrollbar-button"`
	PlaceholderColor       *string `yaml:"style-placeholder-color"`
	PlaceholderText        *string `yaml:"style-placeholder-text"`
	HistorySize            *int    `yaml:"history-size"`
}

type argDoc struct {
	Alias   string `yaml:"alias"`
	Command string `yaml:"command"`
	Helper  string `yaml:"helper"`
}

type subDoc struct {
	Alias   string   `yaml:"alias"`
	Command string   `yaml:"command"`
	Helper  string   `yaml:"helper"`
	Sub     []subDoc `yaml:"sub"`
	Args    []argDoc `yaml:"args"`
}

type document struct {
	Type   string    `yaml:"type"`
	Config yaml.Node `yaml:"config"`
	Name   string    `yaml:"name"`

	// dict
	Data []map[string]any `yaml:"data"`

	// dynamic_dict
	Mapping  map[string]string `yaml:"mapping"`
	Priority *int              `yaml:"priority"`
	Timeout  *int              `yaml:"timeout"`
	CacheTTL *int              `yaml:"cache-ttl"`

	// command
	Alias   string   `yaml:"alias"`
	Command string   `yaml:"command"`
	Helper  string   `yaml:"helper"`
	Sub     []subDoc `yaml:"sub"`
	Args    []argDoc `yaml:"args"`
	Strict  bool     `yaml:"strict"`

	globalDoc `yaml:",inline"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{File: path, Err: err}
	}
	defer func() {
		_ = f.Close()
	}()
	return Parse(f, path)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads every YAML document from r. name is used in error messages.
func Parse(r io.Reader, name string) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{File: name, Err: err}
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	cfg := &Config{Global: DefaultGlobal(), Tree: &alias.Tree{}}
	b := builder{cfg: cfg, file: name, sourceNames: map[string]bool{}, commandNames: map[string]bool{}}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	for doc := 1; ; doc++ {
		var node yaml.Node
		if err := dec.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &Error{File: name, Doc: doc, Err: err}
		}
		if err := b.add(&node); err != nil {
			return nil, &Error{File: name, Doc: doc, Err: err}
		}
	}

	if err := b.checkReferences(); err != nil {
		return nil, &Error{File: name, Err: err}
	}
	return cfg, nil
}

type builder struct {
	cfg          *Config
	file         string
	sourceNames  map[string]bool
	commandNames map[string]bool
}

func (b *builder) add(node *yaml.Node) error {
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return nil
	}

	var doc document
	if err := node.Content[0].Decode(&doc); err != nil {
		return err
	}

	// A root config key always claims the document; only a mapping applies.
	if doc.Config.Kind != 0 {
		if doc.Config.Kind != yaml.MappingNode {
			return nil
		}
		var g globalDoc
		if err := doc.Config.Decode(&g); err != nil {
			return err
		}
		b.applyGlobal(g)
		return nil
	}

	switch doc.Type {
	case "config":
		b.applyGlobal(doc.globalDoc)
	case "dict":
		return b.addStatic(doc)
	case "dynamic_dict":
		return b.addDynamic(doc)
	case "command":
		return b.addCommand(doc)
	}
	return nil
}

func (b *builder) applyGlobal(g globalDoc) {
	styles := maps.Clone(b.cfg.Global.Styles)
	set := func(key string, v *string) {
		if v != nil {
			styles[key] = *v
		}
	}
	set(StyleCompletion, g.StyleCompletion)
	set(StyleCompletionCurrent, g.StyleCompletionCurrent)
	set(StyleScrollbarBG, g.StyleScrollbarBG)
	set(StyleScrollbarButton, g.StyleScrollbarButton)
	b.cfg.Global.Styles = styles

	if g.PlaceholderColor != nil {
		b.cfg.Global.PlaceholderColor = *g.PlaceholderColor
	}
	if g.PlaceholderText != nil {
		b.cfg.Global.PlaceholderText = *g.PlaceholderText
	}
	if g.HistorySize != nil {
		b.cfg.Global.HistorySize = min(max(*g.HistorySize, 1), history.MaxSize)
	}
}

func (b *builder) claimSource(name string) error {
	if name == "" {
		return errors.New("data source without a name")
	}
	if name == store.HistoryKey {
		return fmt.Errorf("data source name %q is reserved", name)
	}
	if b.sourceNames[name] {
		return fmt.Errorf("data source %q declared more than once", name)
	}
	b.sourceNames[name] = true
	return nil
}

var envRef = regexp.MustCompile(`\$\$\{env\.(\w+)\}`)

// substituteEnv replaces $${env.NAME} with the environment value, or "" when unset.
func substituteEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(envRef.FindStringSubmatch(ref)[1])
	})
}

func (b *builder) addStatic(doc document) error {
	if err := b.claimSource(doc.Name); err != nil {
		return err
	}

	records := make([]datasource.Record, 0, len(doc.Data))
	for _, item := range doc.Data {
		rec := make(datasource.Record, len(item))
		for k, v := range item {
			if s, ok := v.(string); ok {
				rec[k] = substituteEnv(s)
				continue
			}
			rec[k] = datasource.StringifyValue(v)
		}
		records = append(records, rec)
	}

	b.cfg.Sources = append(b.cfg.Sources, &datasource.Static{Name: doc.Name, Records: records})
	return nil
}

func (b *builder) addDynamic(doc document) error {
	if err := b.claimSource(doc.Name); err != nil {
		return err
	}
	if doc.Command == "" {
		return fmt.Errorf("dynamic_dict %q has no command", doc.Name)
	}
	if len(doc.Mapping) == 0 {
		return fmt.Errorf("dynamic_dict %q has no mapping", doc.Name)
	}

	d := &datasource.Dynamic{
		Name:     doc.Name,
		Command:  doc.Command,
		Mapping:  doc.Mapping,
		Priority: datasource.DefaultPriority,
		Timeout:  datasource.DefaultTimeout,
		CacheTTL: datasource.DefaultCacheTTL,
	}
	if doc.Priority != nil {
		d.Priority = *doc.Priority
	}
	if doc.Timeout != nil {
		d.Timeout = seconds(*doc.Timeout)
	}
	if doc.CacheTTL != nil {
		d.CacheTTL = seconds(*doc.CacheTTL)
	}

	b.cfg.Sources = append(b.cfg.Sources, d)
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(max(n, 0)) * time.Second
}

func (b *builder) addCommand(doc document) error {
	if doc.Name == "" {
		return errors.New("command without a name")
	}
	if b.commandNames[doc.Name] {
		return fmt.Errorf("command %q declared more than once", doc.Name)
	}
	if err := checkNode("command "+doc.Name, doc.Alias, doc.Command); err != nil {
		return err
	}

	subs, err := buildSubs(doc.Name, doc.Sub)
	if err != nil {
		return err
	}
	args, err := buildArgs(doc.Name, doc.Args)
	if err != nil {
		return err
	}

	cmd := &alias.Command{
		Name:   doc.Name,
		Alias:  doc.Alias,
		Shell:  doc.Command,
		Help:   doc.Helper,
		Subs:   subs,
		Args:   args,
		Strict: doc.Strict,
	}
	if doc.Timeout != nil {
		cmd.Timeout = seconds(*doc.Timeout)
	}

	b.commandNames[doc.Name] = true
	b.cfg.Tree.Commands = append(b.cfg.Tree.Commands, cmd)
	return nil
}

func checkNode(what, aliasText, command string) error {
	if err := alias.CheckPattern(alias.ParsePattern(aliasText)); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if command == "" {
		return fmt.Errorf("%s: alias %q has no command", what, aliasText)
	}
	return nil
}

func buildSubs(parent string, docs []subDoc) ([]*alias.SubCommand, error) {
	subs := make([]*alias.SubCommand, 0, len(docs))
	for _, d := range docs {
		what := parent + " > " + d.Alias
		if err := checkNode("subcommand "+what, d.Alias, d.Command); err != nil {
			return nil, err
		}
		children, err := buildSubs(what, d.Sub)
		if err != nil {
			return nil, err
		}
		args, err := buildArgs(what, d.Args)
		if err != nil {
			return nil, err
		}
		subs = append(subs, &alias.SubCommand{
			Alias: d.Alias,
			Shell: d.Command,
			Help:  d.Helper,
			Subs:  children,
			Args:  args,
		})
	}
	return subs, nil
}

func buildArgs(parent string, docs []argDoc) ([]*alias.Arg, error) {
	args := make([]*alias.Arg, 0, len(docs))
	for _, d := range docs {
		if err := alias.CheckPattern(alias.ParsePattern(d.Alias)); err != nil {
			return nil, fmt.Errorf("arg %s > %s: %w", parent, d.Alias, err)
		}
		args = append(args, &alias.Arg{Alias: d.Alias, Shell: d.Command, Help: d.Helper})
	}
	return args, nil
}

// checkReferences makes sure every app variable names a declared source.
// Sources may be declared after the commands that use them.
func (b *builder) checkReferences() error {
	var missing error
	for _, c := range b.cfg.Tree.Commands {
		alias.Walk(c, func(n alias.Node) bool {
			for _, t := range n.Pattern() {
				if t.Kind == alias.TokenAppVar && !b.sourceNames[t.Source] && missing == nil {
					missing = fmt.Errorf("command %q: %s references unknown data source %q", c.Name, t.Text, t.Source)
				}
			}
			return missing == nil
		})
		if missing != nil {
			return missing
		}
	}
	return nil
}

// Lookup returns the source with the given name.
func (c *Config) Lookup(name string) (datasource.Source, bool) {
	for _, s := range c.Sources {
		if s.SourceName() == name {
			return s, true
		}
	}
	return nil, false
}

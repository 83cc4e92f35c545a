// Package cities holds the catalogue of Tamil Nadu districts that get their
// own rate page and blog posts, together with the site's static pages. The
// default catalogue is embedded; a YAML file can replace it at startup.
package cities

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed cities.yaml
var defaultCatalogue []byte

// Page is a static site page listed in the sitemap.
type Page struct {
	Path       string  `yaml:"path"`
	Priority   float64 `yaml:"priority"`
	ChangeFreq string  `yaml:"changefreq"`
}

// District is a catalogue entry.
type District struct {
	Name string `json:"name"` // display name, e.g. "Tiruchirappalli"
	Slug string `json:"slug"` // URL segment, e.g. "tiruchirappalli"
}

// Catalogue is an immutable set of districts and static pages.
type Catalogue struct {
	districts []District
	bySlug    map[string]District
	pages     []Page
}

type file struct {
	StaticPages []Page   `yaml:"static_pages"`
	Districts   []string `yaml:"districts"`
}

// Default returns the embedded catalogue. It panics if the embedded YAML is
// invalid, which is a build defect.
func Default() *Catalogue {
	c, err := Parse(defaultCatalogue)
	if err != nil {
		panic(fmt.Sprintf("cities: embedded catalogue: %v", err))
	}
	return c
}

// Load reads a catalogue from path, or returns Default when path is empty.
func Load(path string) (*Catalogue, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cities file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalogue. Duplicate districts (by slug) are rejected.
func Parse(data []byte) (*Catalogue, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse cities yaml: %w", err)
	}
	if len(f.Districts) == 0 {
		return nil, fmt.Errorf("cities: no districts")
	}
	c := &Catalogue{bySlug: make(map[string]District, len(f.Districts))}
	for _, name := range f.Districts {
		d := District{Name: DisplayName(name), Slug: Slug(name)}
		if d.Slug == "" {
			return nil, fmt.Errorf("cities: empty district name")
		}
		if _, dup := c.bySlug[d.Slug]; dup {
			return nil, fmt.Errorf("cities: duplicate district %q", name)
		}
		c.bySlug[d.Slug] = d
		c.districts = append(c.districts, d)
	}
	sort.SliceStable(c.districts, func(i, j int) bool { return c.districts[i].Slug < c.districts[j].Slug })

	for _, p := range f.StaticPages {
		if !strings.HasPrefix(p.Path, "/") {
			return nil, fmt.Errorf("cities: static page path %q must start with /", p.Path)
		}
		if p.Priority < 0 || p.Priority > 1 {
			return nil, fmt.Errorf("cities: priority for %q out of range", p.Path)
		}
		c.pages = append(c.pages, p)
	}
	return c, nil
}

// Lookup resolves a district by display name or slug, case-insensitively.
func (c *Catalogue) Lookup(city string) (District, bool) {
	d, ok := c.bySlug[Slug(city)]
	return d, ok
}

// Districts returns the districts ordered by slug.
func (c *Catalogue) Districts() []District {
	return append([]District(nil), c.districts...)
}

// StaticPages returns the static pages in file order.
func (c *Catalogue) StaticPages() []Page {
	return append([]Page(nil), c.pages...)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lower-cases s and collapses every run of non-alphanumerics into "-".
func Slug(s string) string {
	s = nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	return strings.Trim(s, "-")
}

var titleCaser = cases.Title(language.English)

// DisplayName title-cases a district name ("the nilgiris" -> "The Nilgiris").
func DisplayName(s string) string {
	return titleCaser.String(strings.Join(strings.Fields(s), " "))
}

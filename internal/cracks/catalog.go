// Package cracks holds the catalog of cryosphere crack events shown by the
// ice presentation.
package cracks

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed cracks.yaml
var defaultCatalog []byte

type Characteristics struct {
	Type                string   `yaml:"type" json:"type"`
	ContributingFactors []string `yaml:"contributing_factors" json:"contributing_factors"`
	Impact              string   `yaml:"impact" json:"impact"`
	Significance        string   `yaml:"significance" json:"significance"`
}

type Region struct {
	Name            string          `yaml:"region" json:"region"`
	Latitude        float64         `yaml:"latitude" json:"latitude"`
	Longitude       *float64        `yaml:"longitude" json:"longitude"`
	ElasticEnergy   float64         `yaml:"elastic_energy" json:"elastic_energy"`
	Characteristics Characteristics `yaml:"characteristics" json:"characteristics"`
}

// Summary is the one-line description used in the scrolling ticker:
// "Siberia (65.0, 120.0) [cracks by] a and b, its impact: c".
func (r Region) Summary() string {
	lng := "unknown"
	if r.Longitude != nil {
		lng = formatCoord(*r.Longitude)
	}
	factors := strings.Join(r.Characteristics.ContributingFactors, " and ")
	return fmt.Sprintf("%s (%s, %s) [cracks by] %s, its impact: %s",
		r.Name, formatCoord(r.Latitude), lng,
		strings.ToLower(factors), strings.ToLower(r.Characteristics.Impact))
}

func formatCoord(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

type Category struct {
	Name    string   `yaml:"name" json:"name"`
	Regions []Region `yaml:"regions" json:"regions"`
}

type Catalog struct {
	Categories []Category `yaml:"categories" json:"categories"`
}

// Point is one heat-map sample on the globe.
type Point struct {
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Energy float64 `json:"energy"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse crack catalog: %w", err)
	}
	for i, cat := range c.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return nil, fmt.Errorf("categories[%d]: name is required", i)
		}
		for j, r := range cat.Regions {
			if strings.TrimSpace(r.Name) == "" {
				return nil, fmt.Errorf("%s[%d]: region is required", cat.Name, j)
			}
		}
	}
	return &c, nil
}

// Points returns the regions with a known longitude, in catalog order, with
// energy scaled for the heat map.
func (c *Catalog) Points() []Point {
	out := []Point{}
	for _, cat := range c.Categories {
		for _, r := range cat.Regions {
			if r.Longitude == nil {
				continue
			}
			out = append(out, Point{Name: r.Name, Lat: r.Latitude, Lng: *r.Longitude, Energy: r.ElasticEnergy * 10})
		}
	}
	return out
}

// Summaries returns Region.Summary for every region in catalog order.
func (c *Catalog) Summaries() []string {
	out := []string{}
	for _, cat := range c.Categories {
		for _, r := range cat.Regions {
			out = append(out, r.Summary())
		}
	}
	return out
}

// Len is the number of regions.
func (c *Catalog) Len() int {
	n := 0
	for _, cat := range c.Categories {
		n += len(cat.Regions)
	}
	return n
}

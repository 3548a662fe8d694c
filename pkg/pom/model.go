// Package pom reads Maven project descriptors and derives the information a
// classpath needs from them: identity, repositories and the filtered list of
// runtime dependencies.
//
// A [Model] resolves its parent lazily through a [Lookup], merges inherited
// dependencyManagement tables and interpolates properties in a single pass.
// A parent that cannot be fetched or parsed is logged and ignored; a parent
// chain that revisits one of its ancestors fails with a CYCLE error.
package pom

import (
	"encoding/xml"
	"io"
	"strings"
)

// project is the subset of the POM schema the resolver reads.
type project struct {
	XMLName              xml.Name       `xml:"project"`
	GroupID              string         `xml:"groupId"`
	ArtifactID           string         `xml:"artifactId"`
	Version              string         `xml:"version"`
	Packaging            string         `xml:"packaging"`
	Name                 string         `xml:"name"`
	Description          string         `xml:"description"`
	Parent               *parentRef     `xml:"parent"`
	Properties           properties     `xml:"properties"`
	Dependencies         []dependency   `xml:"dependencies>dependency"`
	DependencyManagement []dependency   `xml:"dependencyManagement>dependencies>dependency"`
	Repositories         []repositoryEl `xml:"repositories>repository"`
}

type parentRef struct {
	GroupID      string `xml:"groupId"`
	ArtifactID   string `xml:"artifactId"`
	Version      string `xml:"version"`
	RelativePath string `xml:"relativePath"`
}

type dependency struct {
	GroupID    string      `xml:"groupId"`
	ArtifactID string      `xml:"artifactId"`
	Version    string      `xml:"version"`
	Type       string      `xml:"type"`
	Classifier string      `xml:"classifier"`
	Scope      string      `xml:"scope"`
	Optional   string      `xml:"optional"`
	Exclusions []exclusion `xml:"exclusions>exclusion"`
}

type exclusion struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
}

type repositoryEl struct {
	ID   string `xml:"id"`
	Name string `xml:"name"`
	URL  string `xml:"url"`
}

// Property is one entry of the properties section.
type Property struct {
	Name  string
	Value string
}

// properties keeps document order, which encoding/xml maps cannot.
type properties []Property

func (p *properties) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var v string
			if err := d.DecodeElement(&v, &t); err != nil {
				return err
			}
			*p = append(*p, Property{Name: t.Name.Local, Value: strings.TrimSpace(v)})
		case xml.EndElement:
			return nil
		}
	}
}

func (d dependency) typ() string {
	if t := strings.TrimSpace(d.Type); t != "" {
		return t
	}
	return "jar"
}

func (d dependency) optional() bool {
	return strings.EqualFold(strings.TrimSpace(d.Optional), "true")
}

func decode(r io.Reader) (*project, error) {
	var p project
	dec := xml.NewDecoder(r)
	dec.Strict = false
	// Non-UTF-8 declarations are read as is; ids and versions are ASCII.
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	trim(&p)
	return &p, nil
}

func trim(p *project) {
	p.GroupID = strings.TrimSpace(p.GroupID)
	p.ArtifactID = strings.TrimSpace(p.ArtifactID)
	p.Version = strings.TrimSpace(p.Version)
	if p.Parent != nil {
		p.Parent.GroupID = strings.TrimSpace(p.Parent.GroupID)
		p.Parent.ArtifactID = strings.TrimSpace(p.Parent.ArtifactID)
		p.Parent.Version = strings.TrimSpace(p.Parent.Version)
	}
	for _, list := range [][]dependency{p.Dependencies, p.DependencyManagement} {
		for i := range list {
			d := &list[i]
			d.GroupID = strings.TrimSpace(d.GroupID)
			d.ArtifactID = strings.TrimSpace(d.ArtifactID)
			d.Version = strings.TrimSpace(d.Version)
			d.Classifier = strings.TrimSpace(d.Classifier)
			d.Scope = strings.TrimSpace(d.Scope)
		}
	}
	for i := range p.Repositories {
		p.Repositories[i].ID = strings.TrimSpace(p.Repositories[i].ID)
		p.Repositories[i].URL = strings.TrimSpace(p.Repositories[i].URL)
	}
}

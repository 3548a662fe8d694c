// Package metadata reads maven-metadata.xml documents and resolves version
// ranges and the RELEASE/LATEST markers against a list of repositories.
package metadata

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/matzehuels/classpath/pkg/errors"
)

// Metadata is a maven-metadata.xml document, either at artifact level
// (listing versions) or at version level (describing a snapshot).
type Metadata struct {
	XMLName    xml.Name   `xml:"metadata"`
	GroupID    string     `xml:"groupId"`
	ArtifactID string     `xml:"artifactId"`
	Version    string     `xml:"version"`
	Versioning Versioning `xml:"versioning"`
}

// Versioning holds the version lists and snapshot information.
type Versioning struct {
	Latest           string            `xml:"latest"`
	Release          string            `xml:"release"`
	Versions         []string          `xml:"versions>version"`
	LastUpdated      string            `xml:"lastUpdated"`
	Snapshot         Snapshot          `xml:"snapshot"`
	SnapshotVersions []SnapshotVersion `xml:"snapshotVersions>snapshotVersion"`
}

// Snapshot identifies the latest deployment of a snapshot version.
type Snapshot struct {
	Timestamp   string `xml:"timestamp"`
	BuildNumber int    `xml:"buildNumber"`
	LocalCopy   bool   `xml:"localCopy"`
}

// SnapshotVersion maps one file of a snapshot deployment to its
// timestamped version.
type SnapshotVersion struct {
	Classifier string `xml:"classifier"`
	Extension  string `xml:"extension"`
	Value      string `xml:"value"`
	Updated    string `xml:"updated"`
}

// Parse decodes a maven-metadata.xml document.
func Parse(data []byte) (*Metadata, error) {
	var m Metadata
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "malformed repository metadata")
	}
	for i, v := range m.Versioning.Versions {
		m.Versioning.Versions[i] = strings.TrimSpace(v)
	}
	return &m, nil
}

// AllVersions returns the listed versions plus the latest and release
// markers when they are not listed.
func (m *Metadata) AllVersions() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(v string) {
		if v = strings.TrimSpace(v); v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range m.Versioning.Versions {
		add(v)
	}
	add(m.Versioning.Release)
	add(m.Versioning.Latest)
	return out
}

// SnapshotValue returns the timestamped version of the file with the given
// classifier and extension, or "" when the document does not describe one.
// base is the "-SNAPSHOT" version the document belongs to.
func (m *Metadata) SnapshotValue(base, classifier, extension string) string {
	for _, sv := range m.Versioning.SnapshotVersions {
		if sv.Classifier == classifier && sv.Extension == extension && sv.Value != "" {
			return sv.Value
		}
	}
	s := m.Versioning.Snapshot
	if s.Timestamp == "" || s.BuildNumber == 0 || s.LocalCopy {
		return ""
	}
	return strings.TrimSuffix(base, "SNAPSHOT") + s.Timestamp + "-" + strconv.Itoa(s.BuildNumber)
}

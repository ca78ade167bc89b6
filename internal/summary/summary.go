// Package summary merges analyzer results and qualitative content into one report document.
package summary

import (
	"bytes"
	"encoding/json"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"epicscope/internal/analysis"
	"epicscope/internal/hierarchy"
	"epicscope/internal/llm"
)

// Section statuses.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusMissing = "missing"
	StatusAbsent  = "absent"
)

// SectionQualitative is reserved for the model-written narrative.
const SectionQualitative = "qualitative"

// SectionOrder is the fixed leading order of sections. Other analyzers follow alphabetically.
var SectionOrder = []string{
	SectionQualitative,
	string(analysis.KindScope),
	string(analysis.KindStatus),
	string(analysis.KindBacklog),
	string(analysis.KindTimeCreep),
	string(analysis.KindDynamics),
}

// Section is one named part of the document. Data is nil unless Status is ok.
type Section struct {
	Name   string        `json:"-"`
	Status string        `json:"status"`
	Kind   analysis.Kind `json:"kind,omitempty"`
	Error  string        `json:"error,omitempty"`
	Data   any           `json:"data,omitempty"`
}

// Provenance describes the inputs of a run.
type Provenance struct {
	EpicKey      string               `json:"epic"`
	RunID        string               `json:"runId"`
	GeneratedAt  time.Time            `json:"generatedAt"`
	Mode         string               `json:"mode"`
	SourceTimes  map[string]time.Time `json:"sourceTimes"`
	OldestSource *time.Time           `json:"oldestSource,omitempty"`
	NewestSource *time.Time           `json:"newestSource,omitempty"`
	Unresolved   []string             `json:"unresolved,omitempty"`
	Anomalies    []hierarchy.Anomaly  `json:"anomalies,omitempty"`
}

// NewProvenance collects the snapshot times and structural anomalies of tree under a fresh run id.
func NewProvenance(tree *hierarchy.Tree, mode string, now time.Time) Provenance {
	p := Provenance{
		EpicKey:     tree.Root().Key,
		RunID:       uuid.NewString(),
		GeneratedAt: now.UTC(),
		Mode:        mode,
		SourceTimes: tree.SourceTimes(),
		Anomalies:   tree.Anomalies(),
	}
	for _, ts := range p.SourceTimes {
		if p.OldestSource == nil || ts.Before(*p.OldestSource) {
			t := ts
			p.OldestSource = &t
		}
		if p.NewestSource == nil || ts.After(*p.NewestSource) {
			t := ts
			p.NewestSource = &t
		}
	}
	for _, n := range tree.Unresolved() {
		p.Unresolved = append(p.Unresolved, n.Key)
	}
	return p
}

// Document is the merged summary of one run. It is not modified after Merge returns.
type Document struct {
	meta     Provenance
	sections []Section
}

// Merge places every registered analyzer, every delivered result and the qualitative content into
// its own section. Nothing is dropped: failures keep their reason, a registered analyzer without
// result becomes a missing section and absent qualitative content an absent one.
// An analyzer named like a reserved section is filed under "analyzer_<name>".
func Merge(meta Provenance, registered []string, results map[string]analysis.Result, q *llm.Qualitative, qErr error) *Document {
	doc := &Document{meta: meta}

	qs := Section{Name: SectionQualitative, Status: StatusOK, Data: q}
	if q == nil {
		qs = Section{Name: SectionQualitative, Status: StatusAbsent}
		if qErr != nil {
			qs.Error = qErr.Error()
		}
	}
	doc.sections = append(doc.sections, qs)

	names := map[string]bool{}
	for _, n := range registered {
		names[n] = true
	}
	for n := range results {
		names[n] = true
	}

	var ordered []string
	for _, n := range SectionOrder[1:] {
		if names[n] {
			ordered = append(ordered, n)
		}
	}
	var rest []string
	for n := range names {
		if !slices.Contains(SectionOrder, n) || n == SectionQualitative {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	ordered = append(ordered, rest...)

	for _, name := range ordered {
		sectionName := name
		if name == SectionQualitative {
			sectionName = "analyzer_" + name
		}
		res, ok := results[name]
		switch {
		case !ok:
			doc.sections = append(doc.sections, Section{Name: sectionName, Status: StatusMissing, Error: "no result for registered analyzer"})
		case !res.OK:
			doc.sections = append(doc.sections, Section{Name: sectionName, Status: StatusFailed, Kind: res.Kind, Error: res.Error})
		default:
			doc.sections = append(doc.sections, Section{Name: sectionName, Status: StatusOK, Kind: res.Kind, Data: res.Payload})
		}
	}
	return doc
}

func (d *Document) Provenance() Provenance { return d.meta }

// Sections returns a copy of the sections in document order.
func (d *Document) Sections() []Section {
	return slices.Clone(d.sections)
}

func (d *Document) Section(name string) (Section, bool) {
	for _, s := range d.sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// Names lists section names in document order.
func (d *Document) Names() []string {
	out := make([]string, len(d.sections))
	for i, s := range d.sections {
		out[i] = s.Name
	}
	return out
}

// Holes lists the sections that are not ok.
func (d *Document) Holes() []Section {
	var out []Section
	for _, s := range d.sections {
		if s.Status != StatusOK {
			out = append(out, s)
		}
	}
	return out
}

// MarshalJSON writes sections as an object whose keys keep document order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	meta, err := json.Marshal(d.meta)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"provenance":`)
	buf.Write(meta)
	buf.WriteString(`,"sections":{`)
	for i, s := range d.sections {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(s.Name)
		body, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

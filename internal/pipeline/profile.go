package pipeline

import (
	"time"

	"epicscope/internal/analysis"
	"epicscope/internal/config"
	"epicscope/internal/eventlog"
	"epicscope/internal/hierarchy"
	"epicscope/internal/simulation"
	"epicscope/internal/stats"
)

// Conventions are the profile settings in the shape each component consumes.
type Conventions struct {
	Taxonomy hierarchy.Taxonomy
	Fields   eventlog.FieldMap
	Stats    stats.Options
	Dynamics bool
	Forecast bool
}

// ConventionsFrom translates a profile.
func ConventionsFrom(p *config.Profile) (Conventions, error) {
	loc, err := p.Location()
	if err != nil {
		return Conventions{}, err
	}

	c := Conventions{
		Taxonomy: hierarchy.Taxonomy{Default: p.Hierarchy.DefaultLinks, ByType: p.Hierarchy.ByType},
		Fields:   eventlog.DefaultFieldMap(),
		Dynamics: p.EnableDynamics,
		Forecast: p.EnableForecast,
		Stats: stats.Options{
			StoryTypes:        eventlog.NewStatusSet(p.StoryTypes...),
			EpicTypes:         eventlog.NewStatusSet(p.EpicTypes...),
			BugTypes:          eventlog.NewStatusSet(p.BugTypes...),
			CompletedStatuses: eventlog.NewStatusSet(p.CompletedStatuses...),
			CodingStatuses:    eventlog.NewStatusSet(p.CodingStatuses...),
			TeamField:         p.TeamField,
			ProjectNames:      p.ProjectNames,
			Location:          loc,
			Versions: stats.VersionScheme{
				AnchorPI:      p.VersionAnchor.PI,
				AnchorYear:    p.VersionAnchor.Year,
				AnchorQuarter: p.VersionAnchor.Quarter,
				PIsPerYear:    p.VersionAnchor.PIsPerYear,
			},
		},
	}
	if len(c.Taxonomy.Default) == 0 && len(c.Taxonomy.ByType) == 0 {
		c.Taxonomy = hierarchy.DefaultTaxonomy()
	}
	if len(p.Fields) > 0 {
		c.Fields = eventlog.NewFieldMap(p.Fields)
	}
	return c, nil
}

// NewRegistry registers the standard analyzers; dynamics and forecast only when enabled.
func NewRegistry(c Conventions, timeout time.Duration) *analysis.Registry {
	reg := analysis.NewRegistry()
	reg.Timeout = timeout
	analyzers := []analysis.Analyzer{
		stats.NewScopeAnalyzer(c.Stats),
		stats.NewStatusDurationAnalyzer(c.Stats),
		stats.NewBacklogEvolutionAnalyzer(c.Stats),
		stats.NewTimeCreepAnalyzer(c.Stats),
	}
	if c.Dynamics {
		analyzers = append(analyzers, stats.NewDynamicsAnalyzer(c.Stats))
	}
	if c.Forecast {
		analyzers = append(analyzers, simulation.NewForecastAnalyzer(c.Stats))
	}
	for _, a := range analyzers {
		// Names are fixed and distinct.
		_ = reg.Register(a)
	}
	return reg
}

package testcase

// Metadata is the accumulative, chainable test-case metadata.
// Conflicts between an initial Metadata value and later fluent calls
// resolve in favour of the fluent calls, except Tags/Issues (which
// concatenate) and Labels (which merge).
type Metadata struct {
	ID          string
	Epic        string
	Feature     string
	Story       string
	Severity    string
	Description string
	Tags        []string
	Issues      []string
	Labels      map[string]string
}

// WithID sets the metadata ID, overriding any prior value.
func (m Metadata) WithID(id string) Metadata { m.ID = id; return m }

// WithEpic sets the epic.
func (m Metadata) WithEpic(epic string) Metadata { m.Epic = epic; return m }

// WithFeature sets the feature.
func (m Metadata) WithFeature(feature string) Metadata { m.Feature = feature; return m }

// WithStory sets the story.
func (m Metadata) WithStory(story string) Metadata { m.Story = story; return m }

// WithSeverity sets the severity.
func (m Metadata) WithSeverity(severity string) Metadata { m.Severity = severity; return m }

// WithDescription sets the description.
func (m Metadata) WithDescription(desc string) Metadata { m.Description = desc; return m }

// WithTag appends one tag (tags concatenate rather than overwrite).
func (m Metadata) WithTag(tag string) Metadata { m.Tags = append(m.Tags, tag); return m }

// WithTags appends multiple tags.
func (m Metadata) WithTags(tags ...string) Metadata { m.Tags = append(m.Tags, tags...); return m }

// WithIssue appends one issue reference.
func (m Metadata) WithIssue(issue string) Metadata { m.Issues = append(m.Issues, issue); return m }

// WithLabel merges one label into the label map.
func (m Metadata) WithLabel(key, value string) Metadata {
	if m.Labels == nil {
		m.Labels = map[string]string{}
	}
	m.Labels[key] = value
	return m
}

// Merge combines base with override: override's scalar fields win when
// set, Tags/Issues concatenate, Labels merge.
func Merge(base, override Metadata) Metadata {
	out := base
	if override.ID != "" {
		out.ID = override.ID
	}
	if override.Epic != "" {
		out.Epic = override.Epic
	}
	if override.Feature != "" {
		out.Feature = override.Feature
	}
	if override.Story != "" {
		out.Story = override.Story
	}
	if override.Severity != "" {
		out.Severity = override.Severity
	}
	if override.Description != "" {
		out.Description = override.Description
	}
	out.Tags = append(append([]string{}, base.Tags...), override.Tags...)
	out.Issues = append(append([]string{}, base.Issues...), override.Issues...)
	out.Labels = map[string]string{}
	for k, v := range base.Labels {
		out.Labels[k] = v
	}
	for k, v := range override.Labels {
		out.Labels[k] = v
	}
	return out
}

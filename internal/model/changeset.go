package model

// ChangeSet is the golden patch: the source files a change request touches,
// in discovery order. Config files are tracked separately because they must
// be applied alongside the change but never receive tests.
type ChangeSet struct {
	Sources   []FileDiff
	Config    []FileDiff
	Tests     []FileDiff
	Unrelated []FileDiff
}

// Add files the diff under its kind, keeping discovery order.
func (c *ChangeSet) Add(diff FileDiff) {
	switch diff.Kind() {
	case KindSource:
		c.Sources = append(c.Sources, diff)
	case KindConfig:
		c.Config = append(c.Config, diff)
	case KindTest:
		c.Tests = append(c.Tests, diff)
	default:
		c.Unrelated = append(c.Unrelated, diff)
	}
}

// All returns every tracked diff, sources first.
func (c ChangeSet) All() []FileDiff {
	all := make([]FileDiff, 0, len(c.Sources)+len(c.Config)+len(c.Tests)+len(c.Unrelated))
	all = append(all, c.Sources...)
	all = append(all, c.Config...)
	all = append(all, c.Tests...)
	all = append(all, c.Unrelated...)

	return all
}

// FulfillsRequirements reports whether the change is a candidate for test
// synthesis: at least one source file and no test or unrelated files.
func (c ChangeSet) FulfillsRequirements() bool {
	return len(c.Sources) > 0 && len(c.Tests) == 0 && len(c.Unrelated) == 0
}

// Resolve finds the source diff a generator-supplied filename refers to.
func (c ChangeSet) Resolve(name Path) (FileDiff, bool) {
	for _, d := range c.Sources {
		if d.Name == name {
			return d, true
		}
	}

	for _, d := range c.Sources {
		if d.MatchesPath(name) {
			return d, true
		}
	}

	return FileDiff{}, false
}

// WithReplacedAfter returns the source and config diffs with the named file's
// post-change content swapped for content. Used to build the post-patch
// variant of a generated test.
func (c ChangeSet) WithReplacedAfter(name Path, content string) []FileDiff {
	out := make([]FileDiff, 0, len(c.Sources)+len(c.Config))

	for _, d := range append(append([]FileDiff{}, c.Sources...), c.Config...) {
		if d.Name == name {
			d.After = content
		}

		if d.Before == d.After {
			continue
		}

		out = append(out, d)
	}

	return out
}

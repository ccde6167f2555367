package types

/*
ToolFilter narrows which tools of an endpoint are exposed or callable.
A nil filter allows everything. When an include list is present the tool
must be in it; the exclude list always wins over include.
*/
type ToolFilter struct {
	Include []string `json:"include,omitempty" mapstructure:"include"`
	Exclude []string `json:"exclude,omitempty" mapstructure:"exclude"`
}

// Allowed reports whether the named tool passes the filter.
func (f *ToolFilter) Allowed(name string) bool {
	if f == nil {
		return true
	}
	if len(f.Include) > 0 && !contains(f.Include, name) {
		return false
	}
	return !contains(f.Exclude, name)
}

func contains(names []string, name string) bool {
	for _, candidate := range names {
		if candidate == name {
			return true
		}
	}
	return false
}

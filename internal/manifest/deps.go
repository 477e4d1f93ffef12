package manifest

// DependencyIssue lists the declared dependencies of one module that are not
// present in the validated set.
type DependencyIssue struct {
	ModuleName          string   `json:"moduleName"`
	MissingDependencies []string `json:"missingDependencies"`
}

// ValidateDependencies checks every declared dependency against the names of
// all manifests passed in, whatever their enabled state. Only modules with at
// least one missing dependency are reported, missing names keep declaration
// order. This is a presence check: no cycles, ordering or versions.
func ValidateDependencies(manifests []Manifest) []DependencyIssue {
	installed := make(map[string]struct{}, len(manifests))
	for _, m := range manifests {
		installed[m.Name] = struct{}{}
	}
	issues := []DependencyIssue{}
	for _, m := range manifests {
		var missing []string
		for _, dep := range m.Dependencies {
			if _, ok := installed[dep]; !ok {
				missing = append(missing, dep)
			}
		}
		if len(missing) == 0 {
			continue
		}
		issues = append(issues, DependencyIssue{
			ModuleName:          m.Name,
			MissingDependencies: missing,
		})
	}
	return issues
}

// Duplicate describes a module name claimed by more than one manifest.
type Duplicate struct {
	Name  string
	Count int
}

// Duplicates reports names that appear more than once, in first-seen order.
func Duplicates(manifests []Manifest) []Duplicate {
	counts := make(map[string]int, len(manifests))
	var order []string
	for _, m := range manifests {
		if counts[m.Name] == 0 {
			order = append(order, m.Name)
		}
		counts[m.Name]++
	}
	var dups []Duplicate
	for _, name := range order {
		if counts[name] > 1 {
			dups = append(dups, Duplicate{Name: name, Count: counts[name]})
		}
	}
	return dups
}

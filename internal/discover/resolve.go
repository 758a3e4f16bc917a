package discover

import (
	"sort"
	"strings"
)

// ResolveOperationIDs resolves short method names to operation IDs.
//
// Given ["Authenticate", "SignUp"], returns
// ["AuthService_Authenticate", "AuthService_SignUp"]. Names may be bare
// ("Authenticate") or service-qualified ("AuthService.Authenticate").
// Qualified names match exactly; bare names resolve only when exactly one
// service declares them.
func ResolveOperationIDs(meta *Metadata, methodNames []string) ([]string, error) {
	resolved := make([]string, 0, len(methodNames))
	for _, name := range methodNames {
		id, err := resolveOperationID(meta, name)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, id)
	}
	return resolved, nil
}

func resolveOperationID(meta *Metadata, name string) (string, error) {
	if service, method, ok := strings.Cut(name, "."); ok {
		qualified := service + "_" + method
		for _, e := range meta.OperationIDs {
			if e.OperationID == qualified {
				return e.OperationID, nil
			}
		}
		return "", &MethodNotFoundError{Method: name}
	}

	var matches []string
	for _, e := range meta.OperationIDs {
		if e.MethodName == name {
			matches = append(matches, e.OperationID)
		}
	}

	switch len(matches) {
	case 0:
		return "", &MethodNotFoundError{Method: name}
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", &AmbiguousMethodError{Method: name, Candidates: matches}
	}
}

package patch

// addSecuritySchemes installs the bearer JWT scheme, sets it as the
// global default, and overrides public operations with empty security.
//
// Merges into existing securitySchemes and security rather than
// replacing, so user-defined schemes (apiKey, oauth2) survive. Safe to
// run twice: bearerAuth is only appended once.
func addSecuritySchemes(doc map[string]any, publicOps []string, bearerDescription string) {
	description := bearerDescription
	if description == "" {
		description = "Bearer authentication token"
	}

	if components := asMap(doc["components"]); components != nil {
		schemes := asMap(components["securitySchemes"])
		if schemes == nil {
			schemes = map[string]any{}
			components["securitySchemes"] = schemes
		}
		schemes["bearerAuth"] = map[string]any{
			"type":         "http",
			"scheme":       "bearer",
			"bearerFormat": "JWT",
			"description":  description,
		}
	}

	security := asSlice(doc["security"])
	hasBearer := false
	for _, item := range security {
		if m := asMap(item); m != nil {
			if _, ok := m["bearerAuth"]; ok {
				hasBearer = true
				break
			}
		}
	}
	if !hasBearer {
		security = append(security, map[string]any{"bearerAuth": []any{}})
	}
	doc["security"] = security

	forEachOperation(doc, func(_, _ string, op map[string]any) {
		opID, _ := asString(op["operationId"])
		for _, id := range publicOps {
			if id == opID {
				op["security"] = []any{}
				return
			}
		}
	})
}

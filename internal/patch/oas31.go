package patch

import "strings"

// upgradeVersion sets openapi: "3.1.0".
func upgradeVersion(doc map[string]any) {
	doc["openapi"] = "3.1.0"
}

// convertNullable rewrites nullable: true to type: [original, "null"]
// (JSON Schema 2020-12) and drops nullable: false, which is a no-op in
// 3.1.
func convertNullable(value any) {
	switch v := value.(type) {
	case map[string]any:
		if nullable, ok := v["nullable"]; ok {
			if nullable == true {
				if typeVal, ok := v["type"]; ok {
					v["type"] = []any{typeVal, "null"}
				}
			}
			delete(v, "nullable")
		}
		for _, child := range v {
			convertNullable(child)
		}
	case []any:
		for _, item := range v {
			convertNullable(item)
		}
	}
}

// normalizeLineEndings collapses CRLF to LF in every string value.
func normalizeLineEndings(doc map[string]any) {
	normalizeStrings(doc)
}

func normalizeStrings(value any) {
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			if s, ok := asString(child); ok {
				if strings.Contains(s, "\r\n") {
					v[k] = strings.ReplaceAll(s, "\r\n", "\n")
				}
				continue
			}
			normalizeStrings(child)
		}
	case []any:
		for i, item := range v {
			if s, ok := asString(item); ok {
				if strings.Contains(s, "\r\n") {
					v[i] = strings.ReplaceAll(s, "\r\n", "\n")
				}
				continue
			}
			normalizeStrings(item)
		}
	}
}

// injectServersAndInfo merges configured server entries and info block
// overrides into the document. Existing info fields not covered by an
// override are left alone.
func injectServersAndInfo(doc map[string]any, servers []Server, info *Info) {
	if len(servers) > 0 {
		entries := make([]any, 0, len(servers))
		for _, s := range servers {
			entry := map[string]any{"url": s.URL}
			if s.Description != "" {
				entry["description"] = s.Description
			}
			entries = append(entries, entry)
		}
		doc["servers"] = entries
	}

	if info == nil {
		return
	}

	infoMap := asMap(doc["info"])
	ensureInfo := func() map[string]any {
		if infoMap == nil {
			infoMap = map[string]any{}
			doc["info"] = infoMap
		}
		return infoMap
	}

	if info.Title != "" {
		ensureInfo()["title"] = info.Title
	}
	if info.Version != "" {
		ensureInfo()["version"] = info.Version
	}
	if info.Description != "" {
		ensureInfo()["description"] = info.Description
	}
	if c := info.Contact; c != nil {
		contact := map[string]any{}
		if c.Name != "" {
			contact["name"] = c.Name
		}
		if c.Email != "" {
			contact["email"] = c.Email
		}
		if c.URL != "" {
			contact["url"] = c.URL
		}
		ensureInfo()["contact"] = contact
	}
	if l := info.License; l != nil {
		license := map[string]any{"name": l.Name}
		if l.URL != "" {
			license["url"] = l.URL
		}
		ensureInfo()["license"] = license
	}
	if info.TermsOfService != "" {
		ensureInfo()["termsOfService"] = info.TermsOfService
	}

	// externalDocs lives at the document root, not under info.
	if e := info.ExternalDocs; e != nil {
		externalDocs := map[string]any{"url": e.URL}
		if e.Description != "" {
			externalDocs["description"] = e.Description
		}
		doc["externalDocs"] = externalDocs
	}
}

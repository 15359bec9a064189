package publish

import (
	"time"
)

// The backend's typed-value envelope: every field value is wrapped in a
// single-key object naming its type.

func fsString(s string) map[string]any { return map[string]any{"stringValue": s} }

func fsInt(n int64) map[string]any { return map[string]any{"integerValue": n} }

func fsBool(b bool) map[string]any { return map[string]any{"booleanValue": b} }

func fsTime(t time.Time) map[string]any {
	return map[string]any{"timestampValue": t.UTC().Format("2006-01-02T15:04:05.000Z")}
}

func fsStringArray(items []string) map[string]any {
	values := make([]any, 0, len(items))
	for _, item := range items {
		values = append(values, fsString(item))
	}
	return map[string]any{"arrayValue": map[string]any{"values": values}}
}

// updateFields are the envelope fields written on every publish. New
// documents additionally get creation timestamps and zeroed counters.
func updateFields(req Request, attachmentURL string, now time.Time) map[string]any {
	fields := map[string]any{
		"title":       fsString(req.Title),
		"slug":        fsString(req.Slug),
		"excerpt":     fsString(req.Excerpt),
		"category":    fsString(req.Category),
		"tags":        fsStringArray(req.Tags),
		"content":     fsString(req.ContentMarkdown),
		"author":      fsString(req.AuthorName),
		"published":   fsBool(req.Visible),
		"publishedAt": fsTime(now),
		"updatedAt":   fsTime(now),
	}
	if attachmentURL != "" {
		fields["attachmentUrl"] = fsString(attachmentURL)
		fields["attachmentName"] = fsString(req.AttachmentName)
	}
	return fields
}

func createFields(req Request, attachmentURL string, now time.Time) map[string]any {
	fields := updateFields(req, attachmentURL, now)
	fields["createdAt"] = fsTime(now)
	fields["viewCount"] = fsInt(0)
	fields["likeCount"] = fsInt(0)
	return fields
}

// fieldPaths lists the mask for a PATCH, matching updateFields' keys.
func fieldPaths(fields map[string]any) []string {
	paths := make([]string, 0, len(fields))
	for k := range fields {
		paths = append(paths, k)
	}
	return paths
}

// slugQuery is the runQuery body finding one document by slug.
func slugQuery(collection, slug string) map[string]any {
	return map[string]any{
		"structuredQuery": map[string]any{
			"from": []any{map[string]any{"collectionId": collection}},
			"where": map[string]any{
				"fieldFilter": map[string]any{
					"field": map[string]any{"fieldPath": "slug"},
					"op":    "EQUAL",
					"value": fsString(slug),
				},
			},
			"limit": 1,
		},
	}
}

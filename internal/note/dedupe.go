package note

import (
	"slices"
	"strconv"
)

// DedupeAttachments merges incoming into existing. Every existing
// attachment is kept; an incoming one is appended only when it shares no
// key with what is already there: the data URL, the preview URL, the id,
// or the (name, size) pair. The first occurrence wins and order is kept.
func DedupeAttachments(existing, incoming []Attachment) []Attachment {
	result := make([]Attachment, 0, len(existing)+len(incoming))
	signatures := make(map[string]struct{}, 4*(len(existing)+len(incoming)))
	register := func(keys []string) {
		for _, key := range keys {
			signatures[key] = struct{}{}
		}
	}

	for _, a := range existing {
		register(attachmentKeys(a))
		result = append(result, a)
	}
	for _, a := range incoming {
		keys := attachmentKeys(a)
		if slices.ContainsFunc(keys, func(key string) bool {
			_, ok := signatures[key]
			return ok
		}) {
			continue
		}
		register(keys)
		result = append(result, a)
	}
	return result
}

// attachmentKeys namespaces each candidate so that an id can never
// collide with a URL. Data and preview URLs share one namespace.
func attachmentKeys(a Attachment) []string {
	keys := make([]string, 0, 4)
	if a.DataURL != "" {
		keys = append(keys, "url:"+a.DataURL)
	}
	if a.PreviewURL != "" && a.PreviewURL != a.DataURL {
		keys = append(keys, "url:"+a.PreviewURL)
	}
	if a.ID != "" {
		keys = append(keys, "id:"+a.ID)
	}
	if a.Name != "" {
		keys = append(keys, "name-size:"+a.Name+"\x00"+strconv.FormatInt(a.Size, 10))
	}
	return keys
}

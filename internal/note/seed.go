package note

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SeedNotes returns the sample collection shown when neither store has
// any notes. Timestamps are relative to now.
func SeedNotes(now time.Time) []Note {
	now = now.UTC()
	return []Note{
		{
			ID:    "1",
			Title: "Mobile UX notes",
			Content: "### Interaction checklist\n- Check haptic feedback\n- Accessibility labels (VoiceOver)\n- Contrast in light and dark mode\n\n" +
				"> Review everything above before the next sprint",
			Category: "research",
			Tags: []Tag{
				{ID: "ux", Label: "UX"},
				{ID: "mobile", Label: "Mobile"},
			},
			Attachments: []Attachment{
				{ID: "att-1", Name: "motion-reference.mp4", Size: 6_553_600, Type: "video/mp4"},
			},
			CreatedAt: now.Add(-48 * time.Hour),
			UpdatedAt: now.Add(-6 * time.Hour),
		},
		{
			ID:    "2",
			Title: "Portfolio content plan",
			Content: "- Pick three flagship projects\n- Prepare before/after KPI charts\n- Pull five quotes from user interviews\n\n" +
				"**Todo**: document the upload flow",
			Category: "branding",
			Tags: []Tag{
				{ID: "branding", Label: "Branding"},
				{ID: "netlify", Label: "Netlify"},
			},
			Attachments: []Attachment{
				{ID: "att-2", Name: "wireframe-v2.fig", Size: 2_448_640, Type: DefaultAttachmentType},
				{
					ID:         "att-3",
					Name:       "hero-mock.png",
					Size:       1_048_576,
					Type:       "image/png",
					PreviewURL: "https://images.unsplash.com/photo-1522199990770-6929e039bf0c?auto=format&fit=crop&w=600&q=80",
				},
			},
			CreatedAt: now.Add(-5 * 24 * time.Hour),
			UpdatedAt: now.Add(-48 * time.Hour),
		},
		{
			ID:    "3",
			Title: "Data model",
			Content: "```sql\nCREATE TABLE notes (\n  id uuid PRIMARY KEY,\n  title text NOT NULL,\n  content text,\n  category text,\n" +
				"  tags text[],\n  created_at timestamptz DEFAULT now(),\n  updated_at timestamptz DEFAULT now()\n);\n```",
			Category: "backend",
			Tags: []Tag{
				{ID: "postgres", Label: "PostgreSQL"},
				{ID: "schema", Label: "Schema"},
			},
			Attachments: []Attachment{},
			CreatedAt:   now.Add(-8 * 24 * time.Hour),
			UpdatedAt:   now.Add(-24 * time.Hour),
		},
	}
}

// ReadSeedFile reads sample notes from a list of notes in a JSON file, or
// a YAML file when the extension is .yml or .yaml. Entries that cannot be
// normalized are dropped.
func ReadSeedFile(path string) ([]Note, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile(%s) > %w", path, err)
	}
	var raw []RawNote
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("yaml.Unmarshal(%s) > %w", path, err)
		}
	default:
		if err := json.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("json.Unmarshal(%s) > %w", path, err)
		}
	}
	notes := make([]Note, 0, len(raw))
	for _, entry := range raw {
		if n, err := NormalizeNote(entry); err == nil {
			notes = append(notes, n)
		}
	}
	return notes, nil
}

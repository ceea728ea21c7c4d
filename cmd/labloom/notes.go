package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/labloom/internal/note"
	"github.com/at-ishikawa/labloom/internal/reconcile"
)

func newListCommand(c *cliContext) *cobra.Command {
	var filter note.Filter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			a.controller.SetFilter(filter)
			if snapshot := a.controller.Snapshot(); !snapshot.Status.Degraded() {
				printStatus(c.out, snapshot)
			}
			printNoteList(c.out, a.controller.Visible())
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&filter.Search, "search", "", "Search title, content and tag labels")
	flags.StringVar(&filter.Category, "category", "", "Only notes of this category")
	flags.StringSliceVar(&filter.Tags, "tag", nil, "Only notes carrying every given tag id")
	return cmd
}

func newShowCommand(c *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <note id>",
		Short: "Show a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			if !a.controller.Select(args[0]) {
				return fmt.Errorf("%w: %s", note.ErrNotFound, args[0])
			}
			selected, _ := a.controller.Selected()
			printNote(c.out, selected)
			return nil
		},
	}
}

// noteFlags are the editable fields shared by new and edit.
type noteFlags struct {
	title       string
	content     string
	contentFile string
	category    string
	tags        string
	attach      []string
	detach      []string
}

func (f *noteFlags) register(cmd *cobra.Command, withDetach bool) {
	flags := cmd.Flags()
	flags.StringVar(&f.title, "title", "", "Title of the note")
	flags.StringVar(&f.content, "content", "", "Markdown content")
	flags.StringVar(&f.contentFile, "content-file", "", "Read the markdown content from a file, or - for stdin")
	flags.StringVar(&f.category, "category", "", "Category of the note")
	flags.StringVar(&f.tags, "tags", "", "Comma separated tag labels")
	flags.StringSliceVar(&f.attach, "attach", nil, "Files to attach")
	if withDetach {
		flags.StringSliceVar(&f.detach, "detach", nil, "Attachment ids or names to remove")
	}
}

// apply copies the changed flags onto input.
func (f *noteFlags) apply(cmd *cobra.Command, input note.Input, stdin io.Reader) (note.Input, error) {
	flags := cmd.Flags()
	if flags.Changed("title") {
		input.Title = f.title
	}
	if flags.Changed("content") {
		input.Content = f.content
	}
	if flags.Changed("content-file") {
		content, err := readContent(f.contentFile, stdin)
		if err != nil {
			return note.Input{}, err
		}
		input.Content = content
	}
	if flags.Changed("category") {
		input.Category = f.category
	}
	if flags.Changed("tags") {
		input.Tags = note.ParseTags(f.tags)
	}
	if len(f.detach) > 0 {
		input.Attachments = slices.DeleteFunc(slices.Clone(input.Attachments), func(att note.Attachment) bool {
			return slices.Contains(f.detach, att.ID) || slices.Contains(f.detach, att.Name)
		})
	}
	return input, nil
}

func readContent(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		content, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("io.ReadAll(stdin) > %w", err)
		}
		return string(content), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("os.ReadFile(%s) > %w", path, err)
	}
	return string(content), nil
}

func newNewCommand(c *cliContext) *cobra.Command {
	var f noteFlags
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := f.apply(cmd, note.Input{}, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := input.Validate(); err != nil {
				return err
			}

			a, err := c.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			if len(f.attach) > 0 {
				outcome, err := a.ingest(cmd.Context(), f.attach, nil)
				if err != nil {
					return err
				}
				input.Attachments = outcome.Attachments
			}

			created, err := a.controller.Create(cmd.Context(), input)
			printStatus(c.out, a.controller.Snapshot())
			if err != nil {
				return fmt.Errorf("controller.Create() > %w", err)
			}
			fmt.Fprintf(c.out, "Created %s\n", created.ID)
			return nil
		},
	}
	f.register(cmd, false)
	return cmd
}

func newEditCommand(c *cliContext) *cobra.Command {
	var f noteFlags
	cmd := &cobra.Command{
		Use:   "edit <note id>",
		Short: "Edit a note; only the given fields change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			current, err := a.findNote(args[0])
			if err != nil {
				return err
			}

			input, err := f.apply(cmd, current.ToInput(), cmd.InOrStdin())
			if err != nil {
				return err
			}
			if len(f.attach) > 0 {
				outcome, err := a.ingest(cmd.Context(), f.attach, input.Attachments)
				if err != nil {
					return err
				}
				input.Attachments = outcome.Attachments
			}

			updated, err := a.controller.Update(cmd.Context(), current.ID, input)
			printStatus(c.out, a.controller.Snapshot())
			if err != nil {
				return fmt.Errorf("controller.Update() > %w", err)
			}
			fmt.Fprintf(c.out, "Updated %s\n", updated.ID)
			return nil
		},
	}
	f.register(cmd, true)
	return cmd
}

func newDeleteCommand(c *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <note id>",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			err = a.controller.Delete(cmd.Context(), args[0])
			printStatus(c.out, a.controller.Snapshot())
			if err != nil {
				return fmt.Errorf("controller.Delete() > %w", err)
			}
			fmt.Fprintf(c.out, "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newSyncCommand(c *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reload every note from the notes API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.controller.Resync(cmd.Context()); err != nil {
				return fmt.Errorf("controller.Resync() > %w", err)
			}
			snapshot := a.controller.Snapshot()
			printStatus(c.out, snapshot)
			if snapshot.Mode != reconcile.ModeRemoteActive {
				return errors.New("the notes API could not be reached")
			}
			fmt.Fprintf(c.out, "%d note(s) synced\n", snapshot.Total)
			return nil
		},
	}
}

func newStatusCommand(c *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the data source and drift state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			printSnapshot(c.out, a.controller.Snapshot())
			return nil
		},
	}
}

func joinTags(tags []note.Tag) string {
	labels := make([]string, 0, len(tags))
	for _, tag := range tags {
		labels = append(labels, "#"+tag.ID)
	}
	return strings.Join(labels, " ")
}

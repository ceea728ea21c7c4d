package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/at-ishikawa/labloom/internal/attachment"
	"github.com/at-ishikawa/labloom/internal/note"
	"github.com/at-ishikawa/labloom/internal/reconcile"
)

var (
	bold   = color.New(color.Bold)
	faint  = color.New(color.Faint)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	cyan   = color.New(color.FgCyan)
)

func statusColor(status reconcile.Status) *color.Color {
	switch status {
	case reconcile.StatusRemoteSynced, reconcile.StatusRemoteEmpty:
		return green
	case reconcile.StatusNotFound, reconcile.StatusValidationFailed:
		return red
	case reconcile.StatusLocalMode:
		return cyan
	}
	if status.Degraded() {
		return yellow
	}
	return faint
}

func printStatus(out io.Writer, snapshot reconcile.Snapshot) {
	if snapshot.Message == "" {
		return
	}
	statusColor(snapshot.Status).Fprintln(out, snapshot.Message)
	if snapshot.Detail != "" {
		faint.Fprintf(out, "  %s\n", snapshot.Detail)
	}
}

func printNotice(out io.Writer, outcome attachment.Outcome) {
	if outcome.Message == "" {
		return
	}
	if outcome.Notice.IsError() {
		red.Fprintln(out, outcome.Message)
		return
	}
	yellow.Fprintln(out, outcome.Message)
}

func printNoteList(out io.Writer, notes []note.Note) {
	if len(notes) == 0 {
		faint.Fprintln(out, "No notes match.")
		return
	}
	for _, n := range notes {
		fmt.Fprintf(out, "%s  %s  ", n.ID, n.UpdatedAt.Local().Format(time.DateTime))
		bold.Fprint(out, n.Title)
		if n.Category != "" {
			fmt.Fprintf(out, "  [%s]", n.Category)
		}
		if len(n.Tags) > 0 {
			cyan.Fprintf(out, "  %s", joinTags(n.Tags))
		}
		if len(n.Attachments) > 0 {
			faint.Fprintf(out, "  (%d attachment(s), %s)", len(n.Attachments), note.FormatBytes(note.TotalAttachmentSize(n.Attachments)))
		}
		fmt.Fprintln(out)
	}
}

func printNote(out io.Writer, n note.Note) {
	bold.Fprintln(out, n.Title)
	faint.Fprintf(out, "id: %s  category: %s  created: %s  updated: %s\n",
		n.ID, n.Category, n.CreatedAt.Local().Format(time.DateTime), n.UpdatedAt.Local().Format(time.DateTime))
	if len(n.Tags) > 0 {
		cyan.Fprintln(out, joinTags(n.Tags))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, n.Content)
	if len(n.Attachments) == 0 {
		return
	}
	fmt.Fprintln(out)
	bold.Fprintf(out, "Attachments (%s)\n", note.FormatBytes(note.TotalAttachmentSize(n.Attachments)))
	for _, a := range n.Attachments {
		fmt.Fprintf(out, "- %s  %s  %s\n", a.Name, a.Type, note.FormatBytes(a.Size))
	}
}

func printSnapshot(out io.Writer, snapshot reconcile.Snapshot) {
	if !snapshot.Status.Degraded() {
		printStatus(out, snapshot)
	}
	fmt.Fprintf(out, "mode:        %s\n", snapshot.Mode)
	fmt.Fprintf(out, "notes:       %d\n", snapshot.Total)
	fmt.Fprintf(out, "local hash:  %s\n", snapshot.LocalHash)
	fmt.Fprintf(out, "remote hash: %s\n", snapshot.RemoteHash)
	switch {
	case snapshot.Synced:
		green.Fprintln(out, "in sync with the notes API")
	case snapshot.CanSync:
		yellow.Fprintln(out, "local changes differ from the notes API; run `labloom sync` to reload")
	}
}

package attachment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/at-ishikawa/labloom/internal/encoder"
	"github.com/at-ishikawa/labloom/internal/note"
)

// Notice classifies the message of an ingestion outcome.
type Notice int

const (
	NoticeNone Notice = iota
	// NoticeFileTooLarge: every rejected file was over the per-file ceiling.
	NoticeFileTooLarge
	// NoticeClearSpace: the existing attachments leave no usable budget.
	NoticeClearSpace
	// NoticePartial: some files were added and some were not.
	NoticePartial
	// NoticeBudgetExceeded: nothing was added because nothing fit the budget.
	NoticeBudgetExceeded
	// NoticeUnreadable: nothing was added because no file could be read or decoded.
	NoticeUnreadable
)

func (n Notice) String() string {
	switch n {
	case NoticeNone:
		return "none"
	case NoticeFileTooLarge:
		return "file_too_large"
	case NoticeClearSpace:
		return "clear_space"
	case NoticePartial:
		return "partial"
	case NoticeBudgetExceeded:
		return "budget_exceeded"
	case NoticeUnreadable:
		return "unreadable"
	}
	return fmt.Sprintf("notice(%d)", int(n))
}

// IsError reports whether nothing could be added.
func (n Notice) IsError() bool {
	return n == NoticeFileTooLarge || n == NoticeClearSpace || n == NoticeBudgetExceeded || n == NoticeUnreadable
}

// Outcome is the result of one ingestion batch.
type Outcome struct {
	// Accepted are the new attachments, after deduplication.
	Accepted []note.Attachment
	// Attachments is the existing list followed by Accepted.
	Attachments []note.Attachment
	// Skipped counts files rejected by the ceiling, the budget, or a read or
	// encode failure.
	Skipped int
	// Unprocessed counts files never attempted because the budget ran out.
	Unprocessed int
	// Duplicates counts files that matched an attachment already present.
	Duplicates int
	Notice     Notice
	Message    string
}

// Options tune the ingestion budget rules.
type Options struct {
	// MaxFileSize rejects any file larger than this before processing.
	MaxFileSize int64
	// MinChunk is the smallest remaining budget worth processing a file for.
	MinChunk int64
	// DefaultImageTarget caps the per-image target.
	DefaultImageTarget int64
	ImageConstraints   encoder.Constraints
	// RetryRatio scales the target of the single retry for an image that
	// did not fit the remaining budget.
	RetryRatio       float64
	RetryConstraints encoder.Constraints
}

// DefaultOptions returns a 10 MB ceiling, a 200 KB minimum chunk and a
// 1.5 MB default image target.
func DefaultOptions() Options {
	image := encoder.DefaultConstraints()
	image.MaxWidth, image.MaxHeight = 1600, 1600
	image.StartQuality = 0.82

	retry := encoder.DefaultConstraints()
	retry.MaxQuality = 0.7
	retry.StartQuality = 0.7

	return Options{
		MaxFileSize:        10 * 1024 * 1024,
		MinChunk:           200 * 1024,
		DefaultImageTarget: 1536 * 1024,
		ImageConstraints:   image,
		RetryRatio:         0.75,
		RetryConstraints:   retry,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = d.MaxFileSize
	}
	if o.MinChunk <= 0 {
		o.MinChunk = d.MinChunk
	}
	if o.DefaultImageTarget <= 0 {
		o.DefaultImageTarget = d.DefaultImageTarget
	}
	if o.ImageConstraints == (encoder.Constraints{}) {
		o.ImageConstraints = d.ImageConstraints
	}
	if o.RetryRatio <= 0 || o.RetryRatio >= 1 {
		o.RetryRatio = d.RetryRatio
	}
	if o.RetryConstraints == (encoder.Constraints{}) {
		o.RetryConstraints = d.RetryConstraints
	}
	return o
}

var (
	errOverBudget = errors.New("attachment does not fit the remaining budget")
	errDuplicate  = errors.New("attachment is already attached")
)

// Pipeline ingests files one at a time against a shared budget.
type Pipeline struct {
	encoder ImageEncoder
	opts    Options
}

// NewPipeline creates a Pipeline. Zero options fall back to DefaultOptions.
func NewPipeline(enc ImageEncoder, opts Options) *Pipeline {
	if enc == nil {
		enc = encoder.New(nil)
	}
	return &Pipeline{encoder: enc, opts: opts.withDefaults()}
}

// Options returns the effective options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Ingest converts files into attachments that fit within totalBudget
// together with existing. Files are processed sequentially since each
// acceptance shrinks the budget for the next. A failing file is skipped
// without affecting the rest of the batch.
func (p *Pipeline) Ingest(ctx context.Context, files []File, existing []note.Attachment, totalBudget int64) Outcome {
	out := Outcome{
		Accepted:    []note.Attachment{},
		Attachments: append([]note.Attachment{}, existing...),
	}
	if len(files) == 0 {
		return out
	}

	allowed := make([]File, 0, len(files))
	tooLarge := 0
	for _, f := range files {
		if f.Size > p.opts.MaxFileSize {
			tooLarge++
			continue
		}
		allowed = append(allowed, f)
	}
	if len(allowed) == 0 {
		out.Skipped = tooLarge
		out.Notice = NoticeFileTooLarge
		out.Message = p.tooLargeMessage()
		return out
	}

	remaining := totalBudget - note.TotalAttachmentSize(existing)
	if remaining <= p.opts.MinChunk {
		out.Skipped = tooLarge
		out.Notice = NoticeClearSpace
		out.Message = "Attachment space is full. Remove an attachment before adding more."
		if tooLarge > 0 {
			out.Message += " " + p.tooLargeMessage()
		}
		return out
	}

	var overBudget, failed int
	accepted := make([]note.Attachment, 0, len(allowed))
	for i, f := range allowed {
		if remaining <= p.opts.MinChunk || ctx.Err() != nil {
			out.Unprocessed = len(allowed) - i
			break
		}

		logger := logrus.WithFields(logrus.Fields{"file": f.Name, "size": f.Size, "remaining": remaining})
		a, err := p.ingestFile(ctx, f, remaining, len(allowed)-i, append(existing[:len(existing):len(existing)], accepted...))
		switch {
		case errors.Is(err, errDuplicate):
			out.Duplicates++
			logger.Debug("attachment already present")
			continue
		case errors.Is(err, errOverBudget):
			overBudget++
			logger.Debug("attachment skipped: over budget")
			continue
		case err != nil:
			failed++
			logger.WithError(err).Warn("attachment skipped")
			continue
		}

		accepted = append(accepted, a)
		remaining -= a.Size
	}

	out.Accepted = accepted
	out.Attachments = note.DedupeAttachments(existing, accepted)
	out.Skipped = tooLarge + overBudget + failed
	out.Notice, out.Message = p.notice(len(accepted), tooLarge, overBudget, failed, out.Unprocessed)
	return out
}

func (p *Pipeline) ingestFile(ctx context.Context, f File, remaining int64, left int, present []note.Attachment) (note.Attachment, error) {
	if f.Blob == nil {
		return note.Attachment{}, fmt.Errorf("%s has no content", f.Name)
	}
	data, err := f.Blob.ReadBlob(ctx)
	if err != nil {
		return note.Attachment{}, fmt.Errorf("ReadBlob() > %w", err)
	}
	mimeType := DetectType(f.Type, data)
	name := strings.TrimSpace(f.Name)
	if name == "" {
		name = note.DefaultAttachmentName
	}

	var a note.Attachment
	if IsRasterImage(mimeType) {
		a, err = p.encodeImage(ctx, name, mimeType, data, remaining, left)
		if err != nil {
			return note.Attachment{}, err
		}
	} else {
		dataURL := encoder.BuildDataURL(mimeType, data)
		a = note.Attachment{
			ID:         note.NewID("att"),
			Name:       name,
			Size:       encoder.EstimateDataURLSize(dataURL),
			Type:       mimeType,
			PreviewURL: dataURL,
			DataURL:    dataURL,
		}
	}

	if len(note.DedupeAttachments(present, []note.Attachment{a})) == len(present) {
		return note.Attachment{}, errDuplicate
	}
	if a.Size > remaining {
		return note.Attachment{}, errOverBudget
	}
	return a, nil
}

func (p *Pipeline) encodeImage(ctx context.Context, name, mimeType string, data []byte, remaining int64, left int) (note.Attachment, error) {
	target := max(p.opts.MinChunk, min(p.opts.DefaultImageTarget, remaining/int64(left)))
	target = min(target, remaining)
	src := encoder.Source{Data: data, MIMEType: mimeType}

	result, err := p.encoder.Encode(ctx, src, target, p.opts.ImageConstraints)
	if err != nil {
		return note.Attachment{}, fmt.Errorf("encoder.Encode() > %w", err)
	}
	if result.Size > remaining {
		retryTarget := max(1, int64(float64(target)*p.opts.RetryRatio))
		result, err = p.encoder.Encode(ctx, src, retryTarget, p.opts.RetryConstraints)
		if err != nil {
			return note.Attachment{}, fmt.Errorf("encoder.Encode(retry) > %w", err)
		}
	}

	return note.Attachment{
		ID:         note.NewID("att"),
		Name:       name,
		Size:       result.Size,
		Type:       result.MIMEType,
		PreviewURL: result.DataURL,
		DataURL:    result.DataURL,
	}, nil
}

func (p *Pipeline) notice(accepted, tooLarge, overBudget, failed, unprocessed int) (Notice, string) {
	rejected := tooLarge + overBudget + failed
	switch {
	case accepted > 0 && rejected+unprocessed > 0:
		return NoticePartial, fmt.Sprintf("Added %d attachment(s); %d did not fit in the remaining space.", accepted, rejected+unprocessed)
	case accepted > 0:
		return NoticeNone, ""
	case overBudget > 0:
		return NoticeBudgetExceeded, "No attachments were added: they exceed the remaining attachment space."
	case tooLarge > 0:
		return NoticeFileTooLarge, p.tooLargeMessage()
	case failed > 0:
		return NoticeUnreadable, "No attachments were added: the files could not be read."
	}
	return NoticeNone, ""
}

func (p *Pipeline) tooLargeMessage() string {
	return fmt.Sprintf("Each attachment can be at most %s.", note.FormatBytes(p.opts.MaxFileSize))
}

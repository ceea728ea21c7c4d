package attachment

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/at-ishikawa/labloom/internal/encoder"
	mock_attachment "github.com/at-ishikawa/labloom/internal/mocks/attachment"
	"github.com/at-ishikawa/labloom/internal/note"
)

const mb = 1024 * 1024

func opaqueFile(name string, size int, fill byte) File {
	return FileFromBytes(name, "application/octet-stream", bytes.Repeat([]byte{fill}, size))
}

func imageFile(name string, size int) File {
	return FileFromBytes(name, "image/jpeg", make([]byte, size))
}

func encoded(size int64, marker string) encoder.Result {
	return encoder.Result{
		DataURL:  "data:image/jpeg;base64," + marker,
		Width:    1200,
		Height:   800,
		MIMEType: "image/jpeg",
		Size:     size,
	}
}

func TestPipeline_Ingest_TwoLargeFilesOverBudget(t *testing.T) {
	p := NewPipeline(nil, Options{})

	got := p.Ingest(context.Background(), []File{
		opaqueFile("first.bin", 5*mb, 'a'),
		opaqueFile("second.bin", 5*mb, 'b'),
	}, nil, 8*mb)

	require.Len(t, got.Accepted, 1)
	assert.Equal(t, "first.bin", got.Accepted[0].Name)
	assert.Equal(t, int64(5*mb), got.Accepted[0].Size)
	assert.Equal(t, got.Accepted, got.Attachments)
	assert.Equal(t, 1, got.Skipped)
	assert.Equal(t, NoticePartial, got.Notice)
	assert.NotEmpty(t, got.Message)
}

func TestPipeline_Ingest_Images(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		name         string
		files        []File
		budget       int64
		setup        func(m *mock_attachment.MockImageEncoder)
		wantAccepted []int64
		wantSkipped  int
		wantNotice   Notice
	}{
		{
			name:   "each image gets the default target",
			files:  []File{imageFile("a.jpg", 5*mb), imageFile("b.jpg", 5*mb)},
			budget: 8 * mb,
			setup: func(m *mock_attachment.MockImageEncoder) {
				m.EXPECT().Encode(gomock.Any(), gomock.Any(), opts.DefaultImageTarget, opts.ImageConstraints).
					Return(encoded(1_400_000, "AAAA"), nil)
				m.EXPECT().Encode(gomock.Any(), gomock.Any(), opts.DefaultImageTarget, opts.ImageConstraints).
					Return(encoded(1_300_000, "BBBB"), nil)
			},
			wantAccepted: []int64{1_400_000, 1_300_000},
			wantNotice:   NoticeNone,
		},
		{
			name:   "target is split across the remaining files",
			files:  []File{imageFile("a.jpg", mb), imageFile("b.jpg", mb), imageFile("c.jpg", mb), imageFile("d.jpg", mb)},
			budget: 2 * mb,
			setup: func(m *mock_attachment.MockImageEncoder) {
				gomock.InOrder(
					m.EXPECT().Encode(gomock.Any(), gomock.Any(), int64(mb/2), opts.ImageConstraints).
						Return(encoded(400_000, "AAAA"), nil),
					m.EXPECT().Encode(gomock.Any(), gomock.Any(), int64((2*mb-400_000)/3), opts.ImageConstraints).
						Return(encoded(400_000, "BBBB"), nil),
					m.EXPECT().Encode(gomock.Any(), gomock.Any(), int64((2*mb-800_000)/2), opts.ImageConstraints).
						Return(encoded(400_000, "CCCC"), nil),
					m.EXPECT().Encode(gomock.Any(), gomock.Any(), int64(2*mb-1_200_000), opts.ImageConstraints).
						Return(encoded(400_000, "DDDD"), nil),
				)
			},
			wantAccepted: []int64{400_000, 400_000, 400_000, 400_000},
			wantNotice:   NoticeNone,
		},
		{
			name:   "retries once with a reduced target",
			files:  []File{imageFile("a.jpg", 3*mb)},
			budget: mb,
			setup: func(m *mock_attachment.MockImageEncoder) {
				gomock.InOrder(
					m.EXPECT().Encode(gomock.Any(), gomock.Any(), int64(mb), opts.ImageConstraints).
						Return(encoded(1_200_000, "AAAA"), nil),
					m.EXPECT().Encode(gomock.Any(), gomock.Any(), int64(mb*3/4), opts.RetryConstraints).
						Return(encoded(700_000, "BBBB"), nil),
				)
			},
			wantAccepted: []int64{700_000},
			wantNotice:   NoticeNone,
		},
		{
			name:   "image still over budget after the retry is skipped",
			files:  []File{imageFile("a.jpg", 3*mb)},
			budget: mb,
			setup: func(m *mock_attachment.MockImageEncoder) {
				m.EXPECT().Encode(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(encoded(1_200_000, "AAAA"), nil).Times(2)
			},
			wantAccepted: []int64{},
			wantSkipped:  1,
			wantNotice:   NoticeBudgetExceeded,
		},
		{
			name:   "an encoder failure only skips that file",
			files:  []File{imageFile("broken.jpg", mb), opaqueFile("notes.txt", 1000, 'x')},
			budget: 8 * mb,
			setup: func(m *mock_attachment.MockImageEncoder) {
				m.EXPECT().Encode(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(encoder.Result{}, encoder.ErrDecode)
			},
			wantAccepted: []int64{1000},
			wantSkipped:  1,
			wantNotice:   NoticePartial,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			enc := mock_attachment.NewMockImageEncoder(ctrl)
			tt.setup(enc)

			got := NewPipeline(enc, opts).Ingest(context.Background(), tt.files, nil, tt.budget)

			sizes := make([]int64, 0, len(got.Accepted))
			for _, a := range got.Accepted {
				sizes = append(sizes, a.Size)
			}
			assert.Equal(t, tt.wantAccepted, sizes)
			assert.Equal(t, tt.wantSkipped, got.Skipped)
			assert.Equal(t, tt.wantNotice, got.Notice)
		})
	}
}

func TestPipeline_Ingest_Rules(t *testing.T) {
	existing := []note.Attachment{{ID: "att-1", Name: "kept.bin", Size: 7*mb + 900*1024, Type: "application/octet-stream"}}

	tests := []struct {
		name            string
		files           []File
		existing        []note.Attachment
		budget          int64
		wantAccepted    int
		wantAttachments int
		wantSkipped     int
		wantUnprocessed int
		wantNotice      Notice
		wantMessage     string
	}{
		{
			name:            "empty input has no message",
			existing:        existing,
			budget:          8 * mb,
			wantAttachments: 1,
			wantNotice:      NoticeNone,
		},
		{
			name:        "files over the ceiling are rejected before processing",
			files:       []File{{Name: "huge.mov", Size: 11 * mb}},
			budget:      100 * mb,
			wantSkipped: 1,
			wantNotice:  NoticeFileTooLarge,
			wantMessage: "Each attachment can be at most 10.00 MB.",
		},
		{
			name:            "ceiling rejection next to an accepted file is partial",
			files:           []File{{Name: "huge.mov", Size: 11 * mb}, opaqueFile("a.txt", 10, 'a')},
			budget:          100 * mb,
			wantAccepted:    1,
			wantAttachments: 1,
			wantSkipped:     1,
			wantNotice:      NoticePartial,
		},
		{
			name:            "no space left aborts the batch",
			files:           []File{opaqueFile("a.txt", 10, 'a')},
			existing:        existing,
			budget:          8 * mb,
			wantAttachments: 1,
			wantNotice:      NoticeClearSpace,
		},
		{
			name:            "no space left still counts files over the ceiling",
			files:           []File{{Name: "huge.mov", Size: 11 * mb}, opaqueFile("a.txt", 10, 'a')},
			existing:        existing,
			budget:          8 * mb,
			wantAttachments: 1,
			wantSkipped:     1,
			wantNotice:      NoticeClearSpace,
			wantMessage:     "Attachment space is full. Remove an attachment before adding more. Each attachment can be at most 10.00 MB.",
		},
		{
			name:            "stops once the budget drops to the minimum chunk",
			files:           []File{opaqueFile("a.bin", 850*1024, 'a'), opaqueFile("b.bin", 10, 'b')},
			budget:          mb,
			wantAccepted:    1,
			wantAttachments: 1,
			wantUnprocessed: 1,
			wantNotice:      NoticePartial,
		},
		{
			name:        "unreadable files",
			files:       []File{{Name: "gone.txt", Size: 10, Blob: PathBlob("/nonexistent/gone.txt")}},
			budget:      mb,
			wantSkipped: 1,
			wantNotice:  NoticeUnreadable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewPipeline(nil, Options{}).Ingest(context.Background(), tt.files, tt.existing, tt.budget)

			assert.Len(t, got.Accepted, tt.wantAccepted)
			assert.Len(t, got.Attachments, tt.wantAttachments)
			assert.Equal(t, tt.wantSkipped, got.Skipped)
			assert.Equal(t, tt.wantUnprocessed, got.Unprocessed)
			assert.Equal(t, tt.wantNotice, got.Notice)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, got.Message)
			}
			if tt.wantNotice == NoticeNone {
				assert.Empty(t, got.Message)
			}
		})
	}
}

func TestPipeline_Ingest_IdempotentUnderDedupe(t *testing.T) {
	p := NewPipeline(nil, Options{})
	file := opaqueFile("notes.txt", 2048, 'n')
	existing := []note.Attachment{{ID: "att-0", Name: "old.txt", Size: 1, Type: "text/plain"}}

	first := p.Ingest(context.Background(), []File{file}, existing, 8*mb)
	require.Len(t, first.Accepted, 1)
	require.Len(t, first.Attachments, 2)

	second := p.Ingest(context.Background(), []File{file}, first.Attachments, 8*mb)
	assert.Empty(t, second.Accepted)
	assert.Equal(t, first.Attachments, second.Attachments)
	assert.Equal(t, 1, second.Duplicates)
	assert.Equal(t, NoticeNone, second.Notice)

	both := p.Ingest(context.Background(), []File{file, file}, existing, 8*mb)
	assert.Len(t, both.Accepted, 1)
	assert.Equal(t, 1, both.Duplicates)
}

func TestPipeline_Ingest_SniffsImages(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 40, 30))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	got := NewPipeline(nil, Options{}).Ingest(context.Background(), []File{
		{Name: "pasted", Size: int64(buf.Len()), Blob: Bytes(buf.Bytes())},
	}, nil, 8*mb)

	require.Len(t, got.Accepted, 1)
	a := got.Accepted[0]
	assert.Equal(t, "image/png", a.Type)
	assert.Equal(t, encoder.BuildDataURL("image/png", buf.Bytes()), a.DataURL)
	assert.Equal(t, a.DataURL, a.PreviewURL)
	assert.Equal(t, int64(buf.Len()), a.Size)
	assert.Regexp(t, "^att-", a.ID)
}

func TestPipeline_Ingest_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := NewPipeline(nil, Options{}).Ingest(ctx, []File{opaqueFile("a.txt", 10, 'a')}, nil, mb)

	assert.Empty(t, got.Accepted)
	assert.Equal(t, 1, got.Unprocessed)
}

func TestDetectType(t *testing.T) {
	assert.Equal(t, "video/mp4", DetectType(" video/mp4 ", nil))
	assert.Equal(t, "application/pdf", DetectType("", []byte("%PDF-1.7\n")))
}

func TestIsRasterImage(t *testing.T) {
	assert.True(t, IsRasterImage("image/png"))
	assert.True(t, IsRasterImage("IMAGE/JPEG; q=1"))
	assert.False(t, IsRasterImage("image/svg+xml"))
	assert.False(t, IsRasterImage("application/pdf"))
}

package filename

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    SafeName
		wantErr error
	}{
		{name: "plain pdf", raw: "w2_2023.pdf", want: "w2_2023.pdf"},
		{name: "uppercase extension", raw: "Scan.PDF", want: "Scan.PDF"},
		{name: "spaces become underscores", raw: "my  tax   form.docx", want: "my_tax_form.docx"},
		{name: "unix traversal", raw: "../../etc/passwd", wantErr: ErrDisallowedType},
		{name: "traversal keeps base name", raw: "../../secret/w2.pdf", want: "w2.pdf"},
		{name: "windows traversal", raw: `..\..\Windows\form.jpg`, want: "form.jpg"},
		{name: "absolute path", raw: "/etc/shadow.png", want: "shadow.png"},
		{name: "null byte", raw: "w2.pdf\x00.exe", wantErr: ErrDisallowedType},
		{name: "null byte inside", raw: "w\x002.pdf", want: "w2.pdf"},
		{name: "accents folded", raw: "résumé.pdf", want: "resume.pdf"},
		{name: "hidden file", raw: ".pdf", wantErr: ErrDisallowedType},
		{name: "leading dots trimmed", raw: "...report.pdf", want: "report.pdf"},
		{name: "shell characters dropped", raw: "a;rm -rf $(x).pdf", want: "arm_-rf_x.pdf"},
		{name: "executable", raw: "resume.exe", wantErr: ErrDisallowedType},
		{name: "no extension", raw: "README", wantErr: ErrDisallowedType},
		{name: "trailing dot", raw: "file.", wantErr: ErrDisallowedType},
		{name: "empty", raw: "", wantErr: ErrBadFilename},
		{name: "only separators", raw: "///", wantErr: ErrBadFilename},
		{name: "dot dot", raw: "..", wantErr: ErrBadFilename},
		{name: "non ascii only", raw: "文件", wantErr: ErrBadFilename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitize_NeverEscapesSegment(t *testing.T) {
	inputs := []string{
		"../../etc/passwd.pdf",
		"..%2f..%2fboot.pdf",
		"a/../../b.pdf",
		"C:\\temp\\..\\x.png",
		"\x00/../x.jpg",
		"./.././../.pdf.pdf",
		"....//....//x.doc",
	}
	for _, raw := range inputs {
		got, err := Sanitize(raw)
		if err != nil {
			continue
		}
		s := string(got)
		assert.NotContains(t, s, "/", raw)
		assert.NotContains(t, s, `\`, raw)
		assert.NotContains(t, s, "\x00", raw)
		assert.False(t, strings.HasPrefix(s, "."), raw)
		assert.NotEqual(t, "..", s, raw)
	}
}

func TestSanitize_TruncatesLongNames(t *testing.T) {
	raw := strings.Repeat("a", 500) + ".pdf"

	got, err := Sanitize(raw)

	require.NoError(t, err)
	assert.Len(t, string(got), maxNameLen)
	assert.True(t, strings.HasSuffix(string(got), ".pdf"))
	assert.Equal(t, "pdf", got.Ext())
}

func TestStoredName(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 30, 5, 0, time.FixedZone("EST", -5*3600))

	got := StoredName(now, "w2_2023.pdf")

	assert.Equal(t, "20240115_143005_w2_2023.pdf", got)
}

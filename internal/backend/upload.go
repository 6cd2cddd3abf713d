package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
)

// Upload is one file submitted for analysis.
type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
	Language    string
	Question    string
}

// Upload streams a multipart form with the file, language and question fields.
func (c *Client) Upload(ctx context.Context, upload Upload) (Reply, error) {
	if upload.Body == nil {
		return Reply{}, errors.New("upload body is nil")
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(form, upload))
	}()

	var reply Reply
	status, err := c.do(ctx, "upload", http.MethodPost, "/api/chat/upload", form.FormDataContentType(), pr, &reply)
	_ = pr.Close()
	if err != nil {
		return Reply{}, err
	}
	return reply.settle(status), nil
}

func writeUploadForm(form *multipart.Writer, upload Upload) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filepath.Base(upload.Name))))
	contentType := strings.TrimSpace(upload.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := form.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, upload.Body); err != nil {
		return fmt.Errorf("write file part: %w", err)
	}
	if err := form.WriteField("language", upload.Language); err != nil {
		return fmt.Errorf("write language field: %w", err)
	}
	if err := form.WriteField("question", upload.Question); err != nil {
		return fmt.Errorf("write question field: %w", err)
	}
	return form.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
